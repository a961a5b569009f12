// Package cart holds the in-progress shopping carts and the rules for filling them.
package cart

import (
	"sync"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

// Cart is one customer's ordered list of product snapshots. It carries its own lock so
// concurrent requests on the same session stay consistent.
type Cart struct {
	id    string
	mu    sync.Mutex
	items []models.CartItem
	// checkingOut is set between BeginCheckout and EndCheckout.
	checkingOut bool
}

// New returns an empty cart.
func New(id string) *Cart {
	return &Cart{id: id}
}

// ID returns the session identifier of the cart.
func (c *Cart) ID() string {
	return c.id
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.CartItem(nil), c.items...)
}

// Len reports the number of distinct lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// RemoveItem drops the line; an unknown id is ignored.
func (c *Cart) RemoveItem(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(itemID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// SetQuantity changes a line's quantity by delta, never going below one.
func (c *Cart) SetQuantity(itemID string, delta int) (models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(itemID)
	if i < 0 {
		return models.CartItem{}, models.ErrNotFound
	}
	c.items[i].Quantity += delta
	if c.items[i].Quantity < 1 {
		c.items[i].Quantity = 1
	}
	return c.items[i], nil
}

// Totals sums the current lines.
func (c *Cart) Totals() models.Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.ComputeTotals(c.items)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// BeginCheckout hands out the lines to sell and holds the cart until EndCheckout.
// A second call in the meantime fails with ErrCheckoutInProgress.
func (c *Cart) BeginCheckout() ([]models.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checkingOut {
		return nil, models.ErrCheckoutInProgress
	}
	if len(c.items) == 0 {
		return nil, models.ErrEmptyCart
	}
	c.checkingOut = true
	return append([]models.CartItem(nil), c.items...), nil
}

// EndCheckout releases the cart and removes the sold quantities. Lines scanned while
// the checkout ran stay in the cart. Pass nil when nothing was sold.
func (c *Cart) EndCheckout(sold []models.CartItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkingOut = false

	remaining := make(map[string]int, len(sold))
	for _, item := range sold {
		remaining[item.ItemID()] += item.Quantity
	}

	kept := c.items[:0]
	for _, item := range c.items {
		if n := remaining[item.ItemID()]; n > 0 {
			take := min(n, item.Quantity)
			item.Quantity -= take
			remaining[item.ItemID()] = n - take
		}
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	c.items = kept
}

// View is the serializable state of a cart.
type View struct {
	ID    string            `json:"id"`
	Items []models.CartItem `json:"items"`
	models.Totals
}

// View captures items and totals under one lock.
func (c *Cart) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := append([]models.CartItem{}, c.items...)
	return View{ID: c.id, Items: items, Totals: models.ComputeTotals(items)}
}

func (c *Cart) add(p models.Product) models.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(p.ID); i >= 0 {
		c.items[i].Quantity++
		return c.items[i]
	}
	item := models.CartItem{Product: p, Quantity: 1}
	c.items = append(c.items, item)
	return item
}

func (c *Cart) indexOf(itemID string) int {
	for i, item := range c.items {
		if item.ItemID() == itemID {
			return i
		}
	}
	return -1
}
