// Package checkout turns a cart into a sale record and its exit token in one
// storage transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/events"
	"github.com/mamadbah2/selfcheckout/internal/idgen"
	"github.com/mamadbah2/selfcheckout/internal/metrics"
	"github.com/mamadbah2/selfcheckout/internal/repository"
	"github.com/mamadbah2/selfcheckout/internal/service/cart"
)

// maxIDAttempts bounds id regeneration after a uniqueness collision.
const maxIDAttempts = 3

// Service runs checkouts.
type Service struct {
	store    repository.Store
	ids      idgen.Generator
	validity time.Duration
	events   *events.Emitter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithIDGenerator replaces the default uuid based generator.
func WithIDGenerator(ids idgen.Generator) Option {
	return func(s *Service) { s.ids = ids }
}

// WithValidity sets how long issued tokens stay verifiable.
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithEvents publishes sale.completed after each commit.
func WithEvents(e *events.Emitter) Option {
	return func(s *Service) { s.events = e }
}

// WithMetrics records checkout outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires a checkout service on top of the store.
func NewService(store repository.Store, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		ids:      idgen.New(),
		validity: models.DefaultTokenValidity,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validity returns the configured token lifetime.
func (s *Service) Validity() time.Duration {
	return s.validity
}

type line struct {
	productID string
	quantity  int
}

// Checkout commits the cart's contents as a sale, issues an active token, decrements
// stock and removes the sold lines from the cart. Prices, taxes and stock are re-read
// from the catalog inside the transaction. On error nothing is persisted and the cart
// is untouched. The cart is held for the duration, so a concurrent checkout of the
// same cart fails with ErrCheckoutInProgress.
func (s *Service) Checkout(ctx context.Context, c *cart.Cart) (models.SaleRecord, models.ExitToken, error) {
	started := s.now()

	items, err := c.BeginCheckout()
	if err != nil {
		s.metrics.ObserveCheckout(outcome(err), 0)
		return models.SaleRecord{}, models.ExitToken{}, err
	}

	sale, token, err := s.checkout(ctx, aggregate(items))
	s.metrics.ObserveCheckout(outcome(err), s.now().Sub(started))
	if err != nil {
		c.EndCheckout(nil)
		s.logger.Info("checkout rejected", zap.String("cart_id", c.ID()), zap.Error(err))
		return models.SaleRecord{}, models.ExitToken{}, fmt.Errorf("checkout: %w", err)
	}

	c.EndCheckout(sale.Items)
	s.events.Emit(events.SaleCompleted(sale))
	s.logger.Info("checkout completed",
		zap.String("cart_id", c.ID()),
		zap.String("sale_id", sale.ID),
		zap.String("token_id", token.ID),
		zap.Stringer("total", sale.Total),
		zap.Int("units", sale.ItemCount()),
	)
	return sale, token, nil
}

func (s *Service) checkout(ctx context.Context, lines []line) (models.SaleRecord, models.ExitToken, error) {
	if len(lines) == 0 {
		return models.SaleRecord{}, models.ExitToken{}, models.ErrEmptyCart
	}

	var (
		sale  models.SaleRecord
		token models.ExitToken
		err   error
	)
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		sale, token, err = s.commit(ctx, lines)
		if !errors.Is(err, models.ErrDuplicateID) {
			break
		}
		s.logger.Warn("identifier collision, regenerating", zap.Int("attempt", attempt), zap.Error(err))
	}
	return sale, token, err
}

func (s *Service) commit(ctx context.Context, lines []line) (models.SaleRecord, models.ExitToken, error) {
	var (
		sale  models.SaleRecord
		token models.ExitToken
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		// Rows are read, and locked where the backend locks, in product id order so
		// overlapping carts cannot deadlock each other.
		products := make(map[string]models.Product, len(lines))
		for _, l := range lockOrder(lines) {
			product, err := tx.ProductByID(ctx, l.productID)
			if err != nil {
				return fmt.Errorf("load product %s: %w", l.productID, err)
			}
			if product.Stock < l.quantity {
				return &models.InsufficientStockError{ProductID: product.ID, Requested: l.quantity, Available: product.Stock}
			}
			products[l.productID] = product
		}

		items := make([]models.CartItem, 0, len(lines))
		for _, l := range lines {
			items = append(items, models.CartItem{Product: products[l.productID], Quantity: l.quantity})
		}

		now := s.now().UTC()
		totals := models.ComputeTotals(items)
		sale = models.SaleRecord{
			ID:        s.ids.NewSaleID(),
			Timestamp: now,
			Items:     items,
			Subtotal:  totals.Subtotal,
			TaxTotal:  totals.TaxTotal,
			Total:     totals.Total,
			TokenID:   s.ids.NewTokenID(),
		}
		token = models.ExitToken{
			ID:        sale.TokenID,
			SaleID:    sale.ID,
			Timestamp: now,
			ExpiresAt: now.Add(s.validity),
			Status:    models.TokenActive,
		}

		if err := tx.AppendSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.AppendToken(ctx, token); err != nil {
			return err
		}
		for _, l := range lockOrder(lines) {
			if err := tx.AdjustStock(ctx, l.productID, -l.quantity); err != nil {
				return err
			}
		}
		return nil
	})
	return sale, token, err
}

// aggregate folds lines sharing a product into one, keeping first-seen order.
func aggregate(items []models.CartItem) []line {
	index := make(map[string]int, len(items))
	out := make([]line, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		if i, ok := index[item.ItemID()]; ok {
			out[i].quantity += item.Quantity
			continue
		}
		index[item.ItemID()] = len(out)
		out = append(out, line{productID: item.ItemID(), quantity: item.Quantity})
	}
	return out
}

// lockOrder returns the lines sorted by product id.
func lockOrder(lines []line) []line {
	sorted := slices.Clone(lines)
	slices.SortFunc(sorted, func(a, b line) int { return strings.Compare(a.productID, b.productID) })
	return sorted
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, models.ErrCheckoutInProgress):
		return "in_progress"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
