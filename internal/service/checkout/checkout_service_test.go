package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/events"
	"github.com/mamadbah2/selfcheckout/internal/repository"
	"github.com/mamadbah2/selfcheckout/internal/repository/memory"
	"github.com/mamadbah2/selfcheckout/internal/service/cart"
)

var (
	fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	milk     = models.Product{ID: "1", Barcode: "123456", Name: "Fresh Milk 1L", Price: 250, Tax: 20, Stock: 1}
	bread    = models.Product{ID: "2", Barcode: "234567", Name: "Whole Grain Bread", Price: 180, Tax: 15, Stock: 30}
)

type fixture struct {
	store  *memory.Store
	engine *cart.Engine
	svc    *Service
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memory.NewStore()
	for _, p := range []models.Product{milk, bread} {
		require.NoError(t, store.UpsertProduct(context.Background(), p))
	}
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return fixture{
		store:  store,
		engine: cart.NewEngine(store, nil),
		svc:    NewService(store, nil, opts...),
	}
}

func (f fixture) cartWith(t *testing.T, barcodes ...string) *cart.Cart {
	t.Helper()
	c := cart.New(fmt.Sprintf("cart-%d", len(barcodes)))
	for _, b := range barcodes {
		_, err := f.engine.AddItem(context.Background(), c, b)
		require.NoError(t, err)
	}
	return c
}

func (f fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.ProductByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCheckout_SingleMilk(t *testing.T) {
	f := newFixture(t)
	c := f.cartWith(t, "123456")

	sale, token, err := f.svc.Checkout(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, models.Money(250), sale.Subtotal)
	assert.Equal(t, models.Money(20), sale.TaxTotal)
	assert.Equal(t, models.Money(270), sale.Total)
	assert.Equal(t, "2.70", sale.Total.String())
	assert.Equal(t, token.ID, sale.TokenID)
	assert.Equal(t, sale.ID, token.SaleID)
	assert.Equal(t, models.TokenActive, token.Status)
	assert.Equal(t, fixedNow.Add(30*time.Minute), token.ExpiresAt)
	assert.Regexp(t, `^TKN-[0-9A-Z]{13}$`, token.ID)
	assert.Regexp(t, `^S-`, sale.ID)

	assert.Equal(t, 0, f.stock(t, "1"))
	assert.Zero(t, c.Len())

	storedSale, err := f.store.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, token.ID, storedSale.TokenID)
	storedToken, err := f.store.GetToken(context.Background(), token.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, storedToken.SaleID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Checkout(context.Background(), cart.New("empty"))
	assert.ErrorIs(t, err, models.ErrEmptyCart)

	sales, err := f.store.ListSales(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sales)
}

func TestCheckout_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	// Bread first so its decrement would have happened before the milk line fails.
	c := f.cartWith(t, "234567", "123456", "123456")

	_, _, err := f.svc.Checkout(context.Background(), c)
	require.ErrorIs(t, err, models.ErrInsufficientStock)

	var stockErr *models.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "1", stockErr.ProductID)
	assert.Equal(t, 2, stockErr.Requested)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 30, f.stock(t, "2"))
	assert.Equal(t, 1, f.stock(t, "1"))
	assert.Equal(t, 2, c.Len(), "cart is kept on failure")

	sales, err := f.store.ListSales(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sales)
	tokens, err := f.store.ListTokens(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tokens)
}

func TestCheckout_ProductDeletedAfterScan(t *testing.T) {
	f := newFixture(t)
	c := f.cartWith(t, "234567")
	require.NoError(t, f.store.DeleteProduct(context.Background(), "2"))

	_, _, err := f.svc.Checkout(context.Background(), c)
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCheckout_RederivesPricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	c := f.cartWith(t, "234567")

	edited := bread
	edited.Price = 200
	require.NoError(t, f.store.UpsertProduct(context.Background(), edited))

	sale, _, err := f.svc.Checkout(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, models.Money(200), sale.Items[0].Price)
	assert.Equal(t, models.Money(215), sale.Total)
}

func TestCheckout_TotalImmutableAfterPriceEdit(t *testing.T) {
	f := newFixture(t)
	sale, _, err := f.svc.Checkout(context.Background(), f.cartWith(t, "234567", "234567"))
	require.NoError(t, err)

	edited := bread
	edited.Price = 999
	edited.Stock = 28
	require.NoError(t, f.store.UpsertProduct(context.Background(), edited))

	stored, err := f.store.GetSale(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Money(390), stored.Total)
	assert.Equal(t, models.Money(180), stored.Items[0].Price)
}

func TestCheckout_StockConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var sold int
	for i := 0; i < 5; i++ {
		sale, _, err := f.svc.Checkout(ctx, f.cartWith(t, "234567", "234567", "234567"))
		require.NoError(t, err)
		sold += sale.ItemCount()
	}
	assert.Equal(t, 30, f.stock(t, "2")+sold)
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const buyers = 10
	carts := make([]*cart.Cart, buyers)
	for i := range carts {
		carts[i] = f.cartWith(t, "123456")
	}

	var wg sync.WaitGroup
	errs := make(chan error, buyers)
	for _, c := range carts {
		wg.Add(1)
		go func(c *cart.Cart) {
			defer wg.Done()
			_, _, err := f.svc.Checkout(ctx, c)
			errs <- err
		}(c)
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrInsufficientStock):
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, buyers-1, rejected)
	assert.Equal(t, 0, f.stock(t, "1"))

	sales, err := f.store.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
}

type scriptedIDs struct {
	mu    sync.Mutex
	sales []string
	n     int
}

func (g *scriptedIDs) NewSaleID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.sales[min(g.n, len(g.sales)-1)]
	g.n++
	return id
}

func (g *scriptedIDs) NewTokenID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("TKN-%d", g.n)
}

func TestCheckout_RegeneratesOnCollision(t *testing.T) {
	ids := &scriptedIDs{sales: []string{"S-taken", "S-fresh"}}
	f := newFixture(t, WithIDGenerator(ids))
	ctx := context.Background()
	require.NoError(t, f.store.AppendSale(ctx, models.SaleRecord{ID: "S-taken", Timestamp: fixedNow}))

	sale, token, err := f.svc.Checkout(ctx, f.cartWith(t, "123456"))
	require.NoError(t, err)
	assert.Equal(t, "S-fresh", sale.ID)
	assert.Equal(t, sale.ID, token.SaleID)
	assert.Equal(t, 0, f.stock(t, "1"))
}

func TestCheckout_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ids := &scriptedIDs{sales: []string{"S-taken"}}
	f := newFixture(t, WithIDGenerator(ids))
	ctx := context.Background()
	require.NoError(t, f.store.AppendSale(ctx, models.SaleRecord{ID: "S-taken", Timestamp: fixedNow}))

	_, _, err := f.svc.Checkout(ctx, f.cartWith(t, "123456"))
	assert.ErrorIs(t, err, models.ErrDuplicateID)
	assert.Equal(t, maxIDAttempts, ids.n)
	assert.Equal(t, 1, f.stock(t, "1"))
}

func TestCheckout_CustomValidity(t *testing.T) {
	f := newFixture(t, WithValidity(5*time.Minute))
	_, token, err := f.svc.Checkout(context.Background(), f.cartWith(t, "234567"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(5*time.Minute), token.ExpiresAt)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturePublisher) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func TestCheckout_EmitsSaleCompleted(t *testing.T) {
	pub := &capturePublisher{}
	emitter := events.NewEmitter(pub, nil)
	f := newFixture(t, WithEvents(emitter))

	sale, _, err := f.svc.Checkout(context.Background(), f.cartWith(t, "123456"))
	require.NoError(t, err)
	emitter.Wait()

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeSaleCompleted, pub.events[0].Type)
	assert.Equal(t, sale.ID, pub.events[0].SaleID)
	assert.Equal(t, models.Money(270), pub.events[0].Total)
}

func TestAggregate(t *testing.T) {
	items := []models.CartItem{
		{Product: bread, Quantity: 2},
		{Product: milk, Quantity: 1},
		{Product: bread, Quantity: 3},
		{Product: milk, Quantity: 0},
	}
	assert.Equal(t, []line{{productID: "2", quantity: 5}, {productID: "1", quantity: 1}}, aggregate(items))
}

// gatedStore holds each transaction until release is closed.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	g.entered <- struct{}{}
	<-g.release
	return g.Store.WithinTx(ctx, fn)
}

func TestCheckout_SameCartTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gated := &gatedStore{Store: f.store, entered: make(chan struct{}, 2), release: make(chan struct{})}
	svc := NewService(gated, nil, WithClock(func() time.Time { return fixedNow }))

	c := f.cartWith(t, "234567")

	done := make(chan error, 1)
	go func() {
		_, _, err := svc.Checkout(ctx, c)
		done <- err
	}()
	<-gated.entered

	_, _, err := svc.Checkout(ctx, c)
	assert.ErrorIs(t, err, models.ErrCheckoutInProgress)

	// a scan that lands mid-checkout is kept for the next sale
	_, err = f.engine.AddItem(ctx, c, "123456")
	require.NoError(t, err)

	close(gated.release)
	require.NoError(t, <-done)

	sales, err := f.store.ListSales(ctx)
	require.NoError(t, err)
	assert.Len(t, sales, 1)
	assert.Equal(t, 29, f.stock(t, "2"))
	assert.Equal(t, 1, f.stock(t, "1"))

	left := c.Items()
	require.Len(t, left, 1)
	assert.Equal(t, "1", left[0].ItemID())
}

func TestCheckout_FailureReleasesCart(t *testing.T) {
	f := newFixture(t)
	c := f.cartWith(t, "123456")
	require.NoError(t, f.store.DeleteProduct(context.Background(), "1"))

	_, _, err := f.svc.Checkout(context.Background(), c)
	require.ErrorIs(t, err, models.ErrProductNotFound)

	require.NoError(t, f.store.UpsertProduct(context.Background(), milk))
	_, _, err = f.svc.Checkout(context.Background(), c)
	assert.NoError(t, err)
}

// recordingStore logs the product ids touched inside transactions.
type recordingStore struct {
	*memory.Store
	mu      sync.Mutex
	reads   []string
	adjusts []string
}

type recordingTx struct {
	repository.Tx
	store *recordingStore
}

func (r recordingTx) ProductByID(ctx context.Context, id string) (models.Product, error) {
	r.store.mu.Lock()
	r.store.reads = append(r.store.reads, id)
	r.store.mu.Unlock()
	return r.Tx.ProductByID(ctx, id)
}

func (r recordingTx) AdjustStock(ctx context.Context, id string, delta int) error {
	r.store.mu.Lock()
	r.store.adjusts = append(r.store.adjusts, id)
	r.store.mu.Unlock()
	return r.Tx.AdjustStock(ctx, id, delta)
}

func (r *recordingStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return r.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return fn(ctx, recordingTx{Tx: tx, store: r})
	})
}

func TestCheckout_LocksInProductOrder(t *testing.T) {
	f := newFixture(t)
	rec := &recordingStore{Store: f.store}
	svc := NewService(rec, nil, WithClock(func() time.Time { return fixedNow }))

	c := f.cartWith(t, "234567", "123456")
	sale, _, err := svc.Checkout(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, rec.reads)
	assert.Equal(t, []string{"1", "2"}, rec.adjusts)

	require.Len(t, sale.Items, 2)
	assert.Equal(t, "2", sale.Items[0].ItemID())
	assert.Equal(t, "1", sale.Items[1].ItemID())
}

func TestCheckout_OverlappingCartsOppositeOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.store.UpsertProduct(ctx, models.Product{ID: "1", Barcode: "123456", Name: "Fresh Milk 1L", Price: 250, Tax: 20, Stock: 10}))

	carts := []*cart.Cart{
		f.cartWith(t, "123456", "234567"),
		f.cartWith(t, "234567", "123456"),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(carts))
	for i, c := range carts {
		i, c := i, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, errs[i] = f.svc.Checkout(ctx, c)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 8, f.stock(t, "1"))
	assert.Equal(t, 28, f.stock(t, "2"))
}
