// Package storetest holds the behaviour every repository.Store implementation must
// show. Backends call Run from their own tests with a factory returning an empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

// Factory returns an empty store. Cleanup is registered on t by the factory.
type Factory func(t *testing.T) repository.Store

// Run executes the contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("catalog", func(t *testing.T) { testCatalog(t, newStore) })
	t.Run("ledger", func(t *testing.T) { testLedger(t, newStore) })
	t.Run("transactions", func(t *testing.T) { testWithinTx(t, newStore) })
	t.Run("concurrent stock", func(t *testing.T) { testConcurrentStock(t, newStore) })
	t.Run("concurrent status", func(t *testing.T) { testConcurrentStatus(t, newStore) })
}

var milk = models.Product{ID: "1", Barcode: "123456", Name: "Fresh Milk 1L", Price: 250, Tax: 20, Stock: 2}

func seeded(t *testing.T, newStore Factory) repository.Store {
	t.Helper()
	s := newStore(t)
	require.NoError(t, s.UpsertProduct(context.Background(), milk))
	return s
}

func testCatalog(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("lookup by barcode and id", func(t *testing.T) {
		s := seeded(t, newStore)
		p, err := s.ProductByBarcode(ctx, "123456")
		require.NoError(t, err)
		assert.Equal(t, milk, p)

		_, err = s.ProductByID(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = s.ProductByBarcode(ctx, "000")
		assert.ErrorIs(t, err, models.ErrProductNotFound)
	})

	t.Run("adjust stock never goes negative", func(t *testing.T) {
		s := seeded(t, newStore)
		require.NoError(t, s.AdjustStock(ctx, "1", -2))

		err := s.AdjustStock(ctx, "1", -1)
		assert.ErrorIs(t, err, models.ErrInsufficientStock)

		var stockErr *models.InsufficientStockError
		require.True(t, errors.As(err, &stockErr))
		assert.Equal(t, "1", stockErr.ProductID)

		p, err := s.ProductByID(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)

		assert.ErrorIs(t, s.AdjustStock(ctx, "missing", 1), models.ErrProductNotFound)
	})

	t.Run("barcode stays unique", func(t *testing.T) {
		s := seeded(t, newStore)
		err := s.UpsertProduct(ctx, models.Product{ID: "2", Barcode: "123456", Name: "Copy"})
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("upsert overwrites in place", func(t *testing.T) {
		s := seeded(t, newStore)
		edited := milk
		edited.Price = 300
		edited.Barcode = "999"
		require.NoError(t, s.UpsertProduct(ctx, edited))

		p, err := s.ProductByBarcode(ctx, "999")
		require.NoError(t, err)
		assert.Equal(t, models.Money(300), p.Price)

		_, err = s.ProductByBarcode(ctx, "123456")
		assert.ErrorIs(t, err, models.ErrProductNotFound)

		products, err := s.ListProducts(ctx)
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})

	t.Run("delete", func(t *testing.T) {
		s := seeded(t, newStore)
		require.NoError(t, s.DeleteProduct(ctx, "1"))
		assert.ErrorIs(t, s.DeleteProduct(ctx, "1"), models.ErrProductNotFound)
		_, err := s.ProductByBarcode(ctx, "123456")
		assert.ErrorIs(t, err, models.ErrProductNotFound)
	})
}

func sampleSale(id, tokenID string, at time.Time) models.SaleRecord {
	items := []models.CartItem{{Product: milk, Quantity: 1}}
	totals := models.ComputeTotals(items)
	return models.SaleRecord{
		ID:        id,
		Timestamp: at,
		Items:     items,
		Subtotal:  totals.Subtotal,
		TaxTotal:  totals.TaxTotal,
		Total:     totals.Total,
		TokenID:   tokenID,
	}
}

func sampleToken(id, saleID string, at time.Time) models.ExitToken {
	return models.ExitToken{ID: id, SaleID: saleID, Timestamp: at, ExpiresAt: at.Add(models.DefaultTokenValidity), Status: models.TokenActive}
}

func testLedger(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendSale(ctx, sampleSale("S-1", "TKN-1", at)))
	assert.ErrorIs(t, s.AppendSale(ctx, sampleSale("S-1", "TKN-X", at)), models.ErrDuplicateID)

	require.NoError(t, s.AppendToken(ctx, sampleToken("TKN-1", "S-1", at)))
	assert.ErrorIs(t, s.AppendToken(ctx, sampleToken("TKN-1", "S-2", at)), models.ErrDuplicateID)
	assert.ErrorIs(t, s.AppendToken(ctx, sampleToken("TKN-2", "S-1", at)), models.ErrDuplicateID)

	t.Run("records round trip", func(t *testing.T) {
		sale, err := s.GetSale(ctx, "S-1")
		require.NoError(t, err)
		assert.Equal(t, models.Money(270), sale.Total)
		assert.Equal(t, "TKN-1", sale.TokenID)
		require.Len(t, sale.Items, 1)
		assert.Equal(t, "123456", sale.Items[0].Barcode)
		assert.True(t, at.Equal(sale.Timestamp))

		_, err = s.GetSale(ctx, "S-404")
		assert.ErrorIs(t, err, models.ErrNotFound)
		_, err = s.GetToken(ctx, "TKN-404")
		assert.ErrorIs(t, err, models.ErrTokenNotFound)
	})

	t.Run("status compare-and-set", func(t *testing.T) {
		require.NoError(t, s.UpdateTokenStatus(ctx, "TKN-1", models.TokenActive, models.TokenVerified))
		assert.ErrorIs(t, s.UpdateTokenStatus(ctx, "TKN-1", models.TokenActive, models.TokenVerified), models.ErrStatusConflict)
		assert.ErrorIs(t, s.UpdateTokenStatus(ctx, "TKN-9", models.TokenActive, models.TokenVerified), models.ErrTokenNotFound)

		token, err := s.GetToken(ctx, "TKN-1")
		require.NoError(t, err)
		assert.Equal(t, models.TokenVerified, token.Status)
	})

	t.Run("lists", func(t *testing.T) {
		sales, err := s.ListSales(ctx)
		require.NoError(t, err)
		assert.Len(t, sales, 1)
		tokens, err := s.ListTokens(ctx)
		require.NoError(t, err)
		assert.Len(t, tokens, 1)
	})

	t.Run("daily report", func(t *testing.T) {
		require.NoError(t, s.SaveDailyReport(ctx, models.DailyReport{Date: at, SalesCount: 1, Revenue: 270, CreatedAt: at}))
	})
}

func testWithinTx(t *testing.T, newStore Factory) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("failure rolls back every write", func(t *testing.T) {
		s := seeded(t, newStore)
		boom := errors.New("boom")

		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.AppendSale(ctx, sampleSale("S-1", "TKN-1", at)); err != nil {
				return err
			}
			if err := tx.AppendToken(ctx, sampleToken("TKN-1", "S-1", at)); err != nil {
				return err
			}
			if err := tx.AdjustStock(ctx, "1", -1); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		sales, err := s.ListSales(ctx)
		require.NoError(t, err)
		assert.Empty(t, sales)
		tokens, err := s.ListTokens(ctx)
		require.NoError(t, err)
		assert.Empty(t, tokens)
		p, err := s.ProductByID(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 2, p.Stock)
	})

	t.Run("success commits", func(t *testing.T) {
		s := seeded(t, newStore)
		err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			if err := tx.AppendSale(ctx, sampleSale("S-1", "TKN-1", at)); err != nil {
				return err
			}
			if err := tx.AppendToken(ctx, sampleToken("TKN-1", "S-1", at)); err != nil {
				return err
			}
			return tx.AdjustStock(ctx, "1", -1)
		})
		require.NoError(t, err)

		p, err := s.ProductByID(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 1, p.Stock)
		_, err = s.GetSale(ctx, "S-1")
		assert.NoError(t, err)
		_, err = s.GetToken(ctx, "TKN-1")
		assert.NoError(t, err)
	})
}

func testConcurrentStock(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := seeded(t, newStore)

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
				return tx.AdjustStock(ctx, "1", -1)
			})
		}()
	}
	wg.Wait()
	close(results)

	var ok int
	for err := range results {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, milk.Stock, ok)

	p, err := s.ProductByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func testConcurrentStatus(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := newStore(t)
	at := time.Now().UTC()
	require.NoError(t, s.AppendToken(ctx, sampleToken("TKN-C", "S-C", at)))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.UpdateTokenStatus(ctx, "TKN-C", models.TokenActive, models.TokenVerified)
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflicts int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, models.ErrStatusConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
}
