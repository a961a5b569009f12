package inventory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, nil)
	var n int
	svc.newID = func() string {
		n++
		return fmt.Sprintf("p-%d", n)
	}
	return svc, store
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	created, err := svc.Create(ctx, models.Product{Barcode: " 111 ", Name: "Apples", Price: 120, Tax: 10, Stock: 5})
	require.NoError(t, err)
	assert.Equal(t, "p-1", created.ID)
	assert.Equal(t, "111", created.Barcode)

	stored, err := store.ProductByBarcode(ctx, "111")
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	t.Run("rejects invalid fields", func(t *testing.T) {
		cases := []models.Product{
			{Barcode: "222", Name: "  "},
			{Barcode: "", Name: "Pears"},
			{Barcode: "222", Name: "Pears", Price: -1},
			{Barcode: "222", Name: "Pears", Tax: -1},
			{Barcode: "222", Name: "Pears", Stock: -1},
		}
		for _, p := range cases {
			_, err := svc.Create(ctx, p)
			assert.ErrorIs(t, err, models.ErrValidation, "%+v", p)
		}
	})

	t.Run("rejects duplicate barcode", func(t *testing.T) {
		_, err := svc.Create(ctx, models.Product{Barcode: "111", Name: "Other"})
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	apples, err := svc.Create(ctx, models.Product{Barcode: "111", Name: "Apples", Price: 120, Stock: 5})
	require.NoError(t, err)
	pears, err := svc.Create(ctx, models.Product{Barcode: "222", Name: "Pears", Price: 150, Stock: 5})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, apples.ID, models.Product{ID: "ignored", Barcode: "111", Name: "Red Apples", Price: 130, Tax: 5, Stock: 9})
	require.NoError(t, err)
	assert.Equal(t, apples.ID, updated.ID)

	got, err := svc.Get(ctx, apples.ID)
	require.NoError(t, err)
	assert.Equal(t, "Red Apples", got.Name)
	assert.Equal(t, 9, got.Stock)

	_, err = svc.Update(ctx, apples.ID, models.Product{Barcode: pears.Barcode, Name: "Clash"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Update(ctx, "missing", models.Product{Barcode: "333", Name: "Ghost"})
	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	p, err := svc.Create(ctx, models.Product{Barcode: "111", Name: "Apples"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), models.ErrNotFound)

	products, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestService_Seed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	added, err := svc.Seed(ctx, DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, 4, added)

	added, err = svc.Seed(ctx, DefaultCatalog())
	require.NoError(t, err)
	assert.Zero(t, added, "seeding is idempotent")

	milk, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "123456", milk.Barcode)
	assert.Equal(t, "2.50", milk.Price.String())

	// An id clash with a different barcode gets a fresh id.
	added, err = svc.Seed(ctx, []models.Product{{ID: "1", Barcode: "999", Name: "Tea"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	milk, err = svc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh Milk 1L", milk.Name)
}

func TestLoadSeed(t *testing.T) {
	t.Run("default catalog", func(t *testing.T) {
		products, err := LoadSeed("")
		require.NoError(t, err)
		assert.Len(t, products, 4)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		doc := `products:
  - id: "10"
    barcode: "555"
    name: Sparkling Water
    price: "0.90"
    tax: 0.05
    stock: 12
`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		products, err := LoadSeed(path)
		require.NoError(t, err)
		require.Len(t, products, 1)
		assert.Equal(t, models.Product{ID: "10", Barcode: "555", Name: "Sparkling Water", Price: 90, Tax: 5, Stock: 12}, products[0])
	})

	t.Run("empty document", func(t *testing.T) {
		_, err := ParseSeed([]byte("products: []\n"))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
