package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/selfcheckout/internal/app"
	"github.com/mamadbah2/selfcheckout/internal/config"
	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

func newServices(t *testing.T) *app.Services {
	t.Helper()
	cfg := &config.Config{
		Store:     config.StoreConfig{Driver: config.DriverMemory},
		Checkout:  config.CheckoutConfig{TokenValidity: 30 * time.Minute},
		Reporting: config.ReportingConfig{Timezone: "UTC"},
		Events:    config.EventsConfig{Driver: config.EventsNone},
	}
	svc, err := app.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	return svc
}

func run(t *testing.T, svc *app.Services, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(func(context.Context, rootOptions) (*app.Services, error) { return svc, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSeedAndList(t *testing.T) {
	svc := newServices(t)

	out, err := run(t, svc, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 4 product(s)\n", out)

	out, err = run(t, svc, "seed")
	require.NoError(t, err)
	assert.Equal(t, "seeded 0 product(s)\n", out)

	out, err = run(t, svc, "products", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Fresh Milk 1L")
	assert.Contains(t, out, "8.50")
}

func TestSeedFromFile(t *testing.T) {
	svc := newServices(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - barcode: \"42\"\n    name: Oat Milk\n    price: \"3.10\"\n    tax: \"0.25\"\n    stock: 9\n"), 0o600))

	out, err := run(t, svc, "seed", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "seeded 1 product(s)\n", out)

	p, err := svc.Store.ProductByBarcode(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, models.Money(310), p.Price)
}

func TestTokensAndSales(t *testing.T) {
	ctx := context.Background()
	svc := newServices(t)
	_, err := svc.SeedCatalog(ctx, "")
	require.NoError(t, err)

	c := svc.Sessions.Create()
	_, err = svc.Cart.AddItem(ctx, c, "123456")
	require.NoError(t, err)
	sale, token, err := svc.Checkout.Checkout(ctx, c)
	require.NoError(t, err)

	out, err := run(t, svc, "sales", "list")
	require.NoError(t, err)
	assert.Contains(t, out, sale.ID)
	assert.Contains(t, out, "2.70")

	_, err = run(t, svc, "sales", "list", "--date", "yesterday")
	assert.Error(t, err)

	out, err = run(t, svc, "tokens", "verify", token.ID)
	require.NoError(t, err)
	assert.Equal(t, "Verified — allow exit\n", out)

	out, err = run(t, svc, "tokens", "verify", token.ID)
	assert.ErrorIs(t, err, models.ErrTokenAlreadyUsed)
	assert.Equal(t, "Token already used\n", out)

	out, err = run(t, svc, "tokens", "sweep")
	require.NoError(t, err)
	assert.Equal(t, "expired 0 token(s)\n", out)

	out, err = run(t, svc, "report", "--date", sale.Timestamp.Format(dateLayout))
	require.NoError(t, err)
	assert.Contains(t, out, "1 sale(s), 1 unit(s), revenue 2.70")

	_, err = run(t, svc, "tokens", "verify")
	assert.Error(t, err)
}
