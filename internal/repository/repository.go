// Package repository declares the storage contracts the checkout core depends on.
package repository

import (
	"context"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

// CatalogStore holds product records.
type CatalogStore interface {
	ProductByBarcode(ctx context.Context, barcode string) (models.Product, error)
	ProductByID(ctx context.Context, id string) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	// AdjustStock adds delta to the product's stock. A result below zero fails with
	// *models.InsufficientStockError and leaves stock unchanged.
	AdjustStock(ctx context.Context, id string, delta int) error
	// UpsertProduct creates or fully overwrites a product by id. A barcode already
	// owned by another product fails with models.ErrValidation.
	UpsertProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, id string) error
}

// LedgerStore holds the append-only sales log and the token table.
type LedgerStore interface {
	// AppendSale and AppendToken fail with models.ErrDuplicateID when the id (or the
	// token's sale id) is already present.
	AppendSale(ctx context.Context, sale models.SaleRecord) error
	AppendToken(ctx context.Context, token models.ExitToken) error
	GetSale(ctx context.Context, id string) (models.SaleRecord, error)
	GetToken(ctx context.Context, id string) (models.ExitToken, error)
	// UpdateTokenStatus moves a token from one status to another atomically. When the
	// stored status is not from it fails with models.ErrStatusConflict.
	UpdateTokenStatus(ctx context.Context, id string, from, to models.TokenStatus) error
	ListSales(ctx context.Context) ([]models.SaleRecord, error)
	ListTokens(ctx context.Context) ([]models.ExitToken, error)
}

// ReportStore archives daily reports.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Tx is the view of the stores available inside a transaction.
type Tx interface {
	CatalogStore
	LedgerStore
}

// Store is the full persistence surface injected into the services.
type Store interface {
	Tx
	ReportStore
	// WithinTx runs fn as one serializable unit: either every write made through tx
	// becomes visible or none does. fn must only use the ctx and tx it receives.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close(ctx context.Context) error
}
