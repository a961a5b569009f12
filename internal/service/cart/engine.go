package cart

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

// ProductFinder is the catalog lookup the engine needs.
type ProductFinder interface {
	ProductByBarcode(ctx context.Context, barcode string) (models.Product, error)
}

// Engine resolves scanned barcodes into cart lines. It only reads the catalog; stock is
// reserved at checkout, not at scan time.
type Engine struct {
	catalog ProductFinder
	logger  *zap.Logger
}

// NewEngine wires an engine to the catalog.
func NewEngine(catalog ProductFinder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{catalog: catalog, logger: logger}
}

// AddItem looks the barcode up and adds one unit to the cart.
func (e *Engine) AddItem(ctx context.Context, c *Cart, barcode string) (models.CartItem, error) {
	product, err := e.catalog.ProductByBarcode(ctx, barcode)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("scan %s: %w", barcode, err)
	}
	if product.Stock <= 0 {
		return models.CartItem{}, fmt.Errorf("scan %s: %w", barcode, models.ErrOutOfStock)
	}

	item := c.add(product)
	e.logger.Debug("item added",
		zap.String("cart_id", c.ID()),
		zap.String("product_id", product.ID),
		zap.Int("quantity", item.Quantity),
	)
	return item, nil
}
