// Package inventory implements the staff catalog operations.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
	"github.com/mamadbah2/selfcheckout/internal/repository"
)

// Service manages catalog records.
type Service struct {
	catalog repository.CatalogStore
	logger  *zap.Logger
	newID   func() string
}

// NewService wires an inventory service.
func NewService(catalog repository.CatalogStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{catalog: catalog, logger: logger, newID: uuid.NewString}
}

// Create validates p, assigns a fresh id and stores it.
func (s *Service) Create(ctx context.Context, p models.Product) (models.Product, error) {
	p = normalize(p)
	if err := p.Validate(); err != nil {
		return models.Product{}, err
	}
	if err := s.ensureBarcodeFree(ctx, p.Barcode, ""); err != nil {
		return models.Product{}, err
	}

	p.ID = s.newID()
	if err := s.catalog.UpsertProduct(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.logger.Info("product created", zap.String("product_id", p.ID), zap.String("barcode", p.Barcode))
	return p, nil
}

// Update overwrites every editable field of an existing product.
func (s *Service) Update(ctx context.Context, id string, p models.Product) (models.Product, error) {
	if _, err := s.catalog.ProductByID(ctx, id); err != nil {
		return models.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	p = normalize(p)
	p.ID = id
	if err := p.Validate(); err != nil {
		return models.Product{}, err
	}
	if err := s.ensureBarcodeFree(ctx, p.Barcode, id); err != nil {
		return models.Product{}, err
	}

	if err := s.catalog.UpsertProduct(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}

	s.logger.Info("product updated", zap.String("product_id", id), zap.Int("stock", p.Stock))
	return p, nil
}

// Delete removes a product. Existing sales keep their snapshots.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id string) (models.Product, error) {
	return s.catalog.ProductByID(ctx, id)
}

// List returns the catalog.
func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	return s.catalog.ListProducts(ctx)
}

// Seed inserts the products whose barcode is not in the catalog yet and returns how
// many were added. Seed ids are kept when present.
func (s *Service) Seed(ctx context.Context, products []models.Product) (int, error) {
	var added int
	for _, p := range products {
		p = normalize(p)
		if err := p.Validate(); err != nil {
			return added, fmt.Errorf("seed %q: %w", p.Name, err)
		}

		if _, err := s.catalog.ProductByBarcode(ctx, p.Barcode); err == nil {
			continue
		} else if !isNotFound(err) {
			return added, fmt.Errorf("seed %q: %w", p.Name, err)
		}

		if p.ID == "" {
			p.ID = s.newID()
		} else if _, err := s.catalog.ProductByID(ctx, p.ID); err == nil {
			p.ID = s.newID()
		}

		if err := s.catalog.UpsertProduct(ctx, p); err != nil {
			return added, fmt.Errorf("seed %q: %w", p.Name, err)
		}
		added++
	}

	if added > 0 {
		s.logger.Info("catalog seeded", zap.Int("added", added))
	}
	return added, nil
}

func (s *Service) ensureBarcodeFree(ctx context.Context, barcode, ownerID string) error {
	existing, err := s.catalog.ProductByBarcode(ctx, barcode)
	switch {
	case err == nil && existing.ID != ownerID:
		return &models.ValidationError{Field: "barcode", Reason: "already assigned to " + existing.Name}
	case err == nil, isNotFound(err):
		return nil
	default:
		return err
	}
}

func normalize(p models.Product) models.Product {
	p.Name = strings.TrimSpace(p.Name)
	p.Barcode = strings.TrimSpace(p.Barcode)
	return p
}

func isNotFound(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
