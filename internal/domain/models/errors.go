package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the stores and services.
var (
	ErrNotFound           = errors.New("not found")
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrTokenNotFound      = fmt.Errorf("token %w", ErrNotFound)
	ErrSaleNotFound       = fmt.Errorf("sale %w", ErrNotFound)
	ErrOutOfStock         = errors.New("product out of stock")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrTokenAlreadyUsed   = errors.New("token already used")
	ErrTokenExpired       = errors.New("token expired")
	ErrValidation         = errors.New("validation failed")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrDuplicateID        = errors.New("duplicate identifier")
	ErrStatusConflict     = errors.New("token status changed concurrently")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
)

// InsufficientStockError reports the product whose stock cannot cover a checkout line.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

// Is makes errors.Is(err, ErrInsufficientStock) hold.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ValidationError describes malformed admin input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unavailable wraps a collaborator I/O failure so callers can match ErrStorageUnavailable.
// The driver error stays in the chain; transaction retry logic inspects its labels.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
