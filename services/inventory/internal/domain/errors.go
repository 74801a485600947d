package domain

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product already exists")
	ErrProductInactive      = errors.New("product is inactive")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrInvalidProductName   = errors.New("product name is required")
	ErrInvalidMinStock      = errors.New("minimum stock level cannot be negative")
)

// InsufficientStockError is returned when a stock operation asks for more
// units than the product currently holds in the relevant bucket.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.SKU, e.Requested, e.Available)
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(sku string, requested, available int) *InsufficientStockError {
	return &InsufficientStockError{
		SKU:       sku,
		Requested: requested,
		Available: available,
	}
}

// IsInsufficientStock checks whether err is an InsufficientStockError
func IsInsufficientStock(err error) bool {
	var target *InsufficientStockError
	return errors.As(err, &target)
}

// OptimisticLockError is returned by the repository when a conditional save
// finds the stored version differs from the version the caller loaded.
type OptimisticLockError struct {
	SKU             string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("optimistic lock conflict on %s: expected version %d, found %d",
		e.SKU, e.ExpectedVersion, e.ActualVersion)
}

// NewOptimisticLockError creates an OptimisticLockError
func NewOptimisticLockError(sku string, expected, actual int64) *OptimisticLockError {
	return &OptimisticLockError{
		SKU:             sku,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// IsOptimisticLock checks whether err is an OptimisticLockError
func IsOptimisticLock(err error) bool {
	var target *OptimisticLockError
	return errors.As(err, &target)
}
