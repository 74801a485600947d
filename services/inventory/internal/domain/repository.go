package domain

import (
	"context"
	"time"
)

// ProductRepository persists the product aggregate
type ProductRepository interface {
	// Create inserts a new product and stages its buffered events.
	// Returns ErrProductAlreadyExists when the SKU is taken for the tenant.
	Create(ctx context.Context, product *Product) error

	// Save persists the aggregate conditionally on expectedVersion, staging
	// the buffered events in the same transaction. A version mismatch
	// returns OptimisticLockError carrying the stored version.
	Save(ctx context.Context, product *Product, expectedVersion int64) error

	// FindBySKU retrieves a product by SKU within the tenant in context
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// FindByID retrieves a product by aggregate id
	FindByID(ctx context.Context, id string) (*Product, error)

	// List retrieves products with pagination, optionally filtered to
	// active products only
	List(ctx context.Context, activeOnly bool, offset, limit int) ([]*Product, int64, error)

	// FindBelowMinStock retrieves products whose available stock is under
	// their minimum level
	FindBelowMinStock(ctx context.Context) ([]*Product, error)
}

// MovementRepository persists the append-only stock ledger
type MovementRepository interface {
	// Save appends a ledger entry
	Save(ctx context.Context, movement *StockMovement) error

	// SaveAll appends multiple ledger entries
	SaveAll(ctx context.Context, movements []*StockMovement) error

	// FindBySKU retrieves movements for a SKU, newest first
	FindBySKU(ctx context.Context, sku string, from, to time.Time, offset, limit int) ([]*StockMovement, int64, error)

	// FindByReference retrieves movements recorded against an external
	// reference such as a work order number
	FindByReference(ctx context.Context, reference string) ([]*StockMovement, error)
}
