package domain

import "context"

// WorkOrderRepository persists the WorkOrder aggregate. Create and Save
// stage the aggregate's drained events to the outbox within the same
// transaction as the document write.
type WorkOrderRepository interface {
	// Create inserts a new work order. Returns ErrWorkOrderAlreadyExists
	// when the order number is taken within the tenant.
	Create(ctx context.Context, order *WorkOrder) error

	// Save replaces the aggregate conditionally on expectedVersion and
	// returns OptimisticLockError on a mismatch
	Save(ctx context.Context, order *WorkOrder, expectedVersion int64) error

	// FindByID retrieves a work order by aggregate id
	FindByID(ctx context.Context, id string) (*WorkOrder, error)

	// FindByOrderNumber retrieves a work order by its business number
	FindByOrderNumber(ctx context.Context, orderNumber string) (*WorkOrder, error)

	// List retrieves a page of work orders, optionally filtered by status
	List(ctx context.Context, status WorkOrderStatus, offset, limit int) ([]*WorkOrder, int64, error)
}
