package domain

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrWorkOrderNotFound      = errors.New("work order not found")
	ErrWorkOrderAlreadyExists = errors.New("work order already exists")
	ErrAlreadyFinalized       = errors.New("work order is finalized and cannot be modified")
	ErrInvalidOperation       = errors.New("operation not allowed in current state")
	ErrItemNotFound           = errors.New("item not found on work order")
	ErrInvalidOrderNumber     = errors.New("invalid order number")
	ErrInvalidCustomer        = errors.New("customer snapshot is incomplete")
	ErrInvalidVehicle         = errors.New("vehicle snapshot is incomplete")
	ErrInvalidItemQuantity    = errors.New("item quantity must be positive")
	ErrInvalidItemName        = errors.New("item name is required")
	ErrInvalidServiceCode     = errors.New("service code is required")
	ErrDiscountExceedsTotal   = errors.New("discount exceeds line total")
)

// InvalidStatusTransitionError is returned when a requested status change has
// no edge in the lifecycle graph, including any change out of a terminal state.
type InvalidStatusTransitionError struct {
	From WorkOrderStatus
	To   WorkOrderStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

// NewInvalidStatusTransitionError creates an InvalidStatusTransitionError
func NewInvalidStatusTransitionError(from, to WorkOrderStatus) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{From: from, To: to}
}

// IsInvalidStatusTransition reports whether err is an InvalidStatusTransitionError
func IsInvalidStatusTransition(err error) bool {
	var target *InvalidStatusTransitionError
	return errors.As(err, &target)
}

// OptimisticLockError is returned when a conditional save found a version
// other than the one the aggregate was loaded at.
type OptimisticLockError struct {
	WorkOrderID     string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("concurrent update on work order %s: expected version %d, found %d",
		e.WorkOrderID, e.ExpectedVersion, e.ActualVersion)
}

// NewOptimisticLockError creates an OptimisticLockError
func NewOptimisticLockError(workOrderID string, expected, actual int64) *OptimisticLockError {
	return &OptimisticLockError{
		WorkOrderID:     workOrderID,
		ExpectedVersion: expected,
		ActualVersion:   actual,
	}
}

// IsOptimisticLock reports whether err is an OptimisticLockError
func IsOptimisticLock(err error) bool {
	var target *OptimisticLockError
	return errors.As(err, &target)
}
