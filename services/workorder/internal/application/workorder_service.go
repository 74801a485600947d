package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/resilience"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/workorder/internal/domain"
)

// Lock retry tuning. A work order is normally mutated by one advisor at a
// time, so conflicts are rarer than on the inventory side, but the same
// bounded retry applies.
const (
	lockRetryAttempts = 3
)

// Availability is the answer from the inventory service's point-in-time
// stock check
type Availability struct {
	SKU        string
	Requested  int
	Available  int
	Sufficient bool
}

// AvailabilityChecker asks the inventory service whether a SKU can cover a
// quantity. The answer is advisory; the reservation triggered by approval is
// what actually holds stock.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, sku string, quantity int) (*Availability, error)
}

// ErrInventoryUnavailable is returned by an AvailabilityChecker when the
// inventory service cannot be reached, including when the circuit breaker
// is open.
var ErrInventoryUnavailable = errors.New("inventory service unavailable")

// WorkOrderApplicationService handles work-order commands. Every state
// change goes through the optimistic-lock save path; domain events are
// staged to the outbox by the repository inside the save transaction.
type WorkOrderApplicationService struct {
	orders    domain.WorkOrderRepository
	inventory AvailabilityChecker
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewWorkOrderApplicationService creates a new WorkOrderApplicationService
func NewWorkOrderApplicationService(
	orders domain.WorkOrderRepository,
	inventory AvailabilityChecker,
	m *metrics.Metrics,
	logger *logging.Logger,
) *WorkOrderApplicationService {
	return &WorkOrderApplicationService{
		orders:    orders,
		inventory: inventory,
		metrics:   m,
		logger:    logger,
	}
}

// CreateWorkOrder opens a work order in DRAFT with snapshots of the customer
// and vehicle as they are right now
func (s *WorkOrderApplicationService) CreateWorkOrder(ctx context.Context, cmd CreateWorkOrderCommand) (*WorkOrderDTO, error) {
	customer := domain.CustomerSnapshot{
		CustomerID: cmd.CustomerID,
		Name:       cmd.CustomerName,
		Phone:      cmd.CustomerPhone,
		Email:      cmd.CustomerEmail,
	}
	vehicle := domain.VehicleSnapshot{
		VehicleID:    cmd.VehicleID,
		Make:         cmd.VehicleMake,
		Model:        cmd.VehicleModel,
		Year:         cmd.VehicleYear,
		LicensePlate: cmd.LicensePlate,
		VIN:          cmd.VIN,
	}

	order, err := domain.NewWorkOrder(tenant.FromContextOrDefault(ctx), newOrderNumber(), customer, vehicle)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	if cmd.Notes != "" {
		if err := order.UpdateNotes(cmd.Notes); err != nil {
			return nil, s.mapWorkOrderError(order.ID, err)
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if err == domain.ErrWorkOrderAlreadyExists {
			return nil, apperrors.ErrConflict(fmt.Sprintf("work order %s already exists", order.OrderNumber)).Wrap(err)
		}
		s.logger.WithContext(ctx).Error("Failed to create work order",
			"orderNumber", order.OrderNumber, "error", err)
		return nil, fmt.Errorf("failed to create work order: %w", err)
	}

	s.logger.WithContext(ctx).Info("Created work order",
		"workOrderId", order.ID, "orderNumber", order.OrderNumber)
	return ToWorkOrderDTO(order), nil
}

// AddPartItem adds a PART line after an advisory availability check against
// the inventory service. The check is a point-in-time read; it narrows the
// window for unfulfillable orders but the reservation on approval is what
// actually holds stock.
func (s *WorkOrderApplicationService) AddPartItem(ctx context.Context, cmd AddPartItemCommand) (*WorkOrderDTO, error) {
	sku, err := domain.NewSKU(cmd.SKU)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	unitPrice, err := domain.NewMoney(cmd.UnitPrice, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}
	discount, err := domain.NewMoney(cmd.Discount, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	item, err := domain.NewPartItem(sku, cmd.PartName, cmd.Quantity, unitPrice, discount)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	availability, err := s.inventory.CheckAvailability(ctx, cmd.SKU, cmd.Quantity)
	if err != nil {
		if errors.Is(err, ErrInventoryUnavailable) {
			s.logger.WithContext(ctx).Error("Inventory availability check unavailable",
				"sku", cmd.SKU, "error", err)
			return nil, apperrors.ErrServiceUnavailable("inventory").Wrap(err)
		}
		return nil, err
	}
	if !availability.Sufficient {
		return nil, apperrors.ErrUnprocessable(fmt.Sprintf(
			"insufficient stock for %s: requested %d, available %d",
			cmd.SKU, cmd.Quantity, availability.Available))
	}

	return s.mutateWorkOrder(ctx, "add_part_item", cmd.WorkOrderID, func(order *domain.WorkOrder) error {
		return order.AddItem(item)
	})
}

// AddServiceItem adds a SERVICE line. Services are not stocked, so there is
// no availability check.
func (s *WorkOrderApplicationService) AddServiceItem(ctx context.Context, cmd AddServiceItemCommand) (*WorkOrderDTO, error) {
	unitPrice, err := domain.NewMoney(cmd.UnitPrice, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}
	discount, err := domain.NewMoney(cmd.Discount, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	item, err := domain.NewServiceItem(cmd.ServiceCode, cmd.Technician, cmd.Quantity, unitPrice, discount)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error()).Wrap(err)
	}

	return s.mutateWorkOrder(ctx, "add_service_item", cmd.WorkOrderID, func(order *domain.WorkOrder) error {
		return order.AddItem(item)
	})
}

// RemoveItem removes a line item
func (s *WorkOrderApplicationService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) (*WorkOrderDTO, error) {
	return s.mutateWorkOrder(ctx, "remove_item", cmd.WorkOrderID, func(order *domain.WorkOrder) error {
		return order.RemoveItem(cmd.ItemID)
	})
}

// UpdateNotes replaces the order notes
func (s *WorkOrderApplicationService) UpdateNotes(ctx context.Context, cmd UpdateNotesCommand) (*WorkOrderDTO, error) {
	return s.mutateWorkOrder(ctx, "update_notes", cmd.WorkOrderID, func(order *domain.WorkOrder) error {
		return order.UpdateNotes(cmd.Notes)
	})
}

// ChangeStatus moves the order along its lifecycle graph
func (s *WorkOrderApplicationService) ChangeStatus(ctx context.Context, cmd ChangeStatusCommand) (*WorkOrderDTO, error) {
	target := domain.WorkOrderStatus(cmd.Status)
	if !target.IsValid() {
		return nil, apperrors.ErrValidation(fmt.Sprintf("unknown status %q", cmd.Status))
	}

	var from domain.WorkOrderStatus
	result, err := s.mutateWorkOrder(ctx, "change_status", cmd.WorkOrderID, func(order *domain.WorkOrder) error {
		from = order.Status
		return order.ChangeStatus(target, cmd.ChangedBy)
	})
	if err != nil {
		return nil, err
	}

	if from != target {
		s.metrics.RecordWorkOrderTransition(string(from), string(target))
	}

	s.logger.WithContext(ctx).Info("Changed work order status",
		"workOrderId", cmd.WorkOrderID, "from", from, "to", target, "changedBy", cmd.ChangedBy)
	return result, nil
}

// mutateWorkOrder runs the load-mutate-save cycle under lock retry. Each
// attempt reloads the aggregate so the mutation applies to fresh state.
// Only version conflicts are retried; after the attempt budget the last
// conflict propagates to the caller.
func (s *WorkOrderApplicationService) mutateWorkOrder(ctx context.Context, command, workOrderID string, mutate func(*domain.WorkOrder) error) (*WorkOrderDTO, error) {
	var order *domain.WorkOrder
	attempt := 0

	retryConfig := &resilience.RetryConfig{
		MaxAttempts:     lockRetryAttempts,
		InitialDelay:    resilience.DefaultRetryInitialDelay,
		MaxDelay:        resilience.DefaultRetryMaxDelay,
		BackoffFactor:   resilience.DefaultRetryBackoffFactor,
		RetryableErrors: domain.IsOptimisticLock,
	}

	err := resilience.Retry(ctx, retryConfig, func() error {
		attempt++
		if attempt > 1 {
			s.metrics.RecordCommandRetry(command)
		}

		loaded, err := s.orders.FindByID(ctx, workOrderID)
		if err != nil {
			return err
		}

		if err := mutate(loaded); err != nil {
			return err
		}

		if err := s.orders.Save(ctx, loaded, loaded.Version); err != nil {
			if domain.IsOptimisticLock(err) {
				s.metrics.RecordLockConflict("work_order")
				s.logger.WithContext(ctx).Warn("Optimistic lock conflict",
					"workOrderId", workOrderID, "command", command, "attempt", attempt)
			}
			return err
		}

		order = loaded
		return nil
	})

	if err != nil {
		return nil, s.mapWorkOrderError(workOrderID, err)
	}

	return ToWorkOrderDTO(order), nil
}

// mapWorkOrderError translates domain errors into API errors. Unclassified
// errors pass through for the boundary to treat as internal.
func (s *WorkOrderApplicationService) mapWorkOrderError(workOrderID string, err error) error {
	switch {
	case err == domain.ErrWorkOrderNotFound:
		return apperrors.ErrNotFoundWithID("work order", workOrderID).Wrap(err)
	case err == domain.ErrItemNotFound:
		return apperrors.ErrNotFound("item").Wrap(err)
	case err == domain.ErrAlreadyFinalized,
		err == domain.ErrInvalidOperation,
		domain.IsInvalidStatusTransition(err):
		return apperrors.ErrUnprocessable(err.Error()).Wrap(err)
	case domain.IsOptimisticLock(err):
		return apperrors.ErrConcurrentUpdate("work order").Wrap(err)
	default:
		return err
	}
}

// newOrderNumber generates an order number unique enough for the per-tenant
// uniqueness index to catch the rare collision
func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
	return fmt.Sprintf("WO-%d-%s", time.Now().UTC().Year(), suffix)
}
