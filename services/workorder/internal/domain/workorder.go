package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/autofix-platform/autofix/pkg/events"
)

// WorkOrder is the aggregate root for a repair job. Customer and vehicle
// data are point-in-time snapshots taken at creation. Status moves along a
// strict directed graph; COMPLETED and CANCELED are terminal.
//
// Version is the optimistic concurrency token. The aggregate never touches
// it; the repository increments it on a successful conditional save.
type WorkOrder struct {
	ID          string           `bson:"_id" json:"id"`
	TenantID    string           `bson:"tenantId" json:"tenantId"`
	OrderNumber string           `bson:"orderNumber" json:"orderNumber"`
	Customer    CustomerSnapshot `bson:"customer" json:"customer"`
	Vehicle     VehicleSnapshot  `bson:"vehicle" json:"vehicle"`
	Status      WorkOrderStatus  `bson:"status" json:"status"`
	Items       []OrderItem      `bson:"items" json:"items"`
	Notes       string           `bson:"notes,omitempty" json:"notes,omitempty"`
	Version     int64            `bson:"version" json:"version"`
	CreatedAt   time.Time        `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time        `bson:"updatedAt" json:"updatedAt"`
	CompletedAt *time.Time       `bson:"completedAt,omitempty" json:"completedAt,omitempty"`

	domainEvents []events.DomainEvent `bson:"-"`
}

// NewWorkOrder opens a work order in DRAFT with the given snapshots
func NewWorkOrder(tenantID, orderNumber string, customer CustomerSnapshot, vehicle VehicleSnapshot) (*WorkOrder, error) {
	if orderNumber == "" {
		return nil, ErrInvalidOrderNumber
	}
	if err := customer.validate(); err != nil {
		return nil, err
	}
	if err := vehicle.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &WorkOrder{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		OrderNumber: orderNumber,
		Customer:    customer,
		Vehicle:     vehicle,
		Status:      StatusDraft,
		Items:       []OrderItem{},
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	order.recordEvent(NewWorkOrderCreatedEvent(order.ID, orderNumber, tenantID, customer.CustomerID))

	return order, nil
}

// AddItem appends a line item
func (w *WorkOrder) AddItem(item OrderItem) error {
	if w.Status.IsTerminal() {
		return ErrAlreadyFinalized
	}

	w.Items = append(w.Items, item)
	w.touch()

	w.recordEvent(NewWorkOrderItemAddedEvent(w.ID, w.TenantID, item))

	return nil
}

// RemoveItem removes the line item with the given id
func (w *WorkOrder) RemoveItem(itemID string) error {
	if w.Status.IsTerminal() {
		return ErrAlreadyFinalized
	}

	for i, item := range w.Items {
		if item.ID == itemID {
			w.Items = append(w.Items[:i], w.Items[i+1:]...)
			w.touch()
			return nil
		}
	}

	return ErrItemNotFound
}

// UpdateNotes replaces the free-form notes
func (w *WorkOrder) UpdateNotes(notes string) error {
	if w.Status.IsTerminal() {
		return ErrAlreadyFinalized
	}

	w.Notes = notes
	w.touch()

	return nil
}

// ChangeStatus moves the order along the lifecycle graph. Requesting the
// current status is a no-op. Completion goes through Complete, which owns
// the item precondition and the completion event.
func (w *WorkOrder) ChangeStatus(target WorkOrderStatus, changedBy string) error {
	if target == w.Status {
		return nil
	}
	if !w.Status.CanTransitionTo(target) {
		return NewInvalidStatusTransitionError(w.Status, target)
	}
	if target == StatusCompleted {
		return w.Complete(changedBy)
	}

	w.transition(target, changedBy)

	if target == StatusApproved {
		w.recordEvent(NewWorkOrderApprovedEvent(w.ID, w.OrderNumber, w.TenantID, changedBy, w.Items))
	}

	return nil
}

// Complete finalizes the order. At least one line item is required; the
// completion event carries every line so the inventory side can confirm
// consumption of the reserved parts.
func (w *WorkOrder) Complete(completedBy string) error {
	if w.Status.IsTerminal() {
		return ErrAlreadyFinalized
	}
	if !w.Status.CanTransitionTo(StatusCompleted) {
		return NewInvalidStatusTransitionError(w.Status, StatusCompleted)
	}
	if len(w.Items) == 0 {
		return ErrInvalidOperation
	}

	w.transition(StatusCompleted, completedBy)
	now := w.UpdatedAt
	w.CompletedAt = &now

	w.recordEvent(NewWorkOrderCompletedEvent(w.ID, w.OrderNumber, w.TenantID, now, w.Items))

	return nil
}

// Cancel moves the order to CANCELED from any non-terminal state
func (w *WorkOrder) Cancel(canceledBy string) error {
	return w.ChangeStatus(StatusCanceled, canceledBy)
}

// PartsTotal sums the subtotals of PART lines
func (w *WorkOrder) PartsTotal(currency string) (Money, error) {
	return w.sumItems(currency, ItemTypePart)
}

// LaborTotal sums the subtotals of SERVICE lines
func (w *WorkOrder) LaborTotal(currency string) (Money, error) {
	return w.sumItems(currency, ItemTypeService)
}

// GrandTotal sums the subtotals of all lines
func (w *WorkOrder) GrandTotal(currency string) (Money, error) {
	parts, err := w.PartsTotal(currency)
	if err != nil {
		return Money{}, err
	}
	labor, err := w.LaborTotal(currency)
	if err != nil {
		return Money{}, err
	}
	return parts.Add(labor)
}

func (w *WorkOrder) sumItems(currency string, itemType ItemType) (Money, error) {
	total := ZeroMoney(currency)
	for _, item := range w.Items {
		if item.Type != itemType {
			continue
		}
		subtotal, err := item.Subtotal()
		if err != nil {
			return Money{}, err
		}
		total, err = total.Add(subtotal)
		if err != nil {
			return Money{}, err
		}
	}
	return total, nil
}

// PullDomainEvents drains the buffered events. The caller owns the returned
// slice; the aggregate's buffer is empty afterwards.
func (w *WorkOrder) PullDomainEvents() []events.DomainEvent {
	drained := w.domainEvents
	w.domainEvents = nil
	return drained
}

func (w *WorkOrder) transition(target WorkOrderStatus, changedBy string) {
	old := w.Status
	w.Status = target
	w.touch()

	w.recordEvent(NewWorkOrderStatusChangedEvent(w.ID, w.OrderNumber, w.TenantID, old, target, changedBy))
}

func (w *WorkOrder) recordEvent(event events.DomainEvent) {
	w.domainEvents = append(w.domainEvents, event)
}

func (w *WorkOrder) touch() {
	w.UpdatedAt = time.Now().UTC()
}
