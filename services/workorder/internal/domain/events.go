package domain

import (
	"time"

	"github.com/autofix-platform/autofix/pkg/events"
)

// itemLines projects order items into the wire shape carried by approval and
// completion events. SKU is only set on PART lines.
func itemLines(items []OrderItem) []events.WorkOrderItemLine {
	lines := make([]events.WorkOrderItemLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, events.WorkOrderItemLine{
			ItemID:   item.ID,
			Type:     string(item.Type),
			SKU:      item.SKU,
			Quantity: item.Quantity,
		})
	}
	return lines
}

// WorkOrderCreatedEvent is emitted when a work order is opened
type WorkOrderCreatedEvent struct {
	events.BaseEvent `bson:",inline"`

	WorkOrderID string `json:"workOrderId"`
	OrderNumber string `json:"orderNumber"`
	TenantID    string `json:"tenantId"`
	CustomerID  string `json:"customerId"`
}

// NewWorkOrderCreatedEvent creates a WorkOrderCreatedEvent
func NewWorkOrderCreatedEvent(workOrderID, orderNumber, tenantID, customerID string) *WorkOrderCreatedEvent {
	return &WorkOrderCreatedEvent{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderCreated, workOrderID),
		WorkOrderID: workOrderID,
		OrderNumber: orderNumber,
		TenantID:    tenantID,
		CustomerID:  customerID,
	}
}

// WorkOrderStatusChangedEvent is emitted on every status transition
type WorkOrderStatusChangedEvent struct {
	events.BaseEvent `bson:",inline"`

	WorkOrderID string `json:"workOrderId"`
	OrderNumber string `json:"orderNumber"`
	TenantID    string `json:"tenantId"`
	OldStatus   string `json:"oldStatus"`
	NewStatus   string `json:"newStatus"`
	ChangedBy   string `json:"changedBy,omitempty"`
}

// NewWorkOrderStatusChangedEvent creates a WorkOrderStatusChangedEvent
func NewWorkOrderStatusChangedEvent(workOrderID, orderNumber, tenantID string,
	oldStatus, newStatus WorkOrderStatus, changedBy string) *WorkOrderStatusChangedEvent {

	return &WorkOrderStatusChangedEvent{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderStatusChanged, workOrderID),
		WorkOrderID: workOrderID,
		OrderNumber: orderNumber,
		TenantID:    tenantID,
		OldStatus:   string(oldStatus),
		NewStatus:   string(newStatus),
		ChangedBy:   changedBy,
	}
}

// WorkOrderItemAddedEvent is emitted when a line item is added
type WorkOrderItemAddedEvent struct {
	events.BaseEvent `bson:",inline"`

	WorkOrderID string                   `json:"workOrderId"`
	TenantID    string                   `json:"tenantId"`
	Item        events.WorkOrderItemLine `json:"item"`
}

// NewWorkOrderItemAddedEvent creates a WorkOrderItemAddedEvent
func NewWorkOrderItemAddedEvent(workOrderID, tenantID string, item OrderItem) *WorkOrderItemAddedEvent {
	return &WorkOrderItemAddedEvent{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderItemAdded, workOrderID),
		WorkOrderID: workOrderID,
		TenantID:    tenantID,
		Item: events.WorkOrderItemLine{
			ItemID:   item.ID,
			Type:     string(item.Type),
			SKU:      item.SKU,
			Quantity: item.Quantity,
		},
	}
}

// WorkOrderApprovedEvent is emitted when a work order is approved. The
// inventory service consumes it and reserves stock for every PART line.
type WorkOrderApprovedEvent struct {
	events.BaseEvent `bson:",inline"`

	WorkOrderID string                     `json:"workOrderId"`
	OrderNumber string                     `json:"orderNumber"`
	TenantID    string                     `json:"tenantId"`
	ApprovedBy  string                     `json:"approvedBy,omitempty"`
	Items       []events.WorkOrderItemLine `json:"items"`
}

// NewWorkOrderApprovedEvent creates a WorkOrderApprovedEvent
func NewWorkOrderApprovedEvent(workOrderID, orderNumber, tenantID, approvedBy string,
	items []OrderItem) *WorkOrderApprovedEvent {

	return &WorkOrderApprovedEvent{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderApproved, workOrderID),
		WorkOrderID: workOrderID,
		OrderNumber: orderNumber,
		TenantID:    tenantID,
		ApprovedBy:  approvedBy,
		Items:       itemLines(items),
	}
}

// WorkOrderCompletedEvent is emitted when a work order completes. The
// inventory service consumes it and confirms consumption of the reserved
// stock for every PART line.
type WorkOrderCompletedEvent struct {
	events.BaseEvent `bson:",inline"`

	WorkOrderID string                     `json:"workOrderId"`
	OrderNumber string                     `json:"orderNumber"`
	TenantID    string                     `json:"tenantId"`
	CompletedAt time.Time                  `json:"completedAt"`
	Items       []events.WorkOrderItemLine `json:"items"`
}

// NewWorkOrderCompletedEvent creates a WorkOrderCompletedEvent
func NewWorkOrderCompletedEvent(workOrderID, orderNumber, tenantID string,
	completedAt time.Time, items []OrderItem) *WorkOrderCompletedEvent {

	return &WorkOrderCompletedEvent{
		BaseEvent:   events.NewBaseEvent(events.WorkOrderCompleted, workOrderID),
		WorkOrderID: workOrderID,
		OrderNumber: orderNumber,
		TenantID:    tenantID,
		CompletedAt: completedAt,
		Items:       itemLines(items),
	}
}
