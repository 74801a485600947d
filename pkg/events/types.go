package events

import (
	"time"
)

// Topic names
const (
	TopicWorkOrderEvents = "workorder-events"
	TopicInventoryEvents = "inventory-events"
)

// Event names for work-order events
const (
	WorkOrderCreated       = "WorkOrder.Created"
	WorkOrderStatusChanged = "WorkOrder.StatusChanged"
	WorkOrderItemAdded     = "WorkOrder.ItemAdded"
	WorkOrderApproved      = "WorkOrder.Approved"
	WorkOrderCompleted     = "WorkOrder.Completed"
)

// Event names for inventory events
const (
	LowStockDetected = "Inventory.LowStockDetected"
	PriceChanged     = "Inventory.PriceChanged"
	StockAdjusted    = "Inventory.StockAdjusted"
)

// Item types on work-order line items
const (
	ItemTypePart    = "PART"
	ItemTypeService = "SERVICE"
)

// WorkOrderItemLine is one line item as it appears in work-order event
// payloads. SKU is only set for PART lines.
type WorkOrderItemLine struct {
	ItemID   string `json:"itemId"`
	Type     string `json:"type"`
	SKU      string `json:"sku,omitempty"`
	Quantity int    `json:"quantity"`
}

// WorkOrderCreatedData is the payload of WorkOrder.Created
type WorkOrderCreatedData struct {
	WorkOrderID string `json:"workOrderId"`
	OrderNumber string `json:"orderNumber"`
	TenantID    string `json:"tenantId"`
	CustomerID  string `json:"customerId"`
}

// WorkOrderStatusChangedData is the payload of WorkOrder.StatusChanged
type WorkOrderStatusChangedData struct {
	WorkOrderID string `json:"workOrderId"`
	OrderNumber string `json:"orderNumber"`
	TenantID    string `json:"tenantId"`
	OldStatus   string `json:"oldStatus"`
	NewStatus   string `json:"newStatus"`
	ChangedBy   string `json:"changedBy,omitempty"`
}

// WorkOrderItemAddedData is the payload of WorkOrder.ItemAdded
type WorkOrderItemAddedData struct {
	WorkOrderID string            `json:"workOrderId"`
	TenantID    string            `json:"tenantId"`
	Item        WorkOrderItemLine `json:"item"`
}

// WorkOrderApprovedData is the payload of WorkOrder.Approved. The inventory
// service reserves stock for each PART line when it consumes this event.
type WorkOrderApprovedData struct {
	WorkOrderID string              `json:"workOrderId"`
	OrderNumber string              `json:"orderNumber"`
	TenantID    string              `json:"tenantId"`
	ApprovedBy  string              `json:"approvedBy,omitempty"`
	Items       []WorkOrderItemLine `json:"items"`
}

// WorkOrderCompletedData is the payload of WorkOrder.Completed. The inventory
// service confirms consumption of reserved stock for each PART line.
type WorkOrderCompletedData struct {
	WorkOrderID string              `json:"workOrderId"`
	OrderNumber string              `json:"orderNumber"`
	TenantID    string              `json:"tenantId"`
	CompletedAt time.Time           `json:"completedAt"`
	Items       []WorkOrderItemLine `json:"items"`
}

// LowStockDetectedData is the payload of Inventory.LowStockDetected
type LowStockDetectedData struct {
	SKU           string `json:"sku"`
	CurrentStock  int    `json:"currentStock"`
	MinStockLevel int    `json:"minStockLevel"`
}

// PriceChangedData is the payload of Inventory.PriceChanged
type PriceChangedData struct {
	SKU      string `json:"sku"`
	OldPrice int64  `json:"oldPrice"`
	NewPrice int64  `json:"newPrice"`
	Currency string `json:"currency"`
}

// StockAdjustedData is the payload of Inventory.StockAdjusted
type StockAdjustedData struct {
	SKU         string `json:"sku"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
	Reason      string `json:"reason"`
	AdjustedBy  string `json:"adjustedBy"`
}
