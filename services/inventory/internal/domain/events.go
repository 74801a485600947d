package domain

import (
	"github.com/autofix-platform/autofix/pkg/events"
)

// LowStockDetectedEvent is emitted when available stock drops below the
// minimum level, or when a product is created already below it.
type LowStockDetectedEvent struct {
	events.BaseEvent `bson:",inline"`

	SKU           string `json:"sku"`
	CurrentStock  int    `json:"currentStock"`
	MinStockLevel int    `json:"minStockLevel"`
}

// NewLowStockDetectedEvent creates a LowStockDetectedEvent
func NewLowStockDetectedEvent(productID, sku string, currentStock, minStockLevel int) *LowStockDetectedEvent {
	return &LowStockDetectedEvent{
		BaseEvent:     events.NewBaseEvent(events.LowStockDetected, productID),
		SKU:           sku,
		CurrentStock:  currentStock,
		MinStockLevel: minStockLevel,
	}
}

// PriceChangedEvent is emitted when a stock intake moves the weighted
// average unit cost.
type PriceChangedEvent struct {
	events.BaseEvent `bson:",inline"`

	SKU      string `json:"sku"`
	OldPrice int64  `json:"oldPrice"`
	NewPrice int64  `json:"newPrice"`
	Currency string `json:"currency"`
}

// NewPriceChangedEvent creates a PriceChangedEvent
func NewPriceChangedEvent(productID, sku string, oldPrice, newPrice int64, currency string) *PriceChangedEvent {
	return &PriceChangedEvent{
		BaseEvent: events.NewBaseEvent(events.PriceChanged, productID),
		SKU:       sku,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		Currency:  currency,
	}
}

// StockAdjustedEvent is emitted on every manual stock adjustment, whether
// or not the quantity actually changed.
type StockAdjustedEvent struct {
	events.BaseEvent `bson:",inline"`

	SKU         string `json:"sku"`
	OldQuantity int    `json:"oldQuantity"`
	NewQuantity int    `json:"newQuantity"`
	Reason      string `json:"reason"`
	AdjustedBy  string `json:"adjustedBy"`
}

// NewStockAdjustedEvent creates a StockAdjustedEvent
func NewStockAdjustedEvent(productID, sku string, oldQuantity, newQuantity int, reason, adjustedBy string) *StockAdjustedEvent {
	return &StockAdjustedEvent{
		BaseEvent:   events.NewBaseEvent(events.StockAdjusted, productID),
		SKU:         sku,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
		Reason:      reason,
		AdjustedBy:  adjustedBy,
	}
}
