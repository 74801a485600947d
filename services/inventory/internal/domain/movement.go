package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType classifies the direction of a stock movement
type MovementType string

const (
	MovementTypeIn         MovementType = "IN"
	MovementTypeOut        MovementType = "OUT"
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
)

// IsValid checks if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeIn, MovementTypeOut, MovementTypeAdjustment:
		return true
	}
	return false
}

// MovementReason records why stock moved
type MovementReason string

const (
	ReasonPurchase   MovementReason = "PURCHASE"
	ReasonWorkOrder  MovementReason = "WORK_ORDER"
	ReasonAdjustment MovementReason = "ADJUSTMENT"
	ReasonReturn     MovementReason = "RETURN"
	ReasonTransfer   MovementReason = "TRANSFER"
	ReasonDamage     MovementReason = "DAMAGE"
)

// IsValid checks if the movement reason is valid
func (r MovementReason) IsValid() bool {
	switch r {
	case ReasonPurchase, ReasonWorkOrder, ReasonAdjustment,
		ReasonReturn, ReasonTransfer, ReasonDamage:
		return true
	}
	return false
}

// Movement validation errors
var (
	ErrInvalidMovementType   = errors.New("invalid movement type")
	ErrInvalidMovementReason = errors.New("invalid movement reason")
)

// StockMovement is one entry in the append-only stock ledger. Movements are
// never updated or deleted after creation; corrections are recorded as new
// ADJUSTMENT movements.
type StockMovement struct {
	ID           string         `bson:"_id" json:"id"`
	TenantID     string         `bson:"tenantId" json:"tenantId"`
	SKU          string         `bson:"sku" json:"sku"`
	Type         MovementType   `bson:"type" json:"type"`
	Reason       MovementReason `bson:"reason" json:"reason"`
	Quantity     int            `bson:"quantity" json:"quantity"`
	BalanceAfter int            `bson:"balanceAfter" json:"balanceAfter"`
	Reference    string         `bson:"reference,omitempty" json:"reference,omitempty"`
	PerformedBy  string         `bson:"performedBy,omitempty" json:"performedBy,omitempty"`
	Notes        string         `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time      `bson:"createdAt" json:"createdAt"`
}

// NewStockMovement creates a ledger entry. Quantity is the magnitude moved;
// BalanceAfter is the available stock after the movement was applied.
func NewStockMovement(tenantID, sku string, movementType MovementType, reason MovementReason,
	quantity, balanceAfter int, reference, performedBy string) (*StockMovement, error) {

	if !movementType.IsValid() {
		return nil, ErrInvalidMovementType
	}
	if !reason.IsValid() {
		return nil, ErrInvalidMovementReason
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if balanceAfter < 0 {
		return nil, ErrNegativeQuantity
	}

	return &StockMovement{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		SKU:          sku,
		Type:         movementType,
		Reason:       reason,
		Quantity:     quantity,
		BalanceAfter: balanceAfter,
		Reference:    reference,
		PerformedBy:  performedBy,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
