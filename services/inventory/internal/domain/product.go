package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/autofix-platform/autofix/pkg/events"
)

// Product is the inventory aggregate root. Stock lives in two buckets:
// AvailableStock can be reserved or adjusted, ReservedStock is held for
// approved work orders until consumption is confirmed or the hold released.
//
// Reservations tracks the units held per reservation id. It lives inside
// the aggregate document, so a hold and the stock move it represents commit
// in the same conditional save; replaying a reserve, consume, or release
// for an id that is already settled changes nothing.
//
// Version is the optimistic concurrency token. The aggregate never touches
// it; the repository increments it on a successful conditional save.
type Product struct {
	ID             string         `bson:"_id" json:"id"`
	TenantID       string         `bson:"tenantId" json:"tenantId"`
	SKU            string         `bson:"sku" json:"sku"`
	Name           string         `bson:"name" json:"name"`
	Description    string         `bson:"description,omitempty" json:"description,omitempty"`
	UnitCost       Money          `bson:"unitCost" json:"unitCost"`
	SellingPrice   Money          `bson:"sellingPrice" json:"sellingPrice"`
	AvailableStock int            `bson:"availableStock" json:"availableStock"`
	ReservedStock  int            `bson:"reservedStock" json:"reservedStock"`
	MinStockLevel  int            `bson:"minStockLevel" json:"minStockLevel"`
	Reservations   map[string]int `bson:"reservations,omitempty" json:"reservations,omitempty"`
	Active         bool           `bson:"active" json:"active"`
	Version        int64          `bson:"version" json:"version"`
	CreatedAt      time.Time      `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time      `bson:"updatedAt" json:"updatedAt"`

	domainEvents []events.DomainEvent `bson:"-"`
}

// NewProduct creates a product. A product created with stock already below
// its minimum level emits LowStockDetected immediately.
func NewProduct(tenantID string, sku SKU, name, description string, unitCost Money,
	initialStock, minStockLevel int) (*Product, error) {

	if name == "" {
		return nil, ErrInvalidProductName
	}
	if initialStock < 0 {
		return nil, ErrNegativeQuantity
	}
	if minStockLevel < 0 {
		return nil, ErrInvalidMinStock
	}

	now := time.Now().UTC()
	product := &Product{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		SKU:            sku.String(),
		Name:           name,
		Description:    description,
		UnitCost:       unitCost,
		SellingPrice:   unitCost,
		AvailableStock: initialStock,
		ReservedStock:  0,
		MinStockLevel:  minStockLevel,
		Active:         true,
		Version:        0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	product.checkLowStock()

	return product, nil
}

// AddStock receives quantity units purchased at unitCost and recalculates
// the weighted average unit cost across the whole available bucket. A cost
// change emits PriceChanged.
func (p *Product) AddStock(quantity Quantity, unitCost Money) error {
	if quantity.IsZero() {
		return ErrInvalidQuantity
	}

	units := quantity.Value()
	newCost := unitCost
	if p.AvailableStock > 0 {
		existingValue, err := p.UnitCost.Multiply(p.AvailableStock)
		if err != nil {
			return err
		}
		incomingValue, err := unitCost.Multiply(units)
		if err != nil {
			return err
		}
		totalValue, err := existingValue.Add(incomingValue)
		if err != nil {
			return err
		}
		newCost, err = totalValue.Divide(p.AvailableStock + units)
		if err != nil {
			return err
		}
	}

	if !newCost.Equals(p.UnitCost) {
		p.recordEvent(NewPriceChangedEvent(p.ID, p.SKU,
			p.UnitCost.Amount(), newCost.Amount(), newCost.Currency()))
	}

	p.UnitCost = newCost
	p.AvailableStock += units
	p.touch()

	return nil
}

// Reserve moves quantity units from available to reserved. A non-empty
// reservationID names the hold; repeating the call for an id that is
// already held changes nothing and reports applied=false. Fails with
// InsufficientStockError when the available bucket cannot cover the request.
func (p *Product) Reserve(quantity Quantity, reservationID string) (bool, error) {
	if quantity.IsZero() {
		return false, ErrInvalidQuantity
	}
	if reservationID != "" {
		if _, held := p.Reservations[reservationID]; held {
			return false, nil
		}
	}

	units := quantity.Value()
	if units > p.AvailableStock {
		return false, NewInsufficientStockError(p.SKU, units, p.AvailableStock)
	}

	p.AvailableStock -= units
	p.ReservedStock += units
	if reservationID != "" {
		if p.Reservations == nil {
			p.Reservations = make(map[string]int)
		}
		p.Reservations[reservationID] = units
	}
	p.touch()

	p.checkLowStock()

	return true, nil
}

// ConfirmConsumption releases quantity units from the reserved bucket for
// good; the stock has physically left the warehouse. A non-empty
// reservationID that is no longer held means the hold was already settled:
// nothing changes and applied is false.
func (p *Product) ConfirmConsumption(quantity Quantity, reservationID string) (bool, error) {
	if quantity.IsZero() {
		return false, ErrInvalidQuantity
	}
	if reservationID != "" {
		if _, held := p.Reservations[reservationID]; !held {
			return false, nil
		}
	}

	units := quantity.Value()
	if units > p.ReservedStock {
		return false, NewInsufficientStockError(p.SKU, units, p.ReservedStock)
	}

	p.ReservedStock -= units
	delete(p.Reservations, reservationID)
	p.touch()

	return true, nil
}

// ReleaseReservation returns quantity units from reserved back to available,
// for example when a work order is canceled after approval. The same
// settled-hold rule as ConfirmConsumption applies.
func (p *Product) ReleaseReservation(quantity Quantity, reservationID string) (bool, error) {
	if quantity.IsZero() {
		return false, ErrInvalidQuantity
	}
	if reservationID != "" {
		if _, held := p.Reservations[reservationID]; !held {
			return false, nil
		}
	}

	units := quantity.Value()
	if units > p.ReservedStock {
		return false, NewInsufficientStockError(p.SKU, units, p.ReservedStock)
	}

	p.ReservedStock -= units
	p.AvailableStock += units
	delete(p.Reservations, reservationID)
	p.touch()

	return true, nil
}

// AdjustStock sets the available stock to newQuantity after a physical
// count. StockAdjusted is emitted even when the count confirms the recorded
// quantity, so the audit trail shows the count happened.
func (p *Product) AdjustStock(newQuantity Quantity, reason, adjustedBy string) error {
	previous := p.AvailableStock
	p.AvailableStock = newQuantity.Value()
	p.touch()

	p.recordEvent(NewStockAdjustedEvent(p.ID, p.SKU, previous, p.AvailableStock, reason, adjustedBy))
	p.checkLowStock()

	return nil
}

// UpdateDetails changes the descriptive fields
func (p *Product) UpdateDetails(name, description string) error {
	if name == "" {
		return ErrInvalidProductName
	}

	p.Name = name
	p.Description = description
	p.touch()

	return nil
}

// SetMinStockLevel changes the reorder threshold. The low-stock check runs
// against the new threshold.
func (p *Product) SetMinStockLevel(level int) error {
	if level < 0 {
		return ErrInvalidMinStock
	}

	p.MinStockLevel = level
	p.touch()

	p.checkLowStock()

	return nil
}

// UpdateSellingPrice sets the list price. The price must be in the same
// currency as the unit cost.
func (p *Product) UpdateSellingPrice(price Money) error {
	if price.Currency() != p.UnitCost.Currency() {
		return ErrCurrencyMismatch
	}

	p.SellingPrice = price
	p.touch()

	return nil
}

// Deactivate removes the product from active use
func (p *Product) Deactivate() {
	p.Active = false
	p.touch()
}

// Activate returns the product to active use
func (p *Product) Activate() {
	p.Active = true
	p.touch()
}

// TotalStock returns available plus reserved units
func (p *Product) TotalStock() int {
	return p.AvailableStock + p.ReservedStock
}

// IsBelowMinStock reports whether available stock is under the threshold
func (p *Product) IsBelowMinStock() bool {
	return p.AvailableStock < p.MinStockLevel
}

// HoldsReservation reports whether the reservation id currently holds stock
func (p *Product) HoldsReservation(reservationID string) bool {
	_, held := p.Reservations[reservationID]
	return held
}

// PullDomainEvents drains the buffered events. The caller owns the returned
// slice; the aggregate's buffer is empty afterwards.
func (p *Product) PullDomainEvents() []events.DomainEvent {
	drained := p.domainEvents
	p.domainEvents = nil
	return drained
}

// checkLowStock emits LowStockDetected whenever available stock sits below
// the minimum level after a change. A product already below its minimum
// alerts again on each further change.
func (p *Product) checkLowStock() {
	if p.AvailableStock < p.MinStockLevel {
		p.recordEvent(NewLowStockDetectedEvent(p.ID, p.SKU, p.AvailableStock, p.MinStockLevel))
	}
}

func (p *Product) recordEvent(event events.DomainEvent) {
	p.domainEvents = append(p.domainEvents, event)
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now().UTC()
}
