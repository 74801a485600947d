package domain

import (
	"github.com/google/uuid"
)

// ItemType discriminates the line item union
type ItemType string

const (
	ItemTypePart    ItemType = "PART"
	ItemTypeService ItemType = "SERVICE"
)

// OrderItem is one line on a work order. The Type field discriminates the
// union: PART lines carry SKU and PartName, SERVICE lines carry ServiceCode
// and Technician. UnitPrice, Quantity and Discount are shared.
type OrderItem struct {
	ID          string   `bson:"id" json:"id"`
	Type        ItemType `bson:"type" json:"type"`
	SKU         string   `bson:"sku,omitempty" json:"sku,omitempty"`
	PartName    string   `bson:"partName,omitempty" json:"partName,omitempty"`
	ServiceCode string   `bson:"serviceCode,omitempty" json:"serviceCode,omitempty"`
	Technician  string   `bson:"technician,omitempty" json:"technician,omitempty"`
	Quantity    int      `bson:"quantity" json:"quantity"`
	UnitPrice   Money    `bson:"unitPrice" json:"unitPrice"`
	Discount    Money    `bson:"discount" json:"discount"`
}

// NewPartItem creates a PART line. The discount may not exceed the full
// line value.
func NewPartItem(sku SKU, partName string, quantity int, unitPrice, discount Money) (OrderItem, error) {
	if partName == "" {
		return OrderItem{}, ErrInvalidItemName
	}

	item := OrderItem{
		ID:       uuid.New().String(),
		Type:     ItemTypePart,
		SKU:      sku.String(),
		PartName: partName,
	}
	return finishItem(item, quantity, unitPrice, discount)
}

// NewServiceItem creates a SERVICE line
func NewServiceItem(serviceCode, technician string, quantity int, unitPrice, discount Money) (OrderItem, error) {
	if serviceCode == "" {
		return OrderItem{}, ErrInvalidServiceCode
	}

	item := OrderItem{
		ID:          uuid.New().String(),
		Type:        ItemTypeService,
		ServiceCode: serviceCode,
		Technician:  technician,
	}
	return finishItem(item, quantity, unitPrice, discount)
}

func finishItem(item OrderItem, quantity int, unitPrice, discount Money) (OrderItem, error) {
	if quantity <= 0 {
		return OrderItem{}, ErrInvalidItemQuantity
	}

	lineTotal, err := unitPrice.Multiply(quantity)
	if err != nil {
		return OrderItem{}, err
	}
	exceeds, err := discount.GreaterThan(lineTotal)
	if err != nil {
		return OrderItem{}, err
	}
	if exceeds {
		return OrderItem{}, ErrDiscountExceedsTotal
	}

	item.Quantity = quantity
	item.UnitPrice = unitPrice
	item.Discount = discount
	return item, nil
}

// Subtotal returns unit price times quantity minus discount. The constructor
// guarantees the discount cannot exceed the line value, so the subtraction
// cannot go negative.
func (i OrderItem) Subtotal() (Money, error) {
	lineTotal, err := i.UnitPrice.Multiply(i.Quantity)
	if err != nil {
		return Money{}, err
	}
	return lineTotal.Subtract(i.Discount)
}
