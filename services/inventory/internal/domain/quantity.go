package domain

import "errors"

// Quantity represents a non-negative unit count
type Quantity struct {
	value int
}

// ErrNegativeQuantity is returned when an operation would produce a
// negative quantity
var ErrNegativeQuantity = errors.New("quantity cannot be negative")

// NewQuantity creates a Quantity value object
func NewQuantity(value int) (Quantity, error) {
	if value < 0 {
		return Quantity{}, ErrNegativeQuantity
	}
	return Quantity{value: value}, nil
}

// Value returns the unit count
func (q Quantity) Value() int {
	return q.value
}

// IsZero returns true when the quantity is zero
func (q Quantity) IsZero() bool {
	return q.value == 0
}

// Add returns the sum of two quantities
func (q Quantity) Add(other Quantity) Quantity {
	return Quantity{value: q.value + other.value}
}

// Subtract returns the difference of two quantities. The result must not
// go negative.
func (q Quantity) Subtract(other Quantity) (Quantity, error) {
	if q.value < other.value {
		return Quantity{}, ErrNegativeQuantity
	}
	return Quantity{value: q.value - other.value}, nil
}
