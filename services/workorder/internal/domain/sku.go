package domain

import (
	"errors"
	"regexp"
)

var skuPattern = regexp.MustCompile(`^[A-Z]{3}-[A-Z]{3}-[0-9]{3}$`)

// ErrInvalidSKU indicates the SKU does not match the required format
var ErrInvalidSKU = errors.New("invalid SKU format, expected ABC-DEF-123")

// SKU identifies a stocked part in the inventory service
type SKU struct {
	value string
}

// NewSKU validates and creates a SKU
func NewSKU(value string) (SKU, error) {
	if !skuPattern.MatchString(value) {
		return SKU{}, ErrInvalidSKU
	}
	return SKU{value: value}, nil
}

// String returns the SKU as a string
func (s SKU) String() string {
	return s.value
}
