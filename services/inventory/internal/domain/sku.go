package domain

import (
	"errors"
	"regexp"
)

// skuPattern matches SKUs like "BRK-PAD-001": two three-letter uppercase
// segments and a three-digit sequence, separated by hyphens.
var skuPattern = regexp.MustCompile(`^[A-Z]{3}-[A-Z]{3}-[0-9]{3}$`)

// ErrInvalidSKU is returned when a SKU does not match the expected format
var ErrInvalidSKU = errors.New("invalid SKU format, expected ABC-DEF-123")

// SKU identifies a product within a tenant's catalog
type SKU struct {
	value string
}

// NewSKU creates a SKU value object, validating the format
func NewSKU(value string) (SKU, error) {
	if !skuPattern.MatchString(value) {
		return SKU{}, ErrInvalidSKU
	}
	return SKU{value: value}, nil
}

// IsValidSKU reports whether value matches the SKU format
func IsValidSKU(value string) bool {
	return skuPattern.MatchString(value)
}

// String returns the SKU as a string
func (s SKU) String() string {
	return s.value
}
