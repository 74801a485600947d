package application

import "time"

// MoneyDTO represents a monetary value in responses
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ProductDTO represents a product in responses
type ProductDTO struct {
	ID             string    `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	UnitCost       MoneyDTO  `json:"unitCost"`
	SellingPrice   MoneyDTO  `json:"sellingPrice"`
	AvailableStock int       `json:"availableStock"`
	ReservedStock  int       `json:"reservedStock"`
	TotalStock     int       `json:"totalStock"`
	MinStockLevel  int       `json:"minStockLevel"`
	IsLowStock     bool      `json:"isLowStock"`
	Active         bool      `json:"active"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// StockMovementDTO represents a ledger entry in responses
type StockMovementDTO struct {
	ID           string    `json:"id"`
	SKU          string    `json:"sku"`
	Type         string    `json:"type"`
	Reason       string    `json:"reason"`
	Quantity     int       `json:"quantity"`
	BalanceAfter int       `json:"balanceAfter"`
	Reference    string    `json:"reference,omitempty"`
	PerformedBy  string    `json:"performedBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AvailabilityDTO answers a point-in-time availability check. The answer is
// advisory; only a reservation actually holds stock.
type AvailabilityDTO struct {
	SKU        string `json:"sku"`
	Requested  int    `json:"requested"`
	Available  int    `json:"available"`
	Reserved   int    `json:"reserved"`
	Sufficient bool   `json:"sufficient"`
}

// ProductListDTO represents a page of products
type ProductListDTO struct {
	Items      []*ProductDTO `json:"items"`
	TotalCount int64         `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
}

// MovementListDTO represents a page of ledger entries
type MovementListDTO struct {
	Items      []*StockMovementDTO `json:"items"`
	TotalCount int64               `json:"totalCount"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
}
