package application

import "time"

// CreateProductCommand represents the command to create a product
type CreateProductCommand struct {
	SKU           string
	Name          string
	Description   string
	UnitCost      int64
	Currency      string
	InitialStock  int
	MinStockLevel int
}

// AddStockCommand represents the command to receive purchased stock
type AddStockCommand struct {
	SKU         string
	Quantity    int
	UnitCost    int64
	Currency    string
	Reference   string
	PerformedBy string
}

// ReserveStockCommand represents the command to reserve stock for a work
// order. A non-empty ReservationID makes the hold replay-safe: repeating the
// command for the same id leaves the stock untouched.
type ReserveStockCommand struct {
	SKU           string
	Quantity      int
	Reference     string
	ReservationID string
}

// ConfirmConsumptionCommand represents the command to confirm consumption of
// reserved stock. A ReservationID that is no longer held is acknowledged
// without consuming again.
type ConfirmConsumptionCommand struct {
	SKU           string
	Quantity      int
	Reference     string
	ReservationID string
	PerformedBy   string
}

// ReleaseReservationCommand represents the command to return reserved stock
// to the available bucket
type ReleaseReservationCommand struct {
	SKU           string
	Quantity      int
	Reference     string
	ReservationID string
}

// AdjustStockCommand represents the command to set the counted stock level
type AdjustStockCommand struct {
	SKU         string
	NewQuantity int
	Reason      string
	AdjustedBy  string
}

// UpdateProductCommand represents the command to update descriptive fields
type UpdateProductCommand struct {
	SKU         string
	Name        string
	Description string
}

// SetMinStockLevelCommand represents the command to change the reorder threshold
type SetMinStockLevelCommand struct {
	SKU   string
	Level int
}

// UpdateSellingPriceCommand represents the command to change the list price
type UpdateSellingPriceCommand struct {
	SKU      string
	Price    int64
	Currency string
}

// GetProductQuery represents the query to get a product by SKU
type GetProductQuery struct {
	SKU string
}

// ListProductsQuery represents the query to list products with pagination
type ListProductsQuery struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}

// CheckAvailabilityQuery represents the query asking whether a SKU can cover
// a requested quantity right now
type CheckAvailabilityQuery struct {
	SKU      string
	Quantity int
}

// ListMovementsQuery represents the query to page through a SKU's ledger
type ListMovementsQuery struct {
	SKU      string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// GetMovementsByReferenceQuery represents the query to fetch all ledger
// entries recorded against one external reference
type GetMovementsByReferenceQuery struct {
	Reference string
}
