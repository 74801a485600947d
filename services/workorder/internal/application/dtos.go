package application

import "time"

// MoneyDTO represents a monetary value in responses
type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// OrderItemDTO represents a line item in responses
type OrderItemDTO struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	SKU         string   `json:"sku,omitempty"`
	PartName    string   `json:"partName,omitempty"`
	ServiceCode string   `json:"serviceCode,omitempty"`
	Technician  string   `json:"technician,omitempty"`
	Quantity    int      `json:"quantity"`
	UnitPrice   MoneyDTO `json:"unitPrice"`
	Discount    MoneyDTO `json:"discount"`
	Subtotal    MoneyDTO `json:"subtotal"`
}

// CustomerDTO represents the customer snapshot in responses
type CustomerDTO struct {
	CustomerID string `json:"customerId"`
	Name       string `json:"name"`
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// VehicleDTO represents the vehicle snapshot in responses
type VehicleDTO struct {
	VehicleID    string `json:"vehicleId"`
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
	VIN          string `json:"vin,omitempty"`
}

// WorkOrderDTO represents a work order in responses. Totals are derived from
// the line items on every read.
type WorkOrderDTO struct {
	ID          string         `json:"id"`
	OrderNumber string         `json:"orderNumber"`
	Customer    CustomerDTO    `json:"customer"`
	Vehicle     VehicleDTO     `json:"vehicle"`
	Status      string         `json:"status"`
	Items       []OrderItemDTO `json:"items"`
	Notes       string         `json:"notes,omitempty"`
	PartsTotal  *MoneyDTO      `json:"partsTotal,omitempty"`
	LaborTotal  *MoneyDTO      `json:"laborTotal,omitempty"`
	GrandTotal  *MoneyDTO      `json:"grandTotal,omitempty"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// WorkOrderListDTO represents a page of work orders
type WorkOrderListDTO struct {
	Items      []*WorkOrderDTO `json:"items"`
	TotalCount int64           `json:"totalCount"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
}
