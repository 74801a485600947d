package application

// CreateWorkOrderCommand represents the command to open a work order
type CreateWorkOrderCommand struct {
	CustomerID    string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	VehicleID     string
	VehicleMake   string
	VehicleModel  string
	VehicleYear   int
	LicensePlate  string
	VIN           string
	Notes         string
}

// AddPartItemCommand represents the command to add a PART line
type AddPartItemCommand struct {
	WorkOrderID string
	SKU         string
	PartName    string
	Quantity    int
	UnitPrice   int64
	Discount    int64
	Currency    string
}

// AddServiceItemCommand represents the command to add a SERVICE line
type AddServiceItemCommand struct {
	WorkOrderID string
	ServiceCode string
	Technician  string
	Quantity    int
	UnitPrice   int64
	Discount    int64
	Currency    string
}

// RemoveItemCommand represents the command to remove a line item
type RemoveItemCommand struct {
	WorkOrderID string
	ItemID      string
}

// UpdateNotesCommand represents the command to replace the order notes
type UpdateNotesCommand struct {
	WorkOrderID string
	Notes       string
}

// ChangeStatusCommand represents the command to move the order along its
// lifecycle
type ChangeStatusCommand struct {
	WorkOrderID string
	Status      string
	ChangedBy   string
}

// GetWorkOrderQuery represents the query to get a work order by id
type GetWorkOrderQuery struct {
	WorkOrderID string
}

// GetWorkOrderByNumberQuery represents the query to get a work order by its
// business number
type GetWorkOrderByNumberQuery struct {
	OrderNumber string
}

// ListWorkOrdersQuery represents the query to list work orders
type ListWorkOrdersQuery struct {
	Status   string
	Page     int
	PageSize int
}
