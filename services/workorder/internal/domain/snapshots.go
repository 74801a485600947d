package domain

// CustomerSnapshot is the customer data captured when the work order is
// created. It is never refreshed afterwards; the order documents what was
// agreed at the time, not the customer's current record.
type CustomerSnapshot struct {
	CustomerID string `bson:"customerId" json:"customerId"`
	Name       string `bson:"name" json:"name"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
}

// VehicleSnapshot is the vehicle data captured when the work order is created
type VehicleSnapshot struct {
	VehicleID    string `bson:"vehicleId" json:"vehicleId"`
	Make         string `bson:"make" json:"make"`
	Model        string `bson:"model" json:"model"`
	Year         int    `bson:"year,omitempty" json:"year,omitempty"`
	LicensePlate string `bson:"licensePlate,omitempty" json:"licensePlate,omitempty"`
	VIN          string `bson:"vin,omitempty" json:"vin,omitempty"`
}

func (c CustomerSnapshot) validate() error {
	if c.CustomerID == "" || c.Name == "" {
		return ErrInvalidCustomer
	}
	return nil
}

func (v VehicleSnapshot) validate() error {
	if v.VehicleID == "" || v.Make == "" || v.Model == "" {
		return ErrInvalidVehicle
	}
	return nil
}
