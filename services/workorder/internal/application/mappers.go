package application

import "github.com/autofix-platform/autofix/services/workorder/internal/domain"

func toMoneyDTO(m domain.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount(), Currency: m.Currency()}
}

// ToOrderItemDTO converts a domain OrderItem to OrderItemDTO
func ToOrderItemDTO(item domain.OrderItem) OrderItemDTO {
	dto := OrderItemDTO{
		ID:          item.ID,
		Type:        string(item.Type),
		SKU:         item.SKU,
		PartName:    item.PartName,
		ServiceCode: item.ServiceCode,
		Technician:  item.Technician,
		Quantity:    item.Quantity,
		UnitPrice:   toMoneyDTO(item.UnitPrice),
		Discount:    toMoneyDTO(item.Discount),
	}

	if subtotal, err := item.Subtotal(); err == nil {
		dto.Subtotal = toMoneyDTO(subtotal)
	}

	return dto
}

// ToWorkOrderDTO converts a domain WorkOrder to WorkOrderDTO
func ToWorkOrderDTO(order *domain.WorkOrder) *WorkOrderDTO {
	if order == nil {
		return nil
	}

	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ToOrderItemDTO(item))
	}

	dto := &WorkOrderDTO{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		Customer: CustomerDTO{
			CustomerID: order.Customer.CustomerID,
			Name:       order.Customer.Name,
			Phone:      order.Customer.Phone,
			Email:      order.Customer.Email,
		},
		Vehicle: VehicleDTO{
			VehicleID:    order.Vehicle.VehicleID,
			Make:         order.Vehicle.Make,
			Model:        order.Vehicle.Model,
			Year:         order.Vehicle.Year,
			LicensePlate: order.Vehicle.LicensePlate,
			VIN:          order.Vehicle.VIN,
		},
		Status:      string(order.Status),
		Items:       items,
		Notes:       order.Notes,
		Version:     order.Version,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		CompletedAt: order.CompletedAt,
	}

	// Totals only make sense once there is a line to take a currency from
	if len(order.Items) > 0 {
		currency := order.Items[0].UnitPrice.Currency()
		if parts, err := order.PartsTotal(currency); err == nil {
			m := toMoneyDTO(parts)
			dto.PartsTotal = &m
		}
		if labor, err := order.LaborTotal(currency); err == nil {
			m := toMoneyDTO(labor)
			dto.LaborTotal = &m
		}
		if grand, err := order.GrandTotal(currency); err == nil {
			m := toMoneyDTO(grand)
			dto.GrandTotal = &m
		}
	}

	return dto
}

// ToWorkOrderDTOs converts a slice of work orders
func ToWorkOrderDTOs(orders []*domain.WorkOrder) []*WorkOrderDTO {
	dtos := make([]*WorkOrderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, ToWorkOrderDTO(o))
	}
	return dtos
}
