package application

import "github.com/autofix-platform/autofix/services/inventory/internal/domain"

// ToProductDTO converts a domain Product to ProductDTO
func ToProductDTO(product *domain.Product) *ProductDTO {
	if product == nil {
		return nil
	}

	return &ProductDTO{
		ID:          product.ID,
		SKU:         product.SKU,
		Name:        product.Name,
		Description: product.Description,
		UnitCost: MoneyDTO{
			Amount:   product.UnitCost.Amount(),
			Currency: product.UnitCost.Currency(),
		},
		SellingPrice: MoneyDTO{
			Amount:   product.SellingPrice.Amount(),
			Currency: product.SellingPrice.Currency(),
		},
		AvailableStock: product.AvailableStock,
		ReservedStock:  product.ReservedStock,
		TotalStock:     product.TotalStock(),
		MinStockLevel:  product.MinStockLevel,
		IsLowStock:     product.IsBelowMinStock(),
		Active:         product.Active,
		Version:        product.Version,
		CreatedAt:      product.CreatedAt,
		UpdatedAt:      product.UpdatedAt,
	}
}

// ToProductDTOs converts a slice of products
func ToProductDTOs(products []*domain.Product) []*ProductDTO {
	dtos := make([]*ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, ToProductDTO(p))
	}
	return dtos
}

// ToStockMovementDTO converts a domain StockMovement to StockMovementDTO
func ToStockMovementDTO(movement *domain.StockMovement) *StockMovementDTO {
	if movement == nil {
		return nil
	}

	return &StockMovementDTO{
		ID:           movement.ID,
		SKU:          movement.SKU,
		Type:         string(movement.Type),
		Reason:       string(movement.Reason),
		Quantity:     movement.Quantity,
		BalanceAfter: movement.BalanceAfter,
		Reference:    movement.Reference,
		PerformedBy:  movement.PerformedBy,
		CreatedAt:    movement.CreatedAt,
	}
}

// ToStockMovementDTOs converts a slice of movements
func ToStockMovementDTOs(movements []*domain.StockMovement) []*StockMovementDTO {
	dtos := make([]*StockMovementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, ToStockMovementDTO(m))
	}
	return dtos
}
