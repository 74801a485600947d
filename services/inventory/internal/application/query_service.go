package application

import (
	"context"
	"fmt"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

// tenantFrom resolves the tenant for the current request, falling back to
// the default tenant in single-tenant deployments
func tenantFrom(ctx context.Context) string {
	return tenant.FromContextOrDefault(ctx)
}

// InventoryQueryService handles read-only inventory queries
type InventoryQueryService struct {
	products  domain.ProductRepository
	movements domain.MovementRepository
	logger    *logging.Logger
}

// NewInventoryQueryService creates a new InventoryQueryService
func NewInventoryQueryService(
	products domain.ProductRepository,
	movements domain.MovementRepository,
	logger *logging.Logger,
) *InventoryQueryService {
	return &InventoryQueryService{
		products:  products,
		movements: movements,
		logger:    logger,
	}
}

// GetProduct retrieves a product by SKU
func (s *InventoryQueryService) GetProduct(ctx context.Context, query GetProductQuery) (*ProductDTO, error) {
	product, err := s.products.FindBySKU(ctx, query.SKU)
	if err != nil {
		if err == domain.ErrProductNotFound {
			return nil, apperrors.ErrNotFoundWithID("product", query.SKU).Wrap(err)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return ToProductDTO(product), nil
}

// ListProducts retrieves a page of products
func (s *InventoryQueryService) ListProducts(ctx context.Context, query ListProductsQuery) (*ProductListDTO, error) {
	page, pageSize := normalizePage(query.Page, query.PageSize)

	products, total, err := s.products.List(ctx, query.ActiveOnly, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return &ProductListDTO{
		Items:      ToProductDTOs(products),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ListLowStockProducts retrieves products below their minimum stock level
func (s *InventoryQueryService) ListLowStockProducts(ctx context.Context) ([]*ProductDTO, error) {
	products, err := s.products.FindBelowMinStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}

	return ToProductDTOs(products), nil
}

// CheckAvailability reports whether available stock can cover the requested
// quantity. The answer is a point-in-time read; callers that need the stock
// must reserve it, which re-validates under the version check.
func (s *InventoryQueryService) CheckAvailability(ctx context.Context, query CheckAvailabilityQuery) (*AvailabilityDTO, error) {
	product, err := s.products.FindBySKU(ctx, query.SKU)
	if err != nil {
		if err == domain.ErrProductNotFound {
			return nil, apperrors.ErrNotFoundWithID("product", query.SKU).Wrap(err)
		}
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}

	return &AvailabilityDTO{
		SKU:        product.SKU,
		Requested:  query.Quantity,
		Available:  product.AvailableStock,
		Reserved:   product.ReservedStock,
		Sufficient: product.Active && product.AvailableStock >= query.Quantity,
	}, nil
}

// ListMovements retrieves a page of ledger entries for a SKU
func (s *InventoryQueryService) ListMovements(ctx context.Context, query ListMovementsQuery) (*MovementListDTO, error) {
	page, pageSize := normalizePage(query.Page, query.PageSize)

	movements, total, err := s.movements.FindBySKU(ctx, query.SKU, query.From, query.To,
		(page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	return &MovementListDTO{
		Items:      ToStockMovementDTOs(movements),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// GetMovementsByReference retrieves all ledger entries recorded against an
// external reference such as a work order number
func (s *InventoryQueryService) GetMovementsByReference(ctx context.Context, query GetMovementsByReferenceQuery) ([]*StockMovementDTO, error) {
	movements, err := s.movements.FindByReference(ctx, query.Reference)
	if err != nil {
		return nil, fmt.Errorf("failed to get movements by reference: %w", err)
	}

	return ToStockMovementDTOs(movements), nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
