package application

import (
	"context"
	"fmt"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"

	"github.com/autofix-platform/autofix/services/workorder/internal/domain"
)

// WorkOrderQueryService handles read-only work-order queries
type WorkOrderQueryService struct {
	orders domain.WorkOrderRepository
	logger *logging.Logger
}

// NewWorkOrderQueryService creates a new WorkOrderQueryService
func NewWorkOrderQueryService(orders domain.WorkOrderRepository, logger *logging.Logger) *WorkOrderQueryService {
	return &WorkOrderQueryService{
		orders: orders,
		logger: logger,
	}
}

// GetWorkOrder retrieves a work order by id
func (s *WorkOrderQueryService) GetWorkOrder(ctx context.Context, query GetWorkOrderQuery) (*WorkOrderDTO, error) {
	order, err := s.orders.FindByID(ctx, query.WorkOrderID)
	if err != nil {
		if err == domain.ErrWorkOrderNotFound {
			return nil, apperrors.ErrNotFoundWithID("work order", query.WorkOrderID).Wrap(err)
		}
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}

	return ToWorkOrderDTO(order), nil
}

// GetWorkOrderByNumber retrieves a work order by its business number
func (s *WorkOrderQueryService) GetWorkOrderByNumber(ctx context.Context, query GetWorkOrderByNumberQuery) (*WorkOrderDTO, error) {
	order, err := s.orders.FindByOrderNumber(ctx, query.OrderNumber)
	if err != nil {
		if err == domain.ErrWorkOrderNotFound {
			return nil, apperrors.ErrNotFoundWithID("work order", query.OrderNumber).Wrap(err)
		}
		return nil, fmt.Errorf("failed to get work order: %w", err)
	}

	return ToWorkOrderDTO(order), nil
}

// ListWorkOrders retrieves a page of work orders, optionally filtered by status
func (s *WorkOrderQueryService) ListWorkOrders(ctx context.Context, query ListWorkOrdersQuery) (*WorkOrderListDTO, error) {
	var status domain.WorkOrderStatus
	if query.Status != "" {
		status = domain.WorkOrderStatus(query.Status)
		if !status.IsValid() {
			return nil, apperrors.ErrValidation(fmt.Sprintf("unknown status %q", query.Status))
		}
	}

	page, pageSize := normalizePage(query.Page, query.PageSize)

	orders, total, err := s.orders.List(ctx, status, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list work orders: %w", err)
	}

	return &WorkOrderListDTO{
		Items:      ToWorkOrderDTOs(orders),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
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
