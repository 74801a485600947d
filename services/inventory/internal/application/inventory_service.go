package application

import (
	"context"
	"fmt"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/resilience"

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

// Lock retry tuning. Conflicts are expected under concurrent commands for
// the same SKU; anything other than a version conflict is not retried.
const (
	lockRetryAttempts = 3
)

// InventoryApplicationService handles inventory commands. Every state
// change goes through the optimistic-lock save path; domain events are
// staged to the outbox by the repository inside the save transaction.
type InventoryApplicationService struct {
	products  domain.ProductRepository
	movements domain.MovementRepository
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewInventoryApplicationService creates a new InventoryApplicationService
func NewInventoryApplicationService(
	products domain.ProductRepository,
	movements domain.MovementRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
) *InventoryApplicationService {
	return &InventoryApplicationService{
		products:  products,
		movements: movements,
		metrics:   m,
		logger:    logger,
	}
}

// CreateProduct creates a product. Initial stock is recorded as a purchase
// intake in the ledger.
func (s *InventoryApplicationService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*ProductDTO, error) {
	sku, err := domain.NewSKU(cmd.SKU)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	unitCost, err := domain.NewMoney(cmd.UnitCost, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	product, err := domain.NewProduct(tenantFrom(ctx), sku, cmd.Name, cmd.Description,
		unitCost, cmd.InitialStock, cmd.MinStockLevel)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	if product.IsBelowMinStock() {
		s.metrics.RecordLowStockAlert()
	}

	if err := s.products.Create(ctx, product); err != nil {
		if err == domain.ErrProductAlreadyExists {
			return nil, apperrors.ErrConflict(fmt.Sprintf("product %s already exists", cmd.SKU)).Wrap(err)
		}
		s.logger.WithContext(ctx).Error("Failed to create product", "sku", cmd.SKU, "error", err)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if cmd.InitialStock > 0 {
		s.recordMovement(ctx, product, domain.MovementTypeIn, domain.ReasonPurchase,
			cmd.InitialStock, "", "")
	}

	s.logger.WithContext(ctx).Info("Created product", "sku", cmd.SKU, "initialStock", cmd.InitialStock)
	return ToProductDTO(product), nil
}

// AddStock receives purchased stock and recalculates the weighted average cost
func (s *InventoryApplicationService) AddStock(ctx context.Context, cmd AddStockCommand) (*ProductDTO, error) {
	unitCost, err := domain.NewMoney(cmd.UnitCost, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}
	quantity, err := domain.NewQuantity(cmd.Quantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	product, err := s.mutateProduct(ctx, "add_stock", cmd.SKU, func(p *domain.Product) error {
		return p.AddStock(quantity, unitCost)
	})
	if err != nil {
		s.metrics.RecordStockOperation("add_stock", false)
		return nil, err
	}

	s.metrics.RecordStockOperation("add_stock", true)
	s.recordMovement(ctx, product, domain.MovementTypeIn, domain.ReasonPurchase,
		cmd.Quantity, cmd.Reference, cmd.PerformedBy)

	s.logger.WithContext(ctx).Info("Added stock",
		"sku", cmd.SKU, "quantity", cmd.Quantity, "reference", cmd.Reference)
	return ToProductDTO(product), nil
}

// ReserveStock moves stock from available to reserved. Reservations are a
// bookkeeping move, not a physical one, so no ledger entry is written.
func (s *InventoryApplicationService) ReserveStock(ctx context.Context, cmd ReserveStockCommand) (*ProductDTO, error) {
	quantity, err := domain.NewQuantity(cmd.Quantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	product, err := s.mutateProduct(ctx, "reserve", cmd.SKU, func(p *domain.Product) error {
		_, reserveErr := p.Reserve(quantity, cmd.ReservationID)
		return reserveErr
	})
	if err != nil {
		s.metrics.RecordStockOperation("reserve", false)
		return nil, err
	}

	s.metrics.RecordStockOperation("reserve", true)
	if product.IsBelowMinStock() {
		s.metrics.RecordLowStockAlert()
	}

	s.logger.WithContext(ctx).Info("Reserved stock",
		"sku", cmd.SKU, "quantity", cmd.Quantity, "reference", cmd.Reference)
	return ToProductDTO(product), nil
}

// ConfirmConsumption releases reserved stock for good and records the
// outbound ledger entry against the work order reference. A hold that was
// already settled is acknowledged without a second ledger entry.
func (s *InventoryApplicationService) ConfirmConsumption(ctx context.Context, cmd ConfirmConsumptionCommand) (*ProductDTO, error) {
	quantity, err := domain.NewQuantity(cmd.Quantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	var applied bool
	product, err := s.mutateProduct(ctx, "confirm_consumption", cmd.SKU, func(p *domain.Product) error {
		var consumeErr error
		applied, consumeErr = p.ConfirmConsumption(quantity, cmd.ReservationID)
		return consumeErr
	})
	if err != nil {
		s.metrics.RecordStockOperation("confirm_consumption", false)
		return nil, err
	}

	s.metrics.RecordStockOperation("confirm_consumption", true)
	if applied {
		s.recordMovement(ctx, product, domain.MovementTypeOut, domain.ReasonWorkOrder,
			cmd.Quantity, cmd.Reference, cmd.PerformedBy)
	}

	s.logger.WithContext(ctx).Info("Confirmed consumption",
		"sku", cmd.SKU, "quantity", cmd.Quantity, "reference", cmd.Reference, "applied", applied)
	return ToProductDTO(product), nil
}

// ReleaseReservation returns reserved stock to the available bucket
func (s *InventoryApplicationService) ReleaseReservation(ctx context.Context, cmd ReleaseReservationCommand) (*ProductDTO, error) {
	quantity, err := domain.NewQuantity(cmd.Quantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	product, err := s.mutateProduct(ctx, "release_reservation", cmd.SKU, func(p *domain.Product) error {
		_, releaseErr := p.ReleaseReservation(quantity, cmd.ReservationID)
		return releaseErr
	})
	if err != nil {
		s.metrics.RecordStockOperation("release_reservation", false)
		return nil, err
	}

	s.metrics.RecordStockOperation("release_reservation", true)
	s.logger.WithContext(ctx).Info("Released reservation",
		"sku", cmd.SKU, "quantity", cmd.Quantity, "reference", cmd.Reference)
	return ToProductDTO(product), nil
}

// AdjustStock sets the counted stock level. The adjustment event is emitted
// even for a confirming count; the ledger only records actual changes.
func (s *InventoryApplicationService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (*ProductDTO, error) {
	newQuantity, err := domain.NewQuantity(cmd.NewQuantity)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	var previous int
	product, err := s.mutateProduct(ctx, "adjust_stock", cmd.SKU, func(p *domain.Product) error {
		previous = p.AvailableStock
		return p.AdjustStock(newQuantity, cmd.Reason, cmd.AdjustedBy)
	})
	if err != nil {
		s.metrics.RecordStockOperation("adjust_stock", false)
		return nil, err
	}

	s.metrics.RecordStockOperation("adjust_stock", true)
	if product.IsBelowMinStock() {
		s.metrics.RecordLowStockAlert()
	}

	if delta := cmd.NewQuantity - previous; delta != 0 {
		movementType := domain.MovementTypeAdjustment
		quantity := delta
		if quantity < 0 {
			quantity = -quantity
		}
		s.recordMovement(ctx, product, movementType, domain.ReasonAdjustment,
			quantity, "", cmd.AdjustedBy)
	}

	s.logger.WithContext(ctx).Info("Adjusted stock",
		"sku", cmd.SKU, "from", previous, "to", cmd.NewQuantity, "reason", cmd.Reason)
	return ToProductDTO(product), nil
}

// UpdateProduct changes descriptive fields
func (s *InventoryApplicationService) UpdateProduct(ctx context.Context, cmd UpdateProductCommand) (*ProductDTO, error) {
	return s.mutateProductDTO(ctx, "update_product", cmd.SKU, func(p *domain.Product) error {
		return p.UpdateDetails(cmd.Name, cmd.Description)
	})
}

// UpdateSellingPrice changes the list price
func (s *InventoryApplicationService) UpdateSellingPrice(ctx context.Context, cmd UpdateSellingPriceCommand) (*ProductDTO, error) {
	price, err := domain.NewMoney(cmd.Price, cmd.Currency)
	if err != nil {
		return nil, apperrors.ErrValidation(err.Error())
	}

	return s.mutateProductDTO(ctx, "update_selling_price", cmd.SKU, func(p *domain.Product) error {
		return p.UpdateSellingPrice(price)
	})
}

// SetMinStockLevel changes the reorder threshold
func (s *InventoryApplicationService) SetMinStockLevel(ctx context.Context, cmd SetMinStockLevelCommand) (*ProductDTO, error) {
	return s.mutateProductDTO(ctx, "set_min_stock", cmd.SKU, func(p *domain.Product) error {
		return p.SetMinStockLevel(cmd.Level)
	})
}

// mutateProductDTO is mutateProduct with the DTO conversion inlined
func (s *InventoryApplicationService) mutateProductDTO(ctx context.Context, command, sku string, mutate func(*domain.Product) error) (*ProductDTO, error) {
	product, err := s.mutateProduct(ctx, command, sku, mutate)
	if err != nil {
		return nil, err
	}
	return ToProductDTO(product), nil
}

// mutateProduct runs the load-mutate-save cycle under lock retry. Each
// attempt reloads the aggregate so the mutation applies to fresh state.
// Only version conflicts are retried; after the attempt budget the last
// conflict propagates to the caller.
func (s *InventoryApplicationService) mutateProduct(ctx context.Context, command, sku string, mutate func(*domain.Product) error) (*domain.Product, error) {
	var product *domain.Product
	attempt := 0

	retryConfig := &resilience.RetryConfig{
		MaxAttempts:     lockRetryAttempts,
		InitialDelay:    resilience.DefaultRetryInitialDelay,
		MaxDelay:        resilience.DefaultRetryMaxDelay,
		BackoffFactor:   resilience.DefaultRetryBackoffFactor,
		RetryableErrors: domain.IsOptimisticLock,
	}

	err := resilience.Retry(ctx, retryConfig, func() error {
		attempt++
		if attempt > 1 {
			s.metrics.RecordCommandRetry(command)
		}

		loaded, err := s.products.FindBySKU(ctx, sku)
		if err != nil {
			return err
		}

		if err := mutate(loaded); err != nil {
			return err
		}

		if err := s.products.Save(ctx, loaded, loaded.Version); err != nil {
			if domain.IsOptimisticLock(err) {
				s.metrics.RecordLockConflict("product")
				s.logger.WithContext(ctx).Warn("Optimistic lock conflict",
					"sku", sku, "command", command, "attempt", attempt)
			}
			return err
		}

		product = loaded
		return nil
	})

	if err != nil {
		return nil, s.mapProductError(sku, err)
	}

	return product, nil
}

// mapProductError translates domain errors into API errors. Unclassified
// errors pass through for the boundary to treat as internal.
func (s *InventoryApplicationService) mapProductError(sku string, err error) error {
	switch {
	case err == domain.ErrProductNotFound:
		return apperrors.ErrNotFoundWithID("product", sku).Wrap(err)
	case domain.IsInsufficientStock(err):
		return apperrors.ErrUnprocessable(err.Error()).Wrap(err)
	case domain.IsOptimisticLock(err):
		return apperrors.ErrConcurrentUpdate("product").Wrap(err)
	case err == domain.ErrInvalidQuantity,
		err == domain.ErrNegativeQuantity,
		err == domain.ErrInvalidMinStock,
		err == domain.ErrInvalidProductName,
		err == domain.ErrCurrencyMismatch:
		return apperrors.ErrValidation(err.Error()).Wrap(err)
	default:
		return err
	}
}

// recordMovement appends a ledger entry after a committed stock change.
// The aggregate change has already committed, so a ledger write failure is
// logged rather than surfaced as a command failure.
func (s *InventoryApplicationService) recordMovement(ctx context.Context, product *domain.Product,
	movementType domain.MovementType, reason domain.MovementReason, quantity int, reference, performedBy string) {

	movement, err := domain.NewStockMovement(product.TenantID, product.SKU,
		movementType, reason, quantity, product.AvailableStock, reference, performedBy)
	if err != nil {
		s.logger.WithContext(ctx).Error("Failed to build stock movement",
			"sku", product.SKU, "error", err)
		return
	}

	if err := s.movements.Save(ctx, movement); err != nil {
		s.logger.WithContext(ctx).Error("Failed to record stock movement",
			"sku", product.SKU, "movementId", movement.ID, "error", err)
	}
}
