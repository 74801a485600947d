package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/autofix-platform/autofix/pkg/errors"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

type fakeProductRepo struct {
	mu        sync.Mutex
	products  map[string]*domain.Product
	saveCalls int
	// failSavesWith is returned for the first failSaves Save calls
	failSaves     int
	failSavesWith error
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: map[string]*domain.Product{}}
}

func (r *fakeProductRepo) put(p *domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *p
	r.products[p.SKU] = &clone
}

func (r *fakeProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.products[p.SKU]; exists {
		return domain.ErrProductAlreadyExists
	}
	p.PullDomainEvents()
	clone := *p
	r.products[p.SKU] = &clone
	return nil
}

func (r *fakeProductRepo) Save(ctx context.Context, p *domain.Product, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.failSaves > 0 {
		r.failSaves--
		return r.failSavesWith
	}
	stored, ok := r.products[p.SKU]
	if !ok {
		return domain.ErrProductNotFound
	}
	if stored.Version != expectedVersion {
		return domain.NewOptimisticLockError(p.SKU, expectedVersion, stored.Version)
	}
	p.PullDomainEvents()
	p.Version = expectedVersion + 1
	clone := *p
	r.products[p.SKU] = &clone
	return nil
}

func (r *fakeProductRepo) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.products[sku]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *stored
	return &clone, nil
}

func (r *fakeProductRepo) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			clone := *p
			return &clone, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (r *fakeProductRepo) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Product, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.products {
		if activeOnly && !p.Active {
			continue
		}
		clone := *p
		out = append(out, &clone)
	}
	return out, int64(len(out)), nil
}

func (r *fakeProductRepo) FindBelowMinStock(ctx context.Context) ([]*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.products {
		if p.IsBelowMinStock() {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeMovementRepo struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
	saveErr   error
}

func (r *fakeMovementRepo) Save(ctx context.Context, m *domain.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.movements = append(r.movements, m)
	return nil
}

func (r *fakeMovementRepo) SaveAll(ctx context.Context, ms []*domain.StockMovement) error {
	for _, m := range ms {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeMovementRepo) FindBySKU(ctx context.Context, sku string, from, to time.Time, offset, limit int) ([]*domain.StockMovement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StockMovement
	for _, m := range r.movements {
		if m.SKU == sku {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeMovementRepo) FindByReference(ctx context.Context, reference string) ([]*domain.StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.StockMovement
	for _, m := range r.movements {
		if m.Reference == reference {
			out = append(out, m)
		}
	}
	return out, nil
}

func newTestService(t *testing.T) (*InventoryApplicationService, *fakeProductRepo, *fakeMovementRepo) {
	t.Helper()

	products := newFakeProductRepo()
	movements := &fakeMovementRepo{}
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	m := metrics.New(metrics.DefaultConfig("test"))

	return NewInventoryApplicationService(products, movements, m, logger), products, movements
}

func seedProduct(t *testing.T, repo *fakeProductRepo, availableStock, minStockLevel int) *domain.Product {
	t.Helper()

	sku, err := domain.NewSKU("BRK-PAD-001")
	require.NoError(t, err)
	cost, err := domain.NewMoney(2500, "USD")
	require.NoError(t, err)

	product, err := domain.NewProduct("tenant-1", sku, "Brake pads", "", cost, availableStock, minStockLevel)
	require.NoError(t, err)
	product.PullDomainEvents()
	repo.put(product)
	return product
}

func TestCreateProduct(t *testing.T) {
	service, _, movements := newTestService(t)

	dto, err := service.CreateProduct(context.Background(), CreateProductCommand{
		SKU:          "OIL-FLT-004",
		Name:         "Oil filter",
		UnitCost:     899,
		Currency:     "USD",
		InitialStock: 12,
	})
	require.NoError(t, err)

	assert.Equal(t, "OIL-FLT-004", dto.SKU)
	assert.Equal(t, 12, dto.AvailableStock)
	assert.Equal(t, int64(0), dto.Version)

	// Initial stock lands in the ledger as a purchase intake
	require.Len(t, movements.movements, 1)
	assert.Equal(t, domain.MovementTypeIn, movements.movements[0].Type)
	assert.Equal(t, domain.ReasonPurchase, movements.movements[0].Reason)
	assert.Equal(t, 12, movements.movements[0].BalanceAfter)
}

func TestCreateProduct_DuplicateSKU(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 10, 0)

	_, err := service.CreateProduct(context.Background(), CreateProductCommand{
		SKU:      "BRK-PAD-001",
		Name:     "Brake pads again",
		UnitCost: 100,
		Currency: "USD",
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestCreateProduct_InvalidSKU(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.CreateProduct(context.Background(), CreateProductCommand{
		SKU:      "not-a-sku",
		Name:     "Brake pads",
		UnitCost: 100,
		Currency: "USD",
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
}

func TestAddStock_WritesLedgerEntry(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	dto, err := service.AddStock(context.Background(), AddStockCommand{
		SKU:         "BRK-PAD-001",
		Quantity:    5,
		UnitCost:    2500,
		Currency:    "USD",
		Reference:   "PO-1001",
		PerformedBy: "jdoe",
	})
	require.NoError(t, err)

	assert.Equal(t, 15, dto.AvailableStock)
	assert.Equal(t, int64(1), dto.Version)

	require.Len(t, movements.movements, 1)
	entry := movements.movements[0]
	assert.Equal(t, domain.MovementTypeIn, entry.Type)
	assert.Equal(t, 5, entry.Quantity)
	assert.Equal(t, 15, entry.BalanceAfter)
	assert.Equal(t, "PO-1001", entry.Reference)
}

func TestReserveStock_InsufficientMapsToUnprocessable(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 3, 0)

	_, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU:      "BRK-PAD-001",
		Quantity: 10,
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeUnprocessable, appErr.Code)
	assert.True(t, domain.IsInsufficientStock(err))
}

func TestReserveStock_NoLedgerEntry(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	dto, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU:       "BRK-PAD-001",
		Quantity:  4,
		Reference: "WO-2026-0001",
	})
	require.NoError(t, err)

	assert.Equal(t, 6, dto.AvailableStock)
	assert.Equal(t, 4, dto.ReservedStock)
	assert.Empty(t, movements.movements)
}

func TestConfirmConsumption_WritesWorkOrderMovement(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	_, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU: "BRK-PAD-001", Quantity: 4,
	})
	require.NoError(t, err)

	dto, err := service.ConfirmConsumption(context.Background(), ConfirmConsumptionCommand{
		SKU:       "BRK-PAD-001",
		Quantity:  4,
		Reference: "WO-2026-0001",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, dto.ReservedStock)
	assert.Equal(t, 6, dto.AvailableStock)

	require.Len(t, movements.movements, 1)
	entry := movements.movements[0]
	assert.Equal(t, domain.MovementTypeOut, entry.Type)
	assert.Equal(t, domain.ReasonWorkOrder, entry.Reason)
	assert.Equal(t, "WO-2026-0001", entry.Reference)
	assert.Equal(t, 6, entry.BalanceAfter)
}

func TestConfirmConsumption_SettledHoldSkipsLedger(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	_, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU: "BRK-PAD-001", Quantity: 4, Reference: "WO-2026-0001", ReservationID: "item-1",
	})
	require.NoError(t, err)

	first, err := service.ConfirmConsumption(context.Background(), ConfirmConsumptionCommand{
		SKU: "BRK-PAD-001", Quantity: 4, Reference: "WO-2026-0001", ReservationID: "item-1",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, first.ReservedStock)

	// Repeating the confirmation for the settled hold succeeds but must not
	// drain stock again or duplicate the ledger entry.
	second, err := service.ConfirmConsumption(context.Background(), ConfirmConsumptionCommand{
		SKU: "BRK-PAD-001", Quantity: 4, Reference: "WO-2026-0001", ReservationID: "item-1",
	})
	require.NoError(t, err)

	assert.Equal(t, 0, second.ReservedStock)
	assert.Equal(t, 6, second.AvailableStock)
	assert.Len(t, movements.movements, 1)
}

func TestAdjustStock_NegativeQuantityRejected(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 10, 0)

	_, err := service.AdjustStock(context.Background(), AdjustStockCommand{
		SKU:         "BRK-PAD-001",
		NewQuantity: -1,
		Reason:      "typo",
		AdjustedBy:  "jdoe",
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
}

func TestAdjustStock_ConfirmingCountSkipsLedger(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	dto, err := service.AdjustStock(context.Background(), AdjustStockCommand{
		SKU:         "BRK-PAD-001",
		NewQuantity: 10,
		Reason:      "cycle count",
		AdjustedBy:  "jdoe",
	})
	require.NoError(t, err)

	// Save still happened (the event must reach the outbox)
	assert.Equal(t, int64(1), dto.Version)
	assert.Empty(t, movements.movements)
}

func TestAdjustStock_ShrinkageWritesAdjustment(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)

	_, err := service.AdjustStock(context.Background(), AdjustStockCommand{
		SKU:         "BRK-PAD-001",
		NewQuantity: 7,
		Reason:      "shrinkage",
		AdjustedBy:  "jdoe",
	})
	require.NoError(t, err)

	require.Len(t, movements.movements, 1)
	entry := movements.movements[0]
	assert.Equal(t, domain.MovementTypeAdjustment, entry.Type)
	assert.Equal(t, 3, entry.Quantity)
	assert.Equal(t, 7, entry.BalanceAfter)
}

func TestMutateProduct_RetriesLockConflicts(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 10, 0)

	products.failSaves = 2
	products.failSavesWith = domain.NewOptimisticLockError("BRK-PAD-001", 0, 1)

	dto, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU: "BRK-PAD-001", Quantity: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, products.saveCalls)
	assert.Equal(t, 8, dto.AvailableStock)
}

func TestMutateProduct_ExhaustionReturnsLastLockError(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 10, 0)

	products.failSaves = 5
	products.failSavesWith = domain.NewOptimisticLockError("BRK-PAD-001", 3, 7)

	_, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU: "BRK-PAD-001", Quantity: 2,
	})
	require.Error(t, err)

	assert.Equal(t, 3, products.saveCalls, "attempt budget is three")

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeConcurrentUpdate, appErr.Code)

	var lockErr *domain.OptimisticLockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, int64(3), lockErr.ExpectedVersion)
	assert.Equal(t, int64(7), lockErr.ActualVersion)
}

func TestMutateProduct_NonLockErrorsAreNotRetried(t *testing.T) {
	service, products, _ := newTestService(t)
	seedProduct(t, products, 10, 0)

	products.failSaves = 1
	products.failSavesWith = errors.New("connection reset")

	_, err := service.ReserveStock(context.Background(), ReserveStockCommand{
		SKU: "BRK-PAD-001", Quantity: 2,
	})
	require.Error(t, err)
	assert.Equal(t, 1, products.saveCalls)
}

func TestMutateProduct_UnknownSKU(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.AddStock(context.Background(), AddStockCommand{
		SKU: "NOP-NOP-999", Quantity: 1, UnitCost: 100, Currency: "USD",
	})

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestLedgerWriteFailureDoesNotFailCommand(t *testing.T) {
	service, products, movements := newTestService(t)
	seedProduct(t, products, 10, 0)
	movements.saveErr = errors.New("ledger unavailable")

	dto, err := service.AddStock(context.Background(), AddStockCommand{
		SKU: "BRK-PAD-001", Quantity: 5, UnitCost: 2500, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, 15, dto.AvailableStock)
}

func TestQueryService(t *testing.T) {
	_, products, movementRepo := newTestService(t)
	seedProduct(t, products, 2, 5)

	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	queries := NewInventoryQueryService(products, movementRepo, logger)

	t.Run("get product", func(t *testing.T) {
		dto, err := queries.GetProduct(context.Background(), GetProductQuery{SKU: "BRK-PAD-001"})
		require.NoError(t, err)
		assert.True(t, dto.IsLowStock)
	})

	t.Run("get missing product", func(t *testing.T) {
		_, err := queries.GetProduct(context.Background(), GetProductQuery{SKU: "NOP-NOP-999"})
		appErr, ok := apperrors.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
	})

	t.Run("low stock listing", func(t *testing.T) {
		low, err := queries.ListLowStockProducts(context.Background())
		require.NoError(t, err)
		require.Len(t, low, 1)
		assert.Equal(t, "BRK-PAD-001", low[0].SKU)
	})
}
