package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sharedevents "github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/kafka"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"

	"github.com/autofix-platform/autofix/services/inventory/internal/application"
	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

type productStore struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	saveErr  error
	// failOnce is returned for the first Save of failSKU only
	failSKU  string
	failOnce error
}

func (s *productStore) Create(ctx context.Context, p *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.PullDomainEvents()
	clone := *p
	s.products[p.SKU] = &clone
	return nil
}

func (s *productStore) Save(ctx context.Context, p *domain.Product, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.failOnce != nil && p.SKU == s.failSKU {
		err := s.failOnce
		s.failOnce = nil
		return err
	}
	stored, ok := s.products[p.SKU]
	if !ok {
		return domain.ErrProductNotFound
	}
	if stored.Version != expectedVersion {
		return domain.NewOptimisticLockError(p.SKU, expectedVersion, stored.Version)
	}
	p.PullDomainEvents()
	p.Version = expectedVersion + 1
	clone := *p
	s.products[p.SKU] = &clone
	return nil
}

func (s *productStore) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.products[sku]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *stored
	return &clone, nil
}

func (s *productStore) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	return nil, domain.ErrProductNotFound
}

func (s *productStore) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Product, int64, error) {
	return nil, 0, nil
}

func (s *productStore) FindBelowMinStock(ctx context.Context) ([]*domain.Product, error) {
	return nil, nil
}

type movementStore struct {
	mu        sync.Mutex
	movements []*domain.StockMovement
}

func (s *movementStore) Save(ctx context.Context, m *domain.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movements = append(s.movements, m)
	return nil
}

func (s *movementStore) SaveAll(ctx context.Context, ms []*domain.StockMovement) error {
	for _, m := range ms {
		_ = s.Save(ctx, m)
	}
	return nil
}

func (s *movementStore) FindBySKU(ctx context.Context, sku string, from, to time.Time, offset, limit int) ([]*domain.StockMovement, int64, error) {
	return nil, 0, nil
}

func (s *movementStore) FindByReference(ctx context.Context, reference string) ([]*domain.StockMovement, error) {
	return nil, nil
}

func newHandlerUnderTest(t *testing.T) (*WorkOrderEventHandler, *productStore, *movementStore) {
	t.Helper()

	products := &productStore{products: map[string]*domain.Product{}}
	movements := &movementStore{}
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	m := metrics.New(metrics.DefaultConfig("test"))

	service := application.NewInventoryApplicationService(products, movements, m, logger)
	return NewWorkOrderEventHandler(service, logger), products, movements
}

func seedStoreProduct(t *testing.T, store *productStore, sku string, available, reserved int, holdID string) {
	t.Helper()

	parsed, err := domain.NewSKU(sku)
	require.NoError(t, err)
	cost, err := domain.NewMoney(1000, "USD")
	require.NoError(t, err)

	product, err := domain.NewProduct("tenant-1", parsed, "Part "+sku, "", cost, available, 0)
	require.NoError(t, err)
	product.PullDomainEvents()
	if reserved > 0 {
		quantity, err := domain.NewQuantity(reserved)
		require.NoError(t, err)
		_, err = product.Reserve(quantity, holdID)
		require.NoError(t, err)
	}
	clone := *product
	store.products[sku] = &clone
}

func approvedEnvelope(t *testing.T, data sharedevents.WorkOrderApprovedData) *sharedevents.Envelope {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return &sharedevents.Envelope{
		EventID:     "evt-1",
		EventName:   sharedevents.WorkOrderApproved,
		OccurredOn:  time.Now().UTC(),
		AggregateID: data.WorkOrderID,
		TenantID:    data.TenantID,
		Data:        payload,
	}
}

func completedEnvelope(t *testing.T, data sharedevents.WorkOrderCompletedData) *sharedevents.Envelope {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return &sharedevents.Envelope{
		EventID:     "evt-2",
		EventName:   sharedevents.WorkOrderCompleted,
		OccurredOn:  time.Now().UTC(),
		AggregateID: data.WorkOrderID,
		TenantID:    data.TenantID,
		Data:        payload,
	}
}

func TestHandleWorkOrderApproved_ReservesPartLines(t *testing.T) {
	handler, products, _ := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "BRK-PAD-001", 10, 0, "")

	envelope := approvedEnvelope(t, sharedevents.WorkOrderApprovedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "BRK-PAD-001", Quantity: 4},
			{ItemID: "item-2", Type: sharedevents.ItemTypeService, Quantity: 1},
		},
	})

	err := handler.HandleWorkOrderApproved(context.Background(), envelope)
	require.NoError(t, err)

	stored := products.products["BRK-PAD-001"]
	assert.Equal(t, 6, stored.AvailableStock)
	assert.Equal(t, 4, stored.ReservedStock)
}

func TestHandleWorkOrderApproved_InsufficientStockIsSkipped(t *testing.T) {
	handler, products, _ := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "BRK-PAD-001", 2, 0, "")
	seedStoreProduct(t, products, "OIL-FLT-002", 10, 0, "")

	envelope := approvedEnvelope(t, sharedevents.WorkOrderApprovedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "BRK-PAD-001", Quantity: 5},
			{ItemID: "item-2", Type: sharedevents.ItemTypePart, SKU: "OIL-FLT-002", Quantity: 1},
		},
	})

	// The short line is logged and skipped; the rest of the order proceeds
	err := handler.HandleWorkOrderApproved(context.Background(), envelope)
	require.NoError(t, err)

	assert.Equal(t, 2, products.products["BRK-PAD-001"].AvailableStock)
	assert.Equal(t, 1, products.products["OIL-FLT-002"].ReservedStock)
}

func TestHandleWorkOrderApproved_TransientErrorPropagates(t *testing.T) {
	handler, products, _ := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "BRK-PAD-001", 10, 0, "")
	products.saveErr = errors.New("connection reset")

	envelope := approvedEnvelope(t, sharedevents.WorkOrderApprovedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "BRK-PAD-001", Quantity: 4},
		},
	})

	err := handler.HandleWorkOrderApproved(context.Background(), envelope)
	require.Error(t, err)
}

func TestHandleWorkOrderApproved_RedeliveryAfterPartialFailure(t *testing.T) {
	handler, products, _ := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "AAA-AAA-001", 10, 0, "")
	seedStoreProduct(t, products, "BBB-BBB-002", 5, 0, "")
	products.failSKU = "BBB-BBB-002"
	products.failOnce = errors.New("connection reset")

	envelope := approvedEnvelope(t, sharedevents.WorkOrderApprovedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "AAA-AAA-001", Quantity: 3},
			{ItemID: "item-2", Type: sharedevents.ItemTypePart, SKU: "BBB-BBB-002", Quantity: 2},
		},
	})

	// First delivery reserves the first line, then fails on the second
	err := handler.HandleWorkOrderApproved(context.Background(), envelope)
	require.Error(t, err)
	assert.Equal(t, 3, products.products["AAA-AAA-001"].ReservedStock)

	// Redelivery retries the whole event; the line that already committed
	// must not be reserved a second time
	err = handler.HandleWorkOrderApproved(context.Background(), envelope)
	require.NoError(t, err)

	first := products.products["AAA-AAA-001"]
	assert.Equal(t, 7, first.AvailableStock)
	assert.Equal(t, 3, first.ReservedStock)

	second := products.products["BBB-BBB-002"]
	assert.Equal(t, 3, second.AvailableStock)
	assert.Equal(t, 2, second.ReservedStock)
}

func TestHandleWorkOrderCompleted_RedeliverySettlesOnce(t *testing.T) {
	handler, products, movements := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "BRK-PAD-001", 10, 4, "item-1")

	envelope := completedEnvelope(t, sharedevents.WorkOrderCompletedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		CompletedAt: time.Now().UTC(),
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "BRK-PAD-001", Quantity: 4},
		},
	})

	require.NoError(t, handler.HandleWorkOrderCompleted(context.Background(), envelope))
	require.NoError(t, handler.HandleWorkOrderCompleted(context.Background(), envelope))

	stored := products.products["BRK-PAD-001"]
	assert.Equal(t, 0, stored.ReservedStock)
	assert.Equal(t, 6, stored.AvailableStock)
	assert.Len(t, movements.movements, 1)
}

func TestHandleWorkOrderCompleted_ConfirmsConsumption(t *testing.T) {
	handler, products, movements := newHandlerUnderTest(t)
	seedStoreProduct(t, products, "BRK-PAD-001", 10, 4, "item-1")

	envelope := completedEnvelope(t, sharedevents.WorkOrderCompletedData{
		WorkOrderID: "wo-1",
		OrderNumber: "WO-2026-0001",
		TenantID:    "tenant-1",
		CompletedAt: time.Now().UTC(),
		Items: []sharedevents.WorkOrderItemLine{
			{ItemID: "item-1", Type: sharedevents.ItemTypePart, SKU: "BRK-PAD-001", Quantity: 4},
		},
	})

	err := handler.HandleWorkOrderCompleted(context.Background(), envelope)
	require.NoError(t, err)

	stored := products.products["BRK-PAD-001"]
	assert.Equal(t, 0, stored.ReservedStock)

	require.Len(t, movements.movements, 1)
	assert.Equal(t, domain.MovementTypeOut, movements.movements[0].Type)
	assert.Equal(t, domain.ReasonWorkOrder, movements.movements[0].Reason)
	assert.Equal(t, "WO-2026-0001", movements.movements[0].Reference)
}

func TestHandleWorkOrderCompleted_BadPayload(t *testing.T) {
	handler, _, _ := newHandlerUnderTest(t)

	envelope := &sharedevents.Envelope{
		EventID:   "evt-3",
		EventName: sharedevents.WorkOrderCompleted,
		Data:      json.RawMessage(`{"items": "not-an-array"}`),
	}

	err := handler.HandleWorkOrderCompleted(context.Background(), envelope)
	require.Error(t, err)
	assert.True(t, kafka.IsPermanent(err), "undecodable payloads must not be redelivered")
}
