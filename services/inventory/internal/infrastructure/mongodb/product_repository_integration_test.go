package mongodb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/mongodb"
	outboxMongo "github.com/autofix-platform/autofix/pkg/outbox/mongodb"
	"github.com/autofix-platform/autofix/pkg/tenant"
	testinfra "github.com/autofix-platform/autofix/pkg/testing"

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

type ProductRepositoryIntegrationTestSuite struct {
	suite.Suite
	container    *testinfra.MongoDBContainer
	client       *mongodb.InstrumentedClient
	outboxRepo   *outboxMongo.OutboxRepository
	repo         *ProductRepository
	movementRepo *MovementRepository
	ctx          context.Context
	seq          int
}

func TestProductRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(ProductRepositoryIntegrationTestSuite))
}

func (s *ProductRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = tenant.ToContext(context.Background(), "tenant-001")

	container, err := testinfra.NewMongoDBContainer(context.Background())
	s.Require().NoError(err)
	s.container = container

	client, err := mongodb.NewClient(context.Background(), &mongodb.Config{
		URI:            container.URI,
		Database:       "inventory_test",
		ConnectTimeout: mongodb.DefaultConfig().ConnectTimeout,
		MaxPoolSize:    10,
		MinPoolSize:    1,
	})
	s.Require().NoError(err)

	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	s.client = mongodb.NewInstrumentedClient(client, metrics.New(metrics.DefaultConfig("test")), logger)

	s.outboxRepo = outboxMongo.NewOutboxRepository(s.client.Database())
	s.repo = NewProductRepository(s.client, s.outboxRepo, logger)
	s.movementRepo = NewMovementRepository(s.client)

	s.Require().NoError(s.repo.EnsureIndexes(context.Background()))
	s.Require().NoError(s.movementRepo.EnsureIndexes(context.Background()))
}

func (s *ProductRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Close(context.Background())
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(context.Background()))
	}
}

func (s *ProductRepositoryIntegrationTestSuite) TearDownTest() {
	db := s.client.Database()
	db.Collection(productCollection).Drop(context.Background())
	db.Collection(movementCollection).Drop(context.Background())
	db.Collection(outboxMongo.DefaultCollectionName).Drop(context.Background())
}

func (s *ProductRepositoryIntegrationTestSuite) newProduct(stock, minStock int) *domain.Product {
	s.seq++
	sku, err := domain.NewSKU(fmt.Sprintf("BRK-PAD-%03d", s.seq))
	s.Require().NoError(err)
	cost, err := domain.NewMoney(4500, "USD")
	s.Require().NoError(err)

	product, err := domain.NewProduct("tenant-001", sku, "Front brake pads", "", cost, stock, minStock)
	s.Require().NoError(err)
	return product
}

func (s *ProductRepositoryIntegrationTestSuite) quantity(n int) domain.Quantity {
	q, err := domain.NewQuantity(n)
	s.Require().NoError(err)
	return q
}

func (s *ProductRepositoryIntegrationTestSuite) TestCreate_PersistsProduct() {
	product := s.newProduct(20, 5)

	err := s.repo.Create(s.ctx, product)
	s.Require().NoError(err)

	found, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)
	s.Equal(product.SKU, found.SKU)
	s.Equal(20, found.AvailableStock)
	s.Equal(int64(0), found.Version)
}

func (s *ProductRepositoryIntegrationTestSuite) TestCreate_DuplicateSKU() {
	product := s.newProduct(20, 5)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	sku, err := domain.NewSKU(product.SKU)
	s.Require().NoError(err)
	cost, err := domain.NewMoney(5000, "USD")
	s.Require().NoError(err)
	dup, err := domain.NewProduct("tenant-001", sku, "Duplicate pads", "", cost, 10, 2)
	s.Require().NoError(err)

	err = s.repo.Create(s.ctx, dup)
	s.Equal(domain.ErrProductAlreadyExists, err)
}

func (s *ProductRepositoryIntegrationTestSuite) TestCreate_LowStockEventStagedAtomically() {
	// Stock already below minimum emits LowStockDetected at creation
	product := s.newProduct(2, 10)

	s.Require().NoError(s.repo.Create(s.ctx, product))

	msgs, err := s.outboxRepo.FindByAggregateID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal(events.LowStockDetected, msgs[0].EventName)
	s.Equal(events.TopicInventoryEvents, msgs[0].Topic)
}

func (s *ProductRepositoryIntegrationTestSuite) TestSave_StaleVersionConflict() {
	product := s.newProduct(20, 5)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	first, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)
	second, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)

	_, err = first.Reserve(s.quantity(5), "")
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Save(s.ctx, first, first.Version))
	s.Equal(int64(1), first.Version)

	_, err = second.Reserve(s.quantity(10), "")
	s.Require().NoError(err)
	err = s.repo.Save(s.ctx, second, second.Version)

	s.Require().True(domain.IsOptimisticLock(err))
	var lockErr *domain.OptimisticLockError
	s.Require().ErrorAs(err, &lockErr)
	s.Equal(int64(0), lockErr.ExpectedVersion)
	s.Equal(int64(1), lockErr.ActualVersion)
	s.Equal(int64(0), second.Version)

	// Only the first writer's reservation landed
	found, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)
	s.Equal(15, found.AvailableStock)
	s.Equal(5, found.ReservedStock)
}

func (s *ProductRepositoryIntegrationTestSuite) TestSave_LowStockEventStaged() {
	product := s.newProduct(12, 10)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	// Crossing the minimum emits LowStockDetected
	_, err := product.Reserve(s.quantity(5), "")
	s.Require().NoError(err)
	s.Require().NoError(s.repo.Save(s.ctx, product, product.Version))

	msgs, err := s.outboxRepo.FindByAggregateID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)
	s.Equal(events.LowStockDetected, msgs[0].EventName)
}

func (s *ProductRepositoryIntegrationTestSuite) TestSave_ReservationHoldPersisted() {
	product := s.newProduct(20, 0)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	applied, err := product.Reserve(s.quantity(4), "item-1")
	s.Require().NoError(err)
	s.True(applied)
	s.Require().NoError(s.repo.Save(s.ctx, product, product.Version))

	// The hold survives the round trip, so a replayed reserve is a no-op
	reloaded, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)
	s.True(reloaded.HoldsReservation("item-1"))

	applied, err = reloaded.Reserve(s.quantity(4), "item-1")
	s.Require().NoError(err)
	s.False(applied)
	s.Equal(16, reloaded.AvailableStock)

	applied, err = reloaded.ConfirmConsumption(s.quantity(4), "item-1")
	s.Require().NoError(err)
	s.True(applied)
	s.Require().NoError(s.repo.Save(s.ctx, reloaded, reloaded.Version))

	settled, err := s.repo.FindBySKU(s.ctx, product.SKU)
	s.Require().NoError(err)
	s.False(settled.HoldsReservation("item-1"))
	s.Equal(0, settled.ReservedStock)
}

func (s *ProductRepositoryIntegrationTestSuite) TestFindBelowMinStock() {
	low := s.newProduct(2, 10)
	s.Require().NoError(s.repo.Create(s.ctx, low))

	healthy := s.newProduct(50, 10)
	s.Require().NoError(s.repo.Create(s.ctx, healthy))

	products, err := s.repo.FindBelowMinStock(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(products, 1)
	s.Equal(low.SKU, products[0].SKU)
}

func (s *ProductRepositoryIntegrationTestSuite) TestList_ActiveOnly() {
	active := s.newProduct(20, 5)
	s.Require().NoError(s.repo.Create(s.ctx, active))

	inactive := s.newProduct(20, 5)
	inactive.Deactivate()
	s.Require().NoError(s.repo.Create(s.ctx, inactive))

	products, total, err := s.repo.List(s.ctx, true, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Require().Len(products, 1)
	s.Equal(active.SKU, products[0].SKU)

	_, total, err = s.repo.List(s.ctx, false, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
}

func (s *ProductRepositoryIntegrationTestSuite) TestMovements_AppendAndQuery() {
	product := s.newProduct(20, 5)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	in, err := domain.NewStockMovement("tenant-001", product.SKU,
		domain.MovementTypeIn, domain.ReasonPurchase, 10, 30, "PO-1001", "jdoe")
	s.Require().NoError(err)
	out, err := domain.NewStockMovement("tenant-001", product.SKU,
		domain.MovementTypeOut, domain.ReasonWorkOrder, 4, 26, "WO-2026-0001", "")
	s.Require().NoError(err)

	s.Require().NoError(s.movementRepo.SaveAll(s.ctx, []*domain.StockMovement{in, out}))

	movements, total, err := s.movementRepo.FindBySKU(s.ctx, product.SKU, time.Time{}, time.Time{}, 0, 10)
	s.Require().NoError(err)
	s.Equal(int64(2), total)
	s.Len(movements, 2)

	byRef, err := s.movementRepo.FindByReference(s.ctx, "WO-2026-0001")
	s.Require().NoError(err)
	s.Require().Len(byRef, 1)
	s.Equal(domain.ReasonWorkOrder, byRef[0].Reason)
}

func (s *ProductRepositoryIntegrationTestSuite) TestMultiTenancy_ProductsIsolated() {
	product := s.newProduct(20, 5)
	s.Require().NoError(s.repo.Create(s.ctx, product))

	otherCtx := tenant.ToContext(context.Background(), "tenant-002")
	_, err := s.repo.FindBySKU(otherCtx, product.SKU)
	s.Equal(domain.ErrProductNotFound, err)
}
