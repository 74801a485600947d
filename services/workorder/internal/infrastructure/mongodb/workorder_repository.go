package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/mongodb"
	"github.com/autofix-platform/autofix/pkg/outbox"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/workorder/internal/domain"
)

const workOrderCollection = "work_orders"

// WorkOrderRepository implements domain.WorkOrderRepository on MongoDB.
// Aggregate writes and outbox staging share one transaction; the version
// condition on the replace filter is what turns concurrent saves into lock
// conflicts.
type WorkOrderRepository struct {
	client     *mongodb.InstrumentedClient
	collection *mongodb.InstrumentedCollection
	outboxRepo outbox.Repository
	tenants    *tenant.RepositoryHelper
	logger     *logging.Logger
}

// NewWorkOrderRepository creates a new WorkOrderRepository
func NewWorkOrderRepository(client *mongodb.InstrumentedClient, outboxRepo outbox.Repository, logger *logging.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{
		client:     client,
		collection: client.Collection(workOrderCollection),
		outboxRepo: outboxRepo,
		tenants:    tenant.NewRepositoryHelper(false),
		logger:     logger,
	}
}

// EnsureIndexes creates the work order indexes
func (r *WorkOrderRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "orderNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_tenant_order_number"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_tenant_status_created"),
		},
	}

	_, err := r.collection.Underlying().Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create work order indexes: %w", err)
	}
	return nil
}

// Create inserts a new work order and stages its buffered events atomically
func (r *WorkOrderRepository) Create(ctx context.Context, order *domain.WorkOrder) error {
	msgs, err := r.stageEvents(order)
	if err != nil {
		return err
	}

	return r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.InsertOne(sessCtx, order); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrWorkOrderAlreadyExists
			}
			return fmt.Errorf("failed to insert work order: %w", err)
		}

		if len(msgs) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, msgs); err != nil {
				return fmt.Errorf("failed to stage outbox messages: %w", err)
			}
		}

		return nil
	})
}

// Save replaces the aggregate document conditionally on expectedVersion.
// Buffered events are staged in the same transaction, so either the state
// change and its events both commit or neither does. On success the
// in-memory aggregate carries the incremented version.
func (r *WorkOrderRepository) Save(ctx context.Context, order *domain.WorkOrder, expectedVersion int64) error {
	msgs, err := r.stageEvents(order)
	if err != nil {
		return err
	}

	order.Version = expectedVersion + 1

	err = r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{
			"_id":      order.ID,
			"tenantId": order.TenantID,
			"version":  expectedVersion,
		}

		result, err := r.collection.ReplaceOne(sessCtx, filter, order)
		if err != nil {
			return fmt.Errorf("failed to save work order: %w", err)
		}

		if result.MatchedCount == 0 {
			return r.lockConflict(sessCtx, order, expectedVersion)
		}

		if len(msgs) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, msgs); err != nil {
				return fmt.Errorf("failed to stage outbox messages: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		order.Version = expectedVersion
		return err
	}

	return nil
}

// lockConflict distinguishes a deleted work order from a version mismatch
func (r *WorkOrderRepository) lockConflict(ctx context.Context, order *domain.WorkOrder, expectedVersion int64) error {
	var stored struct {
		Version int64 `bson:"version"`
	}

	err := r.collection.FindOne(ctx, bson.M{
		"_id":      order.ID,
		"tenantId": order.TenantID,
	}, options.FindOne().SetProjection(bson.M{"version": 1})).Decode(&stored)

	if err == mongo.ErrNoDocuments {
		return domain.ErrWorkOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read stored version: %w", err)
	}

	return domain.NewOptimisticLockError(order.ID, expectedVersion, stored.Version)
}

// FindByID retrieves a work order by aggregate id within the tenant in context
func (r *WorkOrderRepository) FindByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, filter)
}

// FindByOrderNumber retrieves a work order by its business number
func (r *WorkOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*domain.WorkOrder, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{"orderNumber": orderNumber})
	if err != nil {
		return nil, err
	}

	return r.findOne(ctx, filter)
}

func (r *WorkOrderRepository) findOne(ctx context.Context, filter bson.M) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrWorkOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find work order: %w", err)
	}

	return &order, nil
}

// List retrieves work orders with pagination, newest first
func (r *WorkOrderRepository) List(ctx context.Context, status domain.WorkOrderStatus, offset, limit int) ([]*domain.WorkOrder, int64, error) {
	base := bson.M{}
	if status != "" {
		base["status"] = status
	}

	filter, err := r.tenants.WithTenantFilter(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count work orders: %w", err)
	}

	opts := options.Find().
		SetSort(mongodb.SortDescending("createdAt")).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list work orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*domain.WorkOrder
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, fmt.Errorf("failed to decode work orders: %w", err)
	}

	return orders, total, nil
}

// stageEvents drains the aggregate's event buffer into outbox messages
func (r *WorkOrderRepository) stageEvents(order *domain.WorkOrder) ([]*outbox.Message, error) {
	drained := order.PullDomainEvents()
	if len(drained) == 0 {
		return nil, nil
	}

	msgs, err := outbox.NewMessages(events.TopicWorkOrderEvents, drained, order.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox messages: %w", err)
	}
	return msgs, nil
}
