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

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

const productCollection = "products"

// ProductRepository implements domain.ProductRepository on MongoDB. Aggregate
// writes and outbox staging share one transaction; the version condition on
// the replace filter is what turns concurrent saves into lock conflicts.
type ProductRepository struct {
	client     *mongodb.InstrumentedClient
	collection *mongodb.InstrumentedCollection
	outboxRepo outbox.Repository
	tenants    *tenant.RepositoryHelper
	logger     *logging.Logger
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(client *mongodb.InstrumentedClient, outboxRepo outbox.Repository, logger *logging.Logger) *ProductRepository {
	return &ProductRepository{
		client:     client,
		collection: client.Collection(productCollection),
		outboxRepo: outboxRepo,
		tenants:    tenant.NewRepositoryHelper(false),
		logger:     logger,
	}
}

// EnsureIndexes creates the product indexes
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "sku", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_tenant_sku"),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_tenant_active"),
		},
	}

	_, err := r.collection.Underlying().Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create product indexes: %w", err)
	}
	return nil
}

// Create inserts a new product and stages its buffered events atomically
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	msgs, err := r.stageEvents(product)
	if err != nil {
		return err
	}

	err = r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.InsertOne(sessCtx, product); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return domain.ErrProductAlreadyExists
			}
			return fmt.Errorf("failed to insert product: %w", err)
		}

		if len(msgs) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, msgs); err != nil {
				return fmt.Errorf("failed to stage outbox messages: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

// Save replaces the aggregate document conditionally on expectedVersion.
// Buffered events are staged in the same transaction, so either the state
// change and its events both commit or neither does. On success the
// in-memory aggregate carries the incremented version.
func (r *ProductRepository) Save(ctx context.Context, product *domain.Product, expectedVersion int64) error {
	msgs, err := r.stageEvents(product)
	if err != nil {
		return err
	}

	product.Version = expectedVersion + 1

	err = r.client.WithTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		filter := bson.M{
			"_id":      product.ID,
			"tenantId": product.TenantID,
			"version":  expectedVersion,
		}

		result, err := r.collection.ReplaceOne(sessCtx, filter, product)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}

		if result.MatchedCount == 0 {
			return r.lockConflict(sessCtx, product, expectedVersion)
		}

		if len(msgs) > 0 {
			if err := r.outboxRepo.SaveAll(sessCtx, msgs); err != nil {
				return fmt.Errorf("failed to stage outbox messages: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		product.Version = expectedVersion
		return err
	}

	return nil
}

// lockConflict distinguishes a deleted product from a version mismatch
func (r *ProductRepository) lockConflict(ctx context.Context, product *domain.Product, expectedVersion int64) error {
	var stored struct {
		Version int64 `bson:"version"`
	}

	err := r.collection.FindOne(ctx, bson.M{
		"_id":      product.ID,
		"tenantId": product.TenantID,
	}, options.FindOne().SetProjection(bson.M{"version": 1})).Decode(&stored)

	if err == mongo.ErrNoDocuments {
		return domain.ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read stored version: %w", err)
	}

	return domain.NewOptimisticLockError(product.SKU, expectedVersion, stored.Version)
}

// FindBySKU retrieves a product by SKU within the tenant in context
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{"sku": sku})
	if err != nil {
		return nil, err
	}

	var product domain.Product
	err = r.collection.FindOne(ctx, filter).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return &product, nil
}

// FindByID retrieves a product by aggregate id
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}

	var product domain.Product
	err = r.collection.FindOne(ctx, filter).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	return &product, nil
}

// List retrieves products with pagination
func (r *ProductRepository) List(ctx context.Context, activeOnly bool, offset, limit int) ([]*domain.Product, int64, error) {
	base := bson.M{}
	if activeOnly {
		base["active"] = true
	}

	filter, err := r.tenants.WithTenantFilter(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	opts := options.Find().
		SetSort(mongodb.SortAscending("sku")).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, total, nil
}

// FindBelowMinStock retrieves products whose available stock is under their
// minimum level
func (r *ProductRepository) FindBelowMinStock(ctx context.Context) ([]*domain.Product, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{
		"active": true,
		"$expr":  bson.M{"$lt": bson.A{"$availableStock", "$minStockLevel"}},
	})
	if err != nil {
		return nil, err
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(mongodb.SortAscending("sku")))
	if err != nil {
		return nil, fmt.Errorf("failed to find low stock products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, nil
}

// stageEvents drains the aggregate's event buffer into outbox messages
func (r *ProductRepository) stageEvents(product *domain.Product) ([]*outbox.Message, error) {
	drained := product.PullDomainEvents()
	if len(drained) == 0 {
		return nil, nil
	}

	msgs, err := outbox.NewMessages(events.TopicInventoryEvents, drained, product.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox messages: %w", err)
	}
	return msgs, nil
}
