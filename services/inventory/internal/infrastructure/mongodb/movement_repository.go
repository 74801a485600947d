package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autofix-platform/autofix/pkg/mongodb"
	"github.com/autofix-platform/autofix/pkg/tenant"

	"github.com/autofix-platform/autofix/services/inventory/internal/domain"
)

const movementCollection = "stock_movements"

// MovementRepository implements domain.MovementRepository on MongoDB. The
// collection is append-only; there are no update or delete paths.
type MovementRepository struct {
	collection *mongodb.InstrumentedCollection
	tenants    *tenant.RepositoryHelper
}

// NewMovementRepository creates a new MovementRepository
func NewMovementRepository(client *mongodb.InstrumentedClient) *MovementRepository {
	return &MovementRepository{
		collection: client.Collection(movementCollection),
		tenants:    tenant.NewRepositoryHelper(false),
	}
}

// EnsureIndexes creates the ledger indexes. Per-SKU history reads by time
// range and reverse lookups by reference are the two query paths.
func (r *MovementRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
				{Key: "sku", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("idx_tenant_sku_created"),
		},
		{
			Keys:    bson.D{{Key: "reference", Value: 1}},
			Options: options.Index().SetName("idx_reference").SetSparse(true),
		},
	}

	_, err := r.collection.Underlying().Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create movement indexes: %w", err)
	}
	return nil
}

// Save appends a ledger entry
func (r *MovementRepository) Save(ctx context.Context, movement *domain.StockMovement) error {
	if _, err := r.collection.InsertOne(ctx, movement); err != nil {
		return fmt.Errorf("failed to save stock movement: %w", err)
	}
	return nil
}

// SaveAll appends multiple ledger entries
func (r *MovementRepository) SaveAll(ctx context.Context, movements []*domain.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}

	docs := make([]interface{}, len(movements))
	for i, m := range movements {
		docs[i] = m
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to save stock movements: %w", err)
	}
	return nil
}

// FindBySKU retrieves movements for a SKU, newest first. Zero time bounds
// are treated as unbounded.
func (r *MovementRepository) FindBySKU(ctx context.Context, sku string, from, to time.Time, offset, limit int) ([]*domain.StockMovement, int64, error) {
	base := bson.M{"sku": sku}

	createdAt := bson.M{}
	if !from.IsZero() {
		createdAt["$gte"] = from
	}
	if !to.IsZero() {
		createdAt["$lte"] = to
	}
	if len(createdAt) > 0 {
		base["createdAt"] = createdAt
	}

	filter, err := r.tenants.WithTenantFilter(ctx, base)
	if err != nil {
		return nil, 0, err
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	opts := options.Find().
		SetSort(mongodb.SortDescending("createdAt")).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find movements: %w", err)
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, 0, fmt.Errorf("failed to decode movements: %w", err)
	}

	return movements, total, nil
}

// FindByReference retrieves movements recorded against an external reference
func (r *MovementRepository) FindByReference(ctx context.Context, reference string) ([]*domain.StockMovement, error) {
	filter, err := r.tenants.WithTenantFilter(ctx, bson.M{"reference": reference})
	if err != nil {
		return nil, err
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(mongodb.SortAscending("createdAt")))
	if err != nil {
		return nil, fmt.Errorf("failed to find movements by reference: %w", err)
	}
	defer cursor.Close(ctx)

	var movements []*domain.StockMovement
	if err := cursor.All(ctx, &movements); err != nil {
		return nil, fmt.Errorf("failed to decode movements: %w", err)
	}

	return movements, nil
}
