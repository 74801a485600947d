package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/autofix-platform/autofix/pkg/outbox"
)

const (
	// DefaultCollectionName is the default name for the outbox collection
	DefaultCollectionName = "outbox_messages"
)

// OutboxRepository implements outbox.Repository for MongoDB
type OutboxRepository struct {
	collection *mongo.Collection
}

// NewOutboxRepository creates a new MongoDB outbox repository
func NewOutboxRepository(db *mongo.Database) *OutboxRepository {
	return NewOutboxRepositoryWithCollection(db, DefaultCollectionName)
}

// NewOutboxRepositoryWithCollection creates a repository with a custom collection name
func NewOutboxRepositoryWithCollection(db *mongo.Database, collectionName string) *OutboxRepository {
	return &OutboxRepository{
		collection: db.Collection(collectionName),
	}
}

// Save stages a single message
func (r *OutboxRepository) Save(ctx context.Context, msg *outbox.Message) error {
	_, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to save outbox message: %w", err)
	}
	return nil
}

// SaveAll stages multiple messages in a single insert. Run under a session
// context so the staging commits atomically with the aggregate write.
func (r *OutboxRepository) SaveAll(ctx context.Context, msgs []*outbox.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	docs := make([]interface{}, len(msgs))
	for i, msg := range msgs {
		docs[i] = msg
	}

	_, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to save outbox messages: %w", err)
	}
	return nil
}

// FindPending retrieves PENDING messages in FIFO creation order
func (r *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	filter := bson.M{"status": outbox.StatusPending}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find pending messages: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []*outbox.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode outbox messages: %w", err)
	}

	return msgs, nil
}

// MarkProcessed transitions PENDING -> PROCESSED as one conditional update.
// The status filter makes this the single point of exclusivity between relay
// instances racing on the same row.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	filter := bson.M{"_id": id, "status": outbox.StatusPending}
	update := bson.M{
		"$set": bson.M{
			"status":      outbox.StatusProcessed,
			"processedAt": now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to mark message processed: %w", err)
	}

	return result.ModifiedCount == 1, nil
}

// MarkFailed quarantines a message with the given error detail
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"status":    outbox.StatusFailed,
			"lastError": errorMsg,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("outbox message not found: %s", id)
	}

	return nil
}

// IncrementRetry increments the retry count and records the last error
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id string, errorMsg string) (int, error) {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$inc": bson.M{"retryCount": 1},
		"$set": bson.M{"lastError": errorMsg},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated outbox.Message
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, fmt.Errorf("outbox message not found: %s", id)
		}
		return 0, fmt.Errorf("failed to increment retry count: %w", err)
	}

	return updated.RetryCount, nil
}

// DeleteProcessedBefore removes PROCESSED messages older than the cutoff
func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := bson.M{
		"status":      outbox.StatusProcessed,
		"processedAt": bson.M{"$lt": cutoff},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed messages: %w", err)
	}

	return result.DeletedCount, nil
}

// Requeue resets a FAILED message to PENDING for manual replay
func (r *OutboxRepository) Requeue(ctx context.Context, id string) error {
	filter := bson.M{"_id": id, "status": outbox.StatusFailed}
	update := bson.M{
		"$set": bson.M{
			"status":     outbox.StatusPending,
			"retryCount": 0,
			"lastError":  "",
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to requeue message: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("no failed outbox message with id %s", id)
	}

	return nil
}

// GetByID retrieves a message by ID
func (r *OutboxRepository) GetByID(ctx context.Context, id string) (*outbox.Message, error) {
	filter := bson.M{"_id": id}

	var msg outbox.Message
	err := r.collection.FindOne(ctx, filter).Decode(&msg)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, outbox.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get outbox message: %w", err)
	}

	return &msg, nil
}

// FindByAggregateID retrieves all messages for a specific aggregate
func (r *OutboxRepository) FindByAggregateID(ctx context.Context, aggregateID string) ([]*outbox.Message, error) {
	filter := bson.M{"aggregateId": aggregateID}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find messages by aggregate ID: %w", err)
	}
	defer cursor.Close(ctx)

	var msgs []*outbox.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode outbox messages: %w", err)
	}

	return msgs, nil
}

// EnsureIndexes creates necessary indexes for the outbox collection
func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// Serves the FIFO polling query
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("idx_status_createdAt"),
		},
		{
			Keys: bson.D{
				{Key: "tenantId", Value: 1},
			},
			Options: options.Index().SetName("idx_tenantId"),
		},
		{
			Keys: bson.D{
				{Key: "aggregateId", Value: 1},
				{Key: "createdAt", Value: 1},
			},
			Options: options.Index().SetName("idx_aggregateId_createdAt"),
		},
		{
			// Safety net behind the relay's own cleanup cycle. Only documents
			// with processedAt set are affected; PENDING and FAILED rows have
			// no processedAt and are preserved.
			Keys: bson.D{
				{Key: "processedAt", Value: 1},
			},
			Options: options.Index().
				SetName("idx_processedAt_ttl").
				SetExpireAfterSeconds(604800), // 7 days
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
