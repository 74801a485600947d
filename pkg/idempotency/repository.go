package idempotency

import (
	"context"
	"time"
)

// Repository manages processed-message records for consumers.
// Implementations must enforce uniqueness of (messageId, topic, consumerGroup).
type Repository interface {
	// MarkProcessed records a message as processed. Returns
	// ErrMessageAlreadyProcessed when a record for the same
	// (messageId, topic, consumerGroup) already exists.
	MarkProcessed(ctx context.Context, msg *ProcessedMessage) error

	// IsProcessed reports whether a message has been processed
	IsProcessed(ctx context.Context, messageID, topic, consumerGroup string) (bool, error)

	// Clean removes expired records and returns the number deleted
	Clean(ctx context.Context, before time.Time) (int64, error)

	// EnsureIndexes creates the unique and TTL indexes. Called on startup.
	EnsureIndexes(ctx context.Context) error
}
