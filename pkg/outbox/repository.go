package outbox

import (
	"context"
	"errors"
	"time"
)

// ErrMessageNotFound is returned by GetByID when no message has the given id
var ErrMessageNotFound = errors.New("outbox message not found")

// Repository defines the interface for outbox message persistence
type Repository interface {
	// Save stages a single message
	Save(ctx context.Context, msg *Message) error

	// SaveAll stages multiple messages in a single operation. Callers run
	// this inside the same transaction as the aggregate write.
	SaveAll(ctx context.Context, msgs []*Message) error

	// FindPending retrieves PENDING messages ordered by creation time
	FindPending(ctx context.Context, limit int) ([]*Message, error)

	// MarkProcessed transitions a message from PENDING to PROCESSED as one
	// conditional update. It returns false when the message was not in
	// PENDING state, which means another relay instance claimed it first.
	MarkProcessed(ctx context.Context, id string) (bool, error)

	// MarkFailed quarantines a message with the given error detail
	MarkFailed(ctx context.Context, id string, errorMsg string) error

	// IncrementRetry increments the retry count and records the last error,
	// returning the new count
	IncrementRetry(ctx context.Context, id string, errorMsg string) (int, error)

	// DeleteProcessedBefore removes PROCESSED messages older than the cutoff
	// and returns the number deleted
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Requeue resets a FAILED message to PENDING with a zeroed retry count.
	// Operator-driven replay only; nothing calls this automatically.
	Requeue(ctx context.Context, id string) error

	// GetByID retrieves a message by ID, returning ErrMessageNotFound when
	// no message has that id
	GetByID(ctx context.Context, id string) (*Message, error)

	// FindByAggregateID retrieves all messages for a specific aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*Message, error)
}
