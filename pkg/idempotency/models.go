package idempotency

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProcessedMessage is the durable record of a consumed event. The unique
// (messageId, topic, consumerGroup) index is what makes replayed deliveries
// detectable across consumer restarts and instances.
type ProcessedMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	MessageID     string             `bson:"messageId"`
	Topic         string             `bson:"topic"`
	EventName     string             `bson:"eventName"`
	ConsumerGroup string             `bson:"consumerGroup"`
	ServiceID     string             `bson:"serviceId"`
	TenantID      string             `bson:"tenantId,omitempty"`

	ProcessedAt time.Time `bson:"processedAt"`
	ExpiresAt   time.Time `bson:"expiresAt"` // TTL index target
}
