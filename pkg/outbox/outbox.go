package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/autofix-platform/autofix/pkg/events"
)

// Status of an outbox message. PENDING messages are awaiting publication;
// the relay moves them to PROCESSED on a successful publish or to FAILED
// once the retry ceiling is reached. FAILED messages are never retried
// automatically; an operator requeues them explicitly.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusProcessed Status = "PROCESSED"
	StatusFailed    Status = "FAILED"
)

// DefaultMaxRetries is the publish retry ceiling per message
const DefaultMaxRetries = 5

// Message is a domain event staged for publication. It is inserted in the
// same transaction as the aggregate state change it describes and is never
// mutated by the producing side afterwards.
type Message struct {
	ID          string          `bson:"_id" json:"id"`
	EventID     string          `bson:"eventId" json:"eventId"`
	EventName   string          `bson:"eventName" json:"eventName"`
	AggregateID string          `bson:"aggregateId" json:"aggregateId"`
	Topic       string          `bson:"topic" json:"topic"`
	Payload     json.RawMessage `bson:"payload" json:"payload"`
	TenantID    string          `bson:"tenantId,omitempty" json:"tenantId,omitempty"`
	Status      Status          `bson:"status" json:"status"`
	RetryCount  int             `bson:"retryCount" json:"retryCount"`
	LastError   string          `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt   time.Time       `bson:"createdAt" json:"createdAt"`
	ProcessedAt *time.Time      `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
}

// NewMessage stages a domain event for publication on the given topic
func NewMessage(topic string, event events.DomainEvent, tenantID string) (*Message, error) {
	envelope, err := events.NewEnvelope(event, tenantID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:          uuid.New().String(),
		EventID:     envelope.EventID,
		EventName:   envelope.EventName,
		AggregateID: envelope.AggregateID,
		Topic:       topic,
		Payload:     payload,
		TenantID:    tenantID,
		Status:      StatusPending,
		RetryCount:  0,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NewMessages stages a batch of domain events for one topic
func NewMessages(topic string, domainEvents []events.DomainEvent, tenantID string) ([]*Message, error) {
	messages := make([]*Message, 0, len(domainEvents))
	for _, event := range domainEvents {
		msg, err := NewMessage(topic, event, tenantID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Envelope decodes the staged payload back into an event envelope
func (m *Message) Envelope() (*events.Envelope, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(m.Payload, &envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// IsProcessed reports whether the message has been published
func (m *Message) IsProcessed() bool {
	return m.Status == StatusProcessed
}
