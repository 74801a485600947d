package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is implemented by every aggregate event. Events are buffered
// in-memory on the aggregate and staged to the outbox by the repository.
type DomainEvent interface {
	EventID() string
	EventName() string
	OccurredOn() time.Time
	AggregateID() string
}

// BaseEvent carries the identity fields shared by all domain events.
// The fields are excluded from JSON so the envelope remains the single
// place they appear on the wire.
type BaseEvent struct {
	ID        string    `json:"-" bson:"eventId"`
	Name      string    `json:"-" bson:"eventName"`
	At        time.Time `json:"-" bson:"occurredOn"`
	Aggregate string    `json:"-" bson:"aggregateId"`
}

// NewBaseEvent creates the identity portion of a domain event
func NewBaseEvent(name, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Name:      name,
		At:        time.Now().UTC(),
		Aggregate: aggregateID,
	}
}

func (e BaseEvent) EventID() string       { return e.ID }
func (e BaseEvent) EventName() string     { return e.Name }
func (e BaseEvent) OccurredOn() time.Time { return e.At }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }

// Envelope is the wire format for events crossing the bus:
// {eventId, eventName, occurredOn, data}. Messages are keyed by aggregate id
// so related events land on the same partition.
type Envelope struct {
	EventID     string          `json:"eventId" bson:"eventId"`
	EventName   string          `json:"eventName" bson:"eventName"`
	OccurredOn  time.Time       `json:"occurredOn" bson:"occurredOn"`
	AggregateID string          `json:"aggregateId" bson:"aggregateId"`
	TenantID    string          `json:"tenantId,omitempty" bson:"tenantId,omitempty"`
	Data        json.RawMessage `json:"data" bson:"data"`
}

// NewEnvelope wraps a domain event for publication. The event struct itself
// becomes the data payload; identity fields come from the DomainEvent methods.
func NewEnvelope(event DomainEvent, tenantID string) (*Envelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EventID:     event.EventID(),
		EventName:   event.EventName(),
		OccurredOn:  event.OccurredOn(),
		AggregateID: event.AggregateID(),
		TenantID:    tenantID,
		Data:        data,
	}, nil
}

// Decode unmarshals the data payload into v
func (e *Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}
