package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
	"github.com/autofix-platform/autofix/pkg/resilience"
)

// Producer publishes event envelopes to Kafka topics. Publishes run through
// a circuit breaker so a broker outage fails fast instead of piling up
// blocked relay ticks.
type Producer struct {
	writers map[string]*kafka.Writer
	config  *Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	breaker *resilience.CircuitBreaker
}

// NewProducer creates a new Kafka producer
func NewProducer(config *Config, logger *logging.Logger, m *metrics.Metrics) *Producer {
	var onStateChange resilience.StateChangeFunc
	if m != nil {
		onStateChange = func(name string, state int) {
			m.SetCircuitBreakerState(name, state)
		}
	}

	var slogger = logging.New(logging.DefaultConfig("kafka-producer"))
	if logger != nil {
		slogger = logger
	}

	breaker := resilience.NewCircuitBreaker(
		resilience.DefaultCircuitBreakerConfig("kafka-producer"),
		slogger.Logger,
		onStateChange,
	)

	return &Producer{
		writers: make(map[string]*kafka.Writer),
		config:  config,
		logger:  slogger,
		metrics: m,
		breaker: breaker,
	}
}

// getWriter returns a writer for the specified topic, creating one if necessary
func (p *Producer) getWriter(topic string) *kafka.Writer {
	if writer, exists := p.writers[topic]; exists {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    p.config.BatchSize,
		BatchTimeout: p.config.BatchTimeout,
		RequiredAcks: kafka.RequiredAcks(p.config.RequiredAcks),
		Async:        false,
	}

	p.writers[topic] = writer
	return writer
}

// Publish publishes an event envelope to the specified topic. Messages are
// keyed by aggregate id so events of one aggregate share a partition.
func (p *Producer) Publish(ctx context.Context, topic string, envelope *events.Envelope) error {
	start := time.Now()
	err := p.publish(ctx, topic, envelope)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.RecordKafkaPublish(topic, envelope.EventName, err == nil, duration)
	}
	p.logger.KafkaPublish(ctx, topic, envelope.EventName, err == nil, duration)

	return err
}

func (p *Producer) publish(ctx context.Context, topic string, envelope *events.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(envelope.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(envelope.EventID)},
			{Key: "event-name", Value: []byte(envelope.EventName)},
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "occurred-on", Value: []byte(envelope.OccurredOn.Format(time.RFC3339))},
		},
		Time: envelope.OccurredOn,
	}

	if envelope.TenantID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{
			Key:   "tenant-id",
			Value: []byte(envelope.TenantID),
		})
	}

	writer := p.getWriter(topic)

	_, err = p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish event to topic %s: %w", topic, err)
	}

	return nil
}

// PublishBatch publishes multiple envelopes to a topic in one write
func (p *Producer) PublishBatch(ctx context.Context, topic string, envelopes []*events.Envelope) error {
	messages := make([]kafka.Message, 0, len(envelopes))

	for _, envelope := range envelopes {
		data, err := json.Marshal(envelope)
		if err != nil {
			return fmt.Errorf("failed to marshal envelope %s: %w", envelope.EventID, err)
		}

		msg := kafka.Message{
			Key:   []byte(envelope.AggregateID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event-id", Value: []byte(envelope.EventID)},
				{Key: "event-name", Value: []byte(envelope.EventName)},
				{Key: "content-type", Value: []byte("application/json")},
				{Key: "occurred-on", Value: []byte(envelope.OccurredOn.Format(time.RFC3339))},
			},
			Time: envelope.OccurredOn,
		}

		if envelope.TenantID != "" {
			msg.Headers = append(msg.Headers, kafka.Header{Key: "tenant-id", Value: []byte(envelope.TenantID)})
		}

		messages = append(messages, msg)
	}

	writer := p.getWriter(topic)

	_, err := p.breaker.Execute(ctx, func() (interface{}, error) {
		return nil, writer.WriteMessages(ctx, messages...)
	})
	if err != nil {
		return fmt.Errorf("failed to publish batch to topic %s: %w", topic, err)
	}

	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	var lastErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close writer for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
