package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
)

// EventHandler is a function that handles an event envelope
type EventHandler func(ctx context.Context, envelope *events.Envelope) error

// Consumer handles consuming messages from Kafka topics
type Consumer struct {
	config   *Config
	readers  map[string]*kafka.Reader
	handlers map[string]map[string]EventHandler // topic -> eventName -> handler
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(config *Config, logger *slog.Logger, m *metrics.Metrics) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		config:   config,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]map[string]EventHandler),
		logger:   logger,
		metrics:  m,
	}
}

// Subscribe subscribes to a topic with a handler for a specific event name
func (c *Consumer) Subscribe(topic string, eventName string, handler EventHandler) {
	if _, exists := c.handlers[topic]; !exists {
		c.handlers[topic] = make(map[string]EventHandler)
	}
	c.handlers[topic][eventName] = handler
}

// SubscribeAll subscribes to all event names on a topic with a single handler
func (c *Consumer) SubscribeAll(topic string, handler EventHandler) {
	c.Subscribe(topic, "*", handler)
}

// getReader returns a reader for the specified topic, creating one if necessary
func (c *Consumer) getReader(topic string) *kafka.Reader {
	if reader, exists := c.readers[topic]; exists {
		return reader
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.ConsumerGroup,
		Topic:          topic,
		MinBytes:       c.config.MinBytes,
		MaxBytes:       c.config.MaxBytes,
		MaxWait:        c.config.MaxWait,
		CommitInterval: c.config.CommitTimeout,
	})

	c.readers[topic] = reader
	return reader
}

// Start starts consuming messages from all subscribed topics
func (c *Consumer) Start(ctx context.Context) error {
	for topic := range c.handlers {
		go c.consumeTopic(ctx, topic)
	}

	<-ctx.Done()
	return ctx.Err()
}

// consumeTopic consumes messages from a single topic
func (c *Consumer) consumeTopic(ctx context.Context, topic string) {
	reader := c.getReader(topic)

	c.logger.Info("Starting consumer for topic", "topic", topic, "group", c.config.ConsumerGroup)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stopping consumer for topic", "topic", topic)
			return
		default:
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Error fetching message", "topic", topic, "error", err)
				continue
			}

			envelope, err := c.parseMessage(msg)
			if err != nil {
				c.logger.Error("Error parsing message", "topic", topic, "error", err)
				// Commit the poison message; redelivering it cannot succeed
				if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("Error committing message", "topic", topic, "error", commitErr)
				}
				continue
			}

			if err := c.handleWithRetry(ctx, topic, envelope); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.Error("Skipping event after permanent handler failure",
					"topic", topic,
					"eventName", envelope.EventName,
					"eventId", envelope.EventID,
					"error", err,
				)
				if c.metrics != nil {
					c.metrics.RecordKafkaConsume(topic, envelope.EventName, false)
				}
				// Commit past the permanent failure; redelivery cannot fix it
				if commitErr := reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("Error committing message", "topic", topic, "error", commitErr)
				}
				continue
			}

			if c.metrics != nil {
				c.metrics.RecordKafkaConsume(topic, envelope.EventName, true)
			}

			if err := reader.CommitMessages(ctx, msg); err != nil {
				c.logger.Error("Error committing message", "topic", topic, "error", err)
			}
		}
	}
}

// handleWithRetry runs the handler, retrying transient failures in place
// with exponential backoff. Committing past a transient failure would lose
// the event for good, so the loop only gives up on a permanent error or a
// canceled context. Returns nil on success, the wrapped error when the
// failure is permanent, and the context error on cancellation.
func (c *Consumer) handleWithRetry(ctx context.Context, topic string, envelope *events.Envelope) error {
	delay := c.config.HandlerRetryInitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxDelay := c.config.HandlerRetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		err := c.handleEnvelope(ctx, topic, envelope)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("Handler failed, retrying",
			"topic", topic,
			"eventName", envelope.EventName,
			"eventId", envelope.EventID,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// parseMessage parses a Kafka message into an event envelope
func (c *Consumer) parseMessage(msg kafka.Message) (*events.Envelope, error) {
	var envelope events.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}

	for _, header := range msg.Headers {
		switch header.Key {
		case "tenant-id":
			if envelope.TenantID == "" {
				envelope.TenantID = string(header.Value)
			}
		case "event-id":
			if envelope.EventID == "" {
				envelope.EventID = string(header.Value)
			}
		}
	}

	return &envelope, nil
}

// handleEnvelope routes an envelope to the appropriate handler
func (c *Consumer) handleEnvelope(ctx context.Context, topic string, envelope *events.Envelope) error {
	handlers, exists := c.handlers[topic]
	if !exists {
		return fmt.Errorf("no handlers registered for topic %s", topic)
	}

	ctx = logging.ContextWithEventID(ctx, envelope.EventID)
	if envelope.TenantID != "" {
		ctx = logging.ContextWithTenantID(ctx, envelope.TenantID)
	}

	if handler, exists := handlers[envelope.EventName]; exists {
		return handler(ctx, envelope)
	}

	if handler, exists := handlers["*"]; exists {
		return handler(ctx, envelope)
	}

	c.logger.Warn("No handler found for event", "topic", topic, "eventName", envelope.EventName)
	return nil
}

// Close closes all readers
func (c *Consumer) Close() error {
	var lastErr error
	for topic, reader := range c.readers {
		if err := reader.Close(); err != nil {
			lastErr = fmt.Errorf("failed to close reader for topic %s: %w", topic, err)
		}
	}
	return lastErr
}
