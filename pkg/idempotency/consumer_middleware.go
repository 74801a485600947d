package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/kafka"
	"github.com/autofix-platform/autofix/pkg/metrics"
)

// DeduplicatingHandler wraps an event handler so that replayed deliveries of
// the same event id are acknowledged without re-running the handler. Combined
// with the at-least-once bus this yields effectively-once processing.
//
// The record is written only after the handler succeeds. A handler error
// leaves no record, so the delivery is retried.
func DeduplicatingHandler(config *ConsumerConfig, m *metrics.Metrics, handler kafka.EventHandler) kafka.EventHandler {
	return func(ctx context.Context, envelope *events.Envelope) error {
		processed, err := config.Repository.IsProcessed(ctx, envelope.EventID, config.Topic, config.ConsumerGroup)
		if err != nil {
			slog.Error("Failed to check processed message",
				"error", err,
				"eventId", envelope.EventID,
				"topic", config.Topic,
				"eventName", envelope.EventName,
				"service", config.ServiceName,
			)
			return err
		}

		if processed {
			slog.Info("Duplicate event skipped",
				"eventId", envelope.EventID,
				"topic", config.Topic,
				"eventName", envelope.EventName,
				"service", config.ServiceName,
			)
			if m != nil {
				m.RecordDedupHit(config.Topic, envelope.EventName)
			}
			return nil
		}

		if m != nil {
			m.RecordDedupMiss(config.Topic, envelope.EventName)
		}

		if err := handler(ctx, envelope); err != nil {
			return err
		}

		record := &ProcessedMessage{
			MessageID:     envelope.EventID,
			Topic:         config.Topic,
			EventName:     envelope.EventName,
			ConsumerGroup: config.ConsumerGroup,
			ServiceID:     config.ServiceName,
			TenantID:      envelope.TenantID,
			ProcessedAt:   time.Now().UTC(),
			ExpiresAt:     time.Now().UTC().Add(config.RetentionPeriod),
		}

		if err := config.Repository.MarkProcessed(ctx, record); err != nil {
			if errors.Is(err, ErrMessageAlreadyProcessed) {
				// Lost the race to a concurrent consumer; the event was
				// handled, so this delivery is still a success.
				slog.Warn("Event processed concurrently",
					"eventId", envelope.EventID,
					"topic", config.Topic,
					"eventName", envelope.EventName,
					"service", config.ServiceName,
				)
				if m != nil {
					m.RecordDedupHit(config.Topic, envelope.EventName)
				}
				return nil
			}

			slog.Error("Failed to record processed message",
				"error", err,
				"eventId", envelope.EventID,
				"topic", config.Topic,
				"eventName", envelope.EventName,
				"service", config.ServiceName,
			)
			// The handler ran but the record did not stick. Surfacing the
			// error keeps the offset uncommitted; the redelivery will hit
			// the handler's own idempotence or the record written by a
			// concurrent instance.
			return err
		}

		return nil
	}
}
