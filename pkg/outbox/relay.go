package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/metrics"
)

// Publisher hands a message to the event bus. A nil error means the bus
// client's synchronous send returned without error, which is the relay's
// definition of "published".
type Publisher interface {
	Publish(ctx context.Context, topic string, envelope *events.Envelope) error
}

// RelayConfig holds configuration for the outbox relay
type RelayConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxRetries      int
	CleanupInterval time.Duration
	RetentionPeriod time.Duration
}

// DefaultRelayConfig returns default configuration
func DefaultRelayConfig() *RelayConfig {
	return &RelayConfig{
		PollInterval:    5 * time.Second,
		BatchSize:       100,
		MaxRetries:      DefaultMaxRetries,
		CleanupInterval: 1 * time.Hour,
		RetentionPeriod: 7 * 24 * time.Hour,
	}
}

// Relay polls the outbox and publishes PENDING messages to the bus.
//
// Retries happen implicitly through re-polling; there is no backoff here.
// A message whose retry count reaches MaxRetries is quarantined as FAILED
// and never touched again. Overlapping poll cycles are skipped, not queued,
// so one slow batch never stacks work behind it.
type Relay struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	config    *RelayConfig

	processing atomic.Bool

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}

	publishedCnt int64
	failedCnt    int64
}

// NewRelay creates a new outbox relay
func NewRelay(repo Repository, publisher Publisher, logger *logging.Logger, m *metrics.Metrics, config *RelayConfig) *Relay {
	if config == nil {
		config = DefaultRelayConfig()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	return &Relay{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent("outbox-relay"),
		metrics:   m,
		config:    config,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Start starts the relay loop
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay already running")
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info("Starting outbox relay",
		"interval", r.config.PollInterval,
		"batchSize", r.config.BatchSize,
		"maxRetries", r.config.MaxRetries,
	)

	go r.run(ctx)
	return nil
}

// Stop stops the relay and waits for the loop to exit
func (r *Relay) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay not running")
	}
	r.mu.Unlock()

	r.logger.Info("Stopping outbox relay")
	close(r.stopCh)
	<-r.stoppedCh

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.logger.Info("Outbox relay stopped",
		"published", atomic.LoadInt64(&r.publishedCnt),
		"failed", atomic.LoadInt64(&r.failedCnt),
	)
	return nil
}

// run is the main relay loop
func (r *Relay) run(ctx context.Context) {
	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	cleanup := time.NewTicker(r.config.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ticker.C:
			r.ProcessOnce(ctx)
		case <-cleanup.C:
			r.CleanupOnce(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			r.logger.Info("Relay context cancelled")
			return
		}
	}
}

// ProcessOnce runs a single poll cycle. If a previous cycle is still in
// flight the call is skipped entirely.
func (r *Relay) ProcessOnce(ctx context.Context) {
	if !r.processing.CompareAndSwap(false, true) {
		r.logger.Debug("Skipping poll cycle, previous cycle still running")
		return
	}
	defer r.processing.Store(false)

	msgs, err := r.repo.FindPending(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.WithError(err).Error("Failed to find pending outbox messages")
		return
	}

	if r.metrics != nil {
		r.metrics.SetOutboxPending(len(msgs))
	}

	if len(msgs) == 0 {
		return
	}

	r.logger.Info("Processing outbox messages", "count", len(msgs))

	for _, msg := range msgs {
		r.processMessage(ctx, msg)
	}
}

func (r *Relay) processMessage(ctx context.Context, msg *Message) {
	// Quarantine messages that already sit at the ceiling before spending
	// another publish attempt on them.
	if msg.RetryCount >= r.config.MaxRetries {
		r.quarantine(ctx, msg, "max retries exceeded")
		return
	}

	duration, err := r.publishMessage(ctx, msg)
	if err != nil {
		atomic.AddInt64(&r.failedCnt, 1)
		r.logger.WithError(err).Error("Failed to publish outbox message",
			"messageId", msg.ID,
			"eventName", msg.EventName,
			"retryCount", msg.RetryCount,
		)

		if r.metrics != nil {
			r.metrics.RecordOutboxPublish(msg.EventName, false, duration)
			r.metrics.RecordOutboxRetry(msg.EventName)
		}

		newCount, incErr := r.repo.IncrementRetry(ctx, msg.ID, err.Error())
		if incErr != nil {
			r.logger.WithError(incErr).Error("Failed to increment retry count", "messageId", msg.ID)
			return
		}

		if newCount >= r.config.MaxRetries {
			r.quarantine(ctx, msg, err.Error())
		}
		return
	}

	if r.metrics != nil {
		r.metrics.RecordOutboxPublish(msg.EventName, true, duration)
	}

	claimed, err := r.repo.MarkProcessed(ctx, msg.ID)
	if err != nil {
		// The publish went out but the mark failed; the message stays
		// PENDING and will be republished. Consumers dedupe by event id.
		r.logger.WithError(err).Error("Failed to mark message processed", "messageId", msg.ID)
		return
	}
	if !claimed {
		r.logger.Warn("Message already claimed by another relay instance", "messageId", msg.ID)
		return
	}

	atomic.AddInt64(&r.publishedCnt, 1)
	r.logger.Info("Published outbox message",
		"messageId", msg.ID,
		"eventId", msg.EventID,
		"eventName", msg.EventName,
		"topic", msg.Topic,
		"duration", duration,
	)
}

func (r *Relay) quarantine(ctx context.Context, msg *Message, detail string) {
	if err := r.repo.MarkFailed(ctx, msg.ID, detail); err != nil {
		r.logger.WithError(err).Error("Failed to quarantine message", "messageId", msg.ID)
		return
	}

	if r.metrics != nil {
		r.metrics.RecordOutboxFailed(msg.EventName)
	}

	r.logger.Error("Outbox message quarantined",
		"messageId", msg.ID,
		"eventId", msg.EventID,
		"eventName", msg.EventName,
		"retryCount", msg.RetryCount,
		"detail", detail,
	)
}

func (r *Relay) publishMessage(ctx context.Context, msg *Message) (time.Duration, error) {
	start := time.Now()

	envelope, err := msg.Envelope()
	if err != nil {
		return time.Since(start), fmt.Errorf("failed to decode staged envelope: %w", err)
	}

	if err := r.publisher.Publish(ctx, msg.Topic, envelope); err != nil {
		return time.Since(start), err
	}

	return time.Since(start), nil
}

// CleanupOnce deletes PROCESSED messages older than the retention window.
// Best effort: failures are logged, not escalated.
func (r *Relay) CleanupOnce(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.config.RetentionPeriod)

	deleted, err := r.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		r.logger.WithError(err).Warn("Outbox cleanup failed")
		return
	}

	if deleted > 0 {
		r.logger.Info("Outbox cleanup removed processed messages", "deleted", deleted, "cutoff", cutoff)
	}
}

// IsRunning returns whether the relay loop is active
func (r *Relay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Stats returns relay counters
func (r *Relay) Stats() map[string]int64 {
	return map[string]int64{
		"published": atomic.LoadInt64(&r.publishedCnt),
		"failed":    atomic.LoadInt64(&r.failedCnt),
	}
}
