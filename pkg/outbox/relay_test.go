package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofix-platform/autofix/pkg/events"
	"github.com/autofix-platform/autofix/pkg/logging"
)

type stubEvent struct {
	events.BaseEvent
	SKU string `json:"sku"`
}

func newStubMessage(t *testing.T, retryCount int) *Message {
	t.Helper()

	event := stubEvent{
		BaseEvent: events.NewBaseEvent(events.StockAdjusted, "prd-1"),
		SKU:       "OIL-FIL-001",
	}

	msg, err := NewMessage(events.TopicInventoryEvents, event, "tenant-1")
	require.NoError(t, err)
	msg.RetryCount = retryCount
	return msg
}

type fakeRepo struct {
	mu           sync.Mutex
	pending      []*Message
	processed    []string
	failed       map[string]string
	retries      map[string]int
	findCalls    int
	deletedUpTo  time.Time
	deleteCalled bool
}

func newFakeRepo(msgs ...*Message) *fakeRepo {
	return &fakeRepo{
		pending: msgs,
		failed:  make(map[string]string),
		retries: make(map[string]int),
	}
}

func (f *fakeRepo) Save(ctx context.Context, msg *Message) error { return nil }

func (f *fakeRepo) SaveAll(ctx context.Context, msgs []*Message) error { return nil }

func (f *fakeRepo) FindPending(ctx context.Context, limit int) ([]*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	out := make([]*Message, len(f.pending))
	copy(out, f.pending)
	return out, nil
}

func (f *fakeRepo) MarkProcessed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, id)
	return true, nil
}

func (f *fakeRepo) MarkFailed(ctx context.Context, id string, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errorMsg
	return nil
}

func (f *fakeRepo) IncrementRetry(ctx context.Context, id string, errorMsg string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.pending {
		if msg.ID == id {
			msg.RetryCount++
			f.retries[id] = msg.RetryCount
			return msg.RetryCount, nil
		}
	}
	return 0, errors.New("not found")
}

func (f *fakeRepo) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalled = true
	f.deletedUpTo = cutoff
	return 3, nil
}

func (f *fakeRepo) Requeue(ctx context.Context, id string) error { return nil }

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*Message, error) {
	return nil, ErrMessageNotFound
}

func (f *fakeRepo) FindByAggregateID(ctx context.Context, aggregateID string) ([]*Message, error) {
	return nil, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*events.Envelope
	err       error
	block     chan struct{}
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, envelope *events.Envelope) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, envelope)
	return nil
}

func newTestRelay(repo Repository, pub Publisher, config *RelayConfig) *Relay {
	logger := logging.New(&logging.Config{Level: logging.LevelError, ServiceName: "test"})
	return NewRelay(repo, pub, logger, nil, config)
}

func TestRelayPublishesPendingMessages(t *testing.T) {
	msg1 := newStubMessage(t, 0)
	msg2 := newStubMessage(t, 0)
	repo := newFakeRepo(msg1, msg2)
	pub := &fakePublisher{}

	relay := newTestRelay(repo, pub, nil)
	relay.ProcessOnce(context.Background())

	assert.Len(t, pub.published, 2)
	assert.Equal(t, []string{msg1.ID, msg2.ID}, repo.processed)
	assert.Empty(t, repo.failed)

	// Envelope round-trips the staged payload
	assert.Equal(t, msg1.EventID, pub.published[0].EventID)
	assert.Equal(t, events.StockAdjusted, pub.published[0].EventName)
	assert.Equal(t, "prd-1", pub.published[0].AggregateID)
}

func TestRelayQuarantinesAtCeilingWithoutPublishing(t *testing.T) {
	msg := newStubMessage(t, DefaultMaxRetries)
	repo := newFakeRepo(msg)
	pub := &fakePublisher{}

	relay := newTestRelay(repo, pub, nil)
	relay.ProcessOnce(context.Background())

	assert.Empty(t, pub.published)
	assert.Empty(t, repo.processed)
	assert.Equal(t, "max retries exceeded", repo.failed[msg.ID])
}

func TestRelayFailedPublishReachingCeiling(t *testing.T) {
	// retryCount 4 with ceiling 5: the failed attempt increments to 5 and
	// the message is quarantined with the publish error detail.
	msg := newStubMessage(t, 4)
	repo := newFakeRepo(msg)
	pub := &fakePublisher{err: errors.New("broker unreachable")}

	relay := newTestRelay(repo, pub, nil)
	relay.ProcessOnce(context.Background())

	assert.Equal(t, 5, repo.retries[msg.ID])
	assert.Contains(t, repo.failed[msg.ID], "broker unreachable")
	assert.Empty(t, repo.processed)
}

func TestRelayFailedPublishBelowCeilingStaysPending(t *testing.T) {
	msg := newStubMessage(t, 0)
	repo := newFakeRepo(msg)
	pub := &fakePublisher{err: errors.New("broker unreachable")}

	relay := newTestRelay(repo, pub, nil)
	relay.ProcessOnce(context.Background())

	assert.Equal(t, 1, repo.retries[msg.ID])
	assert.Empty(t, repo.failed)
	assert.Empty(t, repo.processed)
}

func TestRelaySkipsOverlappingCycle(t *testing.T) {
	msg := newStubMessage(t, 0)
	repo := newFakeRepo(msg)
	pub := &fakePublisher{block: make(chan struct{})}

	relay := newTestRelay(repo, pub, nil)

	done := make(chan struct{})
	go func() {
		relay.ProcessOnce(context.Background())
		close(done)
	}()

	// Wait for the first cycle to be mid-publish
	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.findCalls == 1
	}, time.Second, time.Millisecond)

	// A tick that overlaps a running cycle is skipped, not queued
	relay.ProcessOnce(context.Background())

	repo.mu.Lock()
	assert.Equal(t, 1, repo.findCalls)
	repo.mu.Unlock()

	close(pub.block)
	<-done
}

func TestRelayCleanupUsesRetentionWindow(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}

	config := DefaultRelayConfig()
	config.RetentionPeriod = 7 * 24 * time.Hour

	relay := newTestRelay(repo, pub, config)

	before := time.Now().UTC().Add(-config.RetentionPeriod)
	relay.CleanupOnce(context.Background())
	after := time.Now().UTC().Add(-config.RetentionPeriod)

	require.True(t, repo.deleteCalled)
	assert.False(t, repo.deletedUpTo.Before(before))
	assert.False(t, repo.deletedUpTo.After(after))
}

func TestRelayStartStop(t *testing.T) {
	repo := newFakeRepo()
	pub := &fakePublisher{}

	config := DefaultRelayConfig()
	config.PollInterval = 10 * time.Millisecond

	relay := newTestRelay(repo, pub, config)

	require.NoError(t, relay.Start(context.Background()))
	assert.True(t, relay.IsRunning())
	assert.Error(t, relay.Start(context.Background()))

	require.NoError(t, relay.Stop())
	assert.False(t, relay.IsRunning())
}
