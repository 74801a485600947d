package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofix-platform/autofix/pkg/events"
)

func newRetryConsumer() *Consumer {
	config := DefaultConfig()
	config.HandlerRetryInitialDelay = time.Millisecond
	config.HandlerRetryMaxDelay = 4 * time.Millisecond
	return NewConsumer(config, nil, nil)
}

func testEnvelope() *events.Envelope {
	return &events.Envelope{
		EventID:   "evt-1",
		EventName: "test.event",
	}
}

func TestHandleWithRetry_TransientErrorsAreRetried(t *testing.T) {
	consumer := newRetryConsumer()

	calls := 0
	consumer.Subscribe("test-topic", "test.event", func(ctx context.Context, envelope *events.Envelope) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	err := consumer.handleWithRetry(context.Background(), "test-topic", testEnvelope())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetry_PermanentErrorStopsImmediately(t *testing.T) {
	consumer := newRetryConsumer()

	calls := 0
	consumer.Subscribe("test-topic", "test.event", func(ctx context.Context, envelope *events.Envelope) error {
		calls++
		return Permanent(fmt.Errorf("bad payload"))
	})

	err := consumer.handleWithRetry(context.Background(), "test-topic", testEnvelope())
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestHandleWithRetry_CancellationStopsRetrying(t *testing.T) {
	consumer := newRetryConsumer()

	ctx, cancel := context.WithCancel(context.Background())
	consumer.Subscribe("test-topic", "test.event", func(ctx context.Context, envelope *events.Envelope) error {
		cancel()
		return errors.New("connection reset")
	})

	err := consumer.handleWithRetry(ctx, "test-topic", testEnvelope())
	require.ErrorIs(t, err, context.Canceled)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("boom")
	wrapped := Permanent(base)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)

	// Wrapping further up the chain keeps the classification
	assert.True(t, IsPermanent(fmt.Errorf("handler: %w", wrapped)))
	assert.False(t, IsPermanent(base))
}
