package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration

	// Handler retry settings. A failing handler is retried in place with
	// exponential backoff until it succeeds or returns a permanent error;
	// the offset is never committed past a transiently failing message.
	HandlerRetryInitialDelay time.Duration
	HandlerRetryMaxDelay     time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "autofix-default-group",
		ClientID:      "autofix-client",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas

		MinBytes:      1,
		MaxBytes:      10e6, // 10MB
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,

		HandlerRetryInitialDelay: 100 * time.Millisecond,
		HandlerRetryMaxDelay:     5 * time.Second,
	}
}
