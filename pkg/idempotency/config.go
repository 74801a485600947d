package idempotency

import "time"

// DefaultRetentionPeriod is how long processed-message records are kept.
// It must comfortably exceed the longest plausible redelivery window of the
// bus, otherwise an expired record lets a late replay through.
const DefaultRetentionPeriod = 7 * 24 * time.Hour

// ConsumerConfig holds configuration for consumer message deduplication
type ConsumerConfig struct {
	ServiceName     string
	Topic           string
	ConsumerGroup   string
	Repository      Repository
	RetentionPeriod time.Duration
}

// DefaultConsumerConfig returns a consumer configuration with the default
// retention period
func DefaultConsumerConfig(serviceName, topic, consumerGroup string, repository Repository) *ConsumerConfig {
	return &ConsumerConfig{
		ServiceName:     serviceName,
		Topic:           topic,
		ConsumerGroup:   consumerGroup,
		Repository:      repository,
		RetentionPeriod: DefaultRetentionPeriod,
	}
}
