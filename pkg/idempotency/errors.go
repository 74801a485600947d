package idempotency

import "errors"

var (
	// ErrMessageAlreadyProcessed indicates a duplicate delivery. Consumers
	// treat this as success, not failure.
	ErrMessageAlreadyProcessed = errors.New("message has already been processed")

	// ErrStorageFailure indicates the dedup store is unavailable
	ErrStorageFailure = errors.New("deduplication storage is temporarily unavailable")
)
