package usecase

import "time"

const (
	// DefaultContextTimeout bounds a distributed transaction context before
	// the sweeper expires and rolls it back.
	DefaultContextTimeout = 30 * time.Second

	// SweepInterval is how often the coordinator scans for expired contexts.
	SweepInterval = 5 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached.
	IdempotencyKeyTTL = 24 * time.Hour

	// BalanceCacheTTL bounds staleness of cached balance reads.
	BalanceCacheTTL = 30 * time.Second
)
