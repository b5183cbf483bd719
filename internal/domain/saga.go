package domain

import "time"

// ContextStatus is the state of a distributed transaction context.
type ContextStatus string

const (
	ContextStatusActive             ContextStatus = "active"
	ContextStatusCommitted          ContextStatus = "committed"
	ContextStatusRolledBack         ContextStatus = "rolled_back"
	ContextStatusPartiallyRolledBack ContextStatus = "partially_rolled_back"
	ContextStatusExpired            ContextStatus = "expired"
)

// Terminal reports whether no further transitions are allowed.
func (s ContextStatus) Terminal() bool {
	return s != ContextStatusActive
}

// SagaOperation is one applied step of a distributed transaction. The
// compensation payload is replayed if the context rolls back.
type SagaOperation struct {
	Ordinal      int
	Service      string
	Operation    string
	Payload      map[string]any
	Compensation map[string]any
	AppliedAt    time.Time
}

// TransactionContext tracks a multi-service workflow. Operations are applied
// eagerly as they are added; compensations run in strict reverse order of
// application.
type TransactionContext struct {
	ID         string
	Owner      string
	Status     ContextStatus
	Operations []SagaOperation
	Deadline   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Expired reports whether the context deadline has passed.
func (c *TransactionContext) Expired(now time.Time) bool {
	return now.After(c.Deadline)
}

// RollbackResult summarizes a rollback pass.
type RollbackResult struct {
	ContextID      string
	Status         ContextStatus
	Compensated    int
	FailedOrdinals []int
	CompletedAt    time.Time
}
