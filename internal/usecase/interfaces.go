package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// AccountRepository defines data access for the chart of accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	CreateTx(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByCode(ctx context.Context, code string) (*domain.Account, error)
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error
	// Update persists the mutable fields: name, type, currency, metadata.
	Update(ctx context.Context, account *domain.Account) error
	Close(ctx context.Context, tx Transaction, id string, closedAt time.Time) error
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	ListByCurrency(ctx context.Context, currency string) ([]*domain.Account, error)
	ListChildren(ctx context.Context, parentID string) ([]*domain.Account, error)
	ListByCodePrefix(ctx context.Context, prefix string) ([]*domain.Account, error)
	HasPostings(ctx context.Context, id string) (bool, error)
}

// TransactionRepository defines data access for journal transactions.
// Transactions and their entries are append-only; posted records only ever
// change status.
type TransactionRepository interface {
	Create(ctx context.Context, tx Transaction, txn *domain.Transaction) error
	GetByID(ctx context.Context, id string) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Transaction, error)
	GetBySource(ctx context.Context, sourceService, sourceReference string) (*domain.Transaction, error)
	MarkPosted(ctx context.Context, tx Transaction, id string, postedAt time.Time) error
	MarkReversed(ctx context.Context, tx Transaction, id, reversedByID, reason string, reversedAt time.Time) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
}

// EntryRepository defines data access for journal entries.
type EntryRepository interface {
	CreateBatch(ctx context.Context, tx Transaction, entries []domain.JournalEntry) error
	// UpdateSignedAmounts persists the signed balance deltas computed when
	// the owning transaction is posted.
	UpdateSignedAmounts(ctx context.Context, tx Transaction, entries []domain.JournalEntry) error
	GetByTransaction(ctx context.Context, transactionID string) ([]domain.JournalEntry, error)
	GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.JournalEntry, error)
	// SumSignedDeltas sums posted signed entry deltas for an account whose
	// owning transaction posted in (after, until]. A zero `after` means from
	// the beginning of history.
	SumSignedDeltas(ctx context.Context, accountID string, after, until time.Time) (decimal.Decimal, error)
}

// SnapshotRepository defines data access for balance snapshots.
type SnapshotRepository interface {
	Create(ctx context.Context, tx Transaction, snapshot *domain.BalanceSnapshot) error
	Latest(ctx context.Context, accountID string, asOf time.Time) (*domain.BalanceSnapshot, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit records.
type AuditRepository interface {
	Create(ctx context.Context, record *domain.AuditRecord) error
	CreateTx(ctx context.Context, tx Transaction, record *domain.AuditRecord) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error)
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditRecord, error)
}

// SagaRepository persists distributed transaction contexts as a durable log.
type SagaRepository interface {
	CreateContext(ctx context.Context, tc *domain.TransactionContext) error
	AppendOperation(ctx context.Context, contextID string, op *domain.SagaOperation) error
	UpdateStatus(ctx context.Context, contextID string, status domain.ContextStatus, updatedAt time.Time) error
}

// Collaborator is an external service the coordinator drives. Execute applies
// a saga step; Compensate undoes a previously applied step.
type Collaborator interface {
	Execute(ctx context.Context, operation string, payload map[string]any) (map[string]any, error)
	Compensate(ctx context.Context, operation string, compensation map[string]any) error
}

// Transaction represents a store-level transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles store transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs store operations that failed transiently, such as on
// deadlock or serialization conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations for balance reads.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage at the transport layer.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a claimed key so the request can be retried.
	Delete(ctx context.Context, key string) error
}
