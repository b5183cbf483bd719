package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/finledger/internal/domain"
)

// SagaRepository implements usecase.SagaRepository as a durable log of
// distributed transaction contexts. The coordinator's in-memory map remains
// authoritative for live contexts; this log supports audit and post-restart
// inspection.
type SagaRepository struct {
	pool *pgxpool.Pool
}

// NewSagaRepository creates a new SagaRepository.
func NewSagaRepository(pool *pgxpool.Pool) *SagaRepository {
	return &SagaRepository{pool: pool}
}

// CreateContext records a newly begun context.
func (r *SagaRepository) CreateContext(ctx context.Context, tc *domain.TransactionContext) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO saga_contexts (id, owner, status, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		tc.ID,
		tc.Owner,
		string(tc.Status),
		timeToPgTimestamptz(tc.Deadline),
		timeToPgTimestamptz(tc.CreatedAt),
		timeToPgTimestamptz(tc.UpdatedAt),
	)

	return err
}

// AppendOperation records an applied saga step with its compensation payload.
func (r *SagaRepository) AppendOperation(ctx context.Context, contextID string, op *domain.SagaOperation) error {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return err
	}

	compensation, err := json.Marshal(op.Compensation)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO saga_operations (context_id, ordinal, service, operation, payload, compensation, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		contextID,
		op.Ordinal,
		op.Service,
		op.Operation,
		payload,
		compensation,
		timeToPgTimestamptz(op.AppliedAt),
	)

	return err
}

// UpdateStatus records a context status transition.
func (r *SagaRepository) UpdateStatus(ctx context.Context, contextID string, status domain.ContextStatus, updatedAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE saga_contexts
		SET status = $2, updated_at = $3
		WHERE id = $1`,
		contextID,
		string(status),
		timeToPgTimestamptz(updatedAt),
	)

	return err
}
