package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

// SnapshotRepository implements usecase.SnapshotRepository.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Create writes a balance snapshot within a store transaction.
func (r *SnapshotRepository) Create(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	_, err := txQuerier(tx, r.pool).Exec(ctx, `
		INSERT INTO balance_snapshots (id, account_id, balance, as_of, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		snapshot.ID,
		snapshot.AccountID,
		decimalToNumeric(snapshot.Balance),
		timeToPgTimestamptz(snapshot.AsOf),
		timeToPgTimestamptz(snapshot.CreatedAt),
	)

	return err
}

// Latest returns the newest snapshot taken at or before asOf, or nil when the
// account has never been snapshotted in that window.
func (r *SnapshotRepository) Latest(ctx context.Context, accountID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	var (
		snapshot  domain.BalanceSnapshot
		balance   pgtype.Numeric
		snapAsOf  pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, account_id, balance, as_of, created_at
		FROM balance_snapshots
		WHERE account_id = $1 AND as_of <= $2
		ORDER BY as_of DESC
		LIMIT 1`,
		accountID,
		timeToPgTimestamptz(asOf),
	).Scan(&snapshot.ID, &snapshot.AccountID, &balance, &snapAsOf, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	snapshot.Balance = numericToDecimal(balance)
	snapshot.AsOf = snapAsOf.Time
	snapshot.CreatedAt = createdAt.Time

	return &snapshot, nil
}
