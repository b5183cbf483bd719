package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

const entryColumns = `id, transaction_id, account_id, kind, amount, signed_amount, currency,
	sequence, description, created_at`

// EntryRepository implements usecase.EntryRepository. Entries are append-only;
// the only mutation ever applied is setting the signed delta at post time.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// CreateBatch inserts the entries of one transaction.
func (r *EntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []domain.JournalEntry) error {
	q := txQuerier(tx, r.pool)

	for _, e := range entries {
		_, err := q.Exec(ctx, `
			INSERT INTO journal_entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, $9)`,
			e.ID,
			e.TransactionID,
			e.AccountID,
			string(e.Kind),
			decimalToNumeric(e.Amount),
			e.Currency,
			e.Sequence,
			e.Description,
			timeToPgTimestamptz(e.CreatedAt),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// UpdateSignedAmounts persists the signed deltas computed when the owning
// transaction is posted. A NULL signed_amount marks an entry as not yet
// effective.
func (r *EntryRepository) UpdateSignedAmounts(ctx context.Context, tx usecase.Transaction, entries []domain.JournalEntry) error {
	q := txQuerier(tx, r.pool)

	for _, e := range entries {
		_, err := q.Exec(ctx, `
			UPDATE journal_entries
			SET signed_amount = $2
			WHERE id = $1`,
			e.ID,
			decimalToNumeric(e.SignedAmount),
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// GetByTransaction retrieves the entries of a transaction in sequence order.
func (r *EntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE transaction_id = $1
		ORDER BY sequence`,
		transactionID,
	)
	if err != nil {
		return nil, err
	}

	return scanEntries(rows)
}

func (r *EntryRepository) getByTransactions(ctx context.Context, transactionIDs []string) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, sequence`,
		transactionIDs,
	)
	if err != nil {
		return nil, err
	}

	return scanEntries(rows)
}

// GetByAccount retrieves the entries touching an account, newest first.
func (r *EntryRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM journal_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, sequence
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}

	return scanEntries(rows)
}

// SumSignedDeltas sums the effective deltas of entries whose owning
// transaction posted in (after, until]. A zero after means full history.
func (r *EntryRepository) SumSignedDeltas(ctx context.Context, accountID string, after, until time.Time) (decimal.Decimal, error) {
	var lower *time.Time
	if !after.IsZero() {
		lower = &after
	}

	var sum pgtype.Numeric

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(e.signed_amount), 0)
		FROM journal_entries e
		JOIN transactions t ON t.id = e.transaction_id
		WHERE e.account_id = $1
		  AND e.signed_amount IS NOT NULL
		  AND t.posted_at IS NOT NULL
		  AND t.posted_at <= $2
		  AND ($3::timestamptz IS NULL OR t.posted_at > $3)`,
		accountID,
		timeToPgTimestamptz(until),
		lower,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(sum), nil
}

func scanEntries(rows pgx.Rows) ([]domain.JournalEntry, error) {
	defer rows.Close()

	var entries []domain.JournalEntry

	for rows.Next() {
		var (
			e         domain.JournalEntry
			kind      string
			amount    pgtype.Numeric
			signed    pgtype.Numeric
			createdAt pgtype.Timestamptz
		)

		err := rows.Scan(
			&e.ID, &e.TransactionID, &e.AccountID, &kind, &amount, &signed,
			&e.Currency, &e.Sequence, &e.Description, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		e.Kind = domain.EntryKind(kind)
		e.Amount = numericToDecimal(amount)
		e.SignedAmount = numericToDecimal(signed)
		e.CreatedAt = createdAt.Time

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
