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

const transactionColumns = `id, type, description, status, currency, source_service, source_reference,
	reversal_of_id, reversed_by_id, reversal_reason, created_at, posted_at, reversed_at`

// TransactionRepository implements usecase.TransactionRepository. Transaction
// rows are append-only; posting and reversal only ever touch status fields.
type TransactionRepository struct {
	pool      *pgxpool.Pool
	entryRepo *EntryRepository
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool *pgxpool.Pool, entryRepo *EntryRepository) *TransactionRepository {
	return &TransactionRepository{pool: pool, entryRepo: entryRepo}
}

// Create inserts a transaction row within a store transaction. Entries are
// written separately through the entry repository.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	_, err := txQuerier(tx, r.pool).Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		txn.ID,
		txn.Type,
		txn.Description,
		string(txn.Status),
		txn.Currency,
		txn.SourceService,
		txn.SourceReference,
		txn.ReversalOfID,
		txn.ReversedByID,
		txn.ReversalReason,
		timeToPgTimestamptz(txn.CreatedAt),
		timePtrToPgTimestamptz(txn.PostedAt),
		timePtrToPgTimestamptz(txn.ReversedAt),
	)

	return err
}

// GetByID retrieves a transaction with its entries.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves a transaction with a FOR UPDATE lock on its row.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return r.getOne(ctx, txQuerier(tx, r.pool),
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

// GetBySource retrieves a transaction by its idempotency key.
func (r *TransactionRepository) GetBySource(ctx context.Context, sourceService, sourceReference string) (*domain.Transaction, error) {
	return r.getOne(ctx, r.pool,
		`SELECT `+transactionColumns+` FROM transactions WHERE source_service = $1 AND source_reference = $2`,
		sourceService, sourceReference)
}

func (r *TransactionRepository) getOne(ctx context.Context, q querier, query string, args ...any) (*domain.Transaction, error) {
	txn, err := scanTransaction(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}

		return nil, err
	}

	entries, err := r.entryRepo.GetByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	txn.Entries = entries

	return txn, nil
}

// MarkPosted transitions a transaction to posted.
func (r *TransactionRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	tag, err := txQuerier(tx, r.pool).Exec(ctx, `
		UPDATE transactions
		SET status = $2, posted_at = $3
		WHERE id = $1`,
		id,
		string(domain.TransactionStatusPosted),
		timeToPgTimestamptz(postedAt),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// MarkReversed links a posted transaction to its reversal.
func (r *TransactionRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversedByID, reason string, reversedAt time.Time) error {
	tag, err := txQuerier(tx, r.pool).Exec(ctx, `
		UPDATE transactions
		SET status = $2, reversed_by_id = $3, reversal_reason = $4, reversed_at = $5
		WHERE id = $1`,
		id,
		string(domain.TransactionStatusReversed),
		reversedByID,
		reason,
		timeToPgTimestamptz(reversedAt),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}

	return nil
}

// ListByAccount lists transactions touching an account, newest first.
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id IN (
			SELECT transaction_id FROM journal_entries WHERE account_id = $1
		)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}

	txns, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}

	if err := r.attachEntries(ctx, txns); err != nil {
		return nil, err
	}

	return txns, nil
}

func (r *TransactionRepository) attachEntries(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	ids := make([]string, 0, len(txns))
	byID := make(map[string]*domain.Transaction, len(txns))

	for _, txn := range txns {
		ids = append(ids, txn.ID)
		byID[txn.ID] = txn
	}

	entries, err := r.entryRepo.getByTransactions(ctx, ids)
	if err != nil {
		return err
	}

	for _, e := range entries {
		txn := byID[e.TransactionID]
		txn.Entries = append(txn.Entries, e)
	}

	return nil
}

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	var txns []*domain.Transaction

	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}

		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		txn        domain.Transaction
		status     string
		createdAt  pgtype.Timestamptz
		postedAt   pgtype.Timestamptz
		reversedAt pgtype.Timestamptz
	)

	err := row.Scan(
		&txn.ID, &txn.Type, &txn.Description, &status, &txn.Currency,
		&txn.SourceService, &txn.SourceReference, &txn.ReversalOfID,
		&txn.ReversedByID, &txn.ReversalReason, &createdAt, &postedAt, &reversedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Status = domain.TransactionStatus(status)
	txn.CreatedAt = createdAt.Time

	if postedAt.Valid {
		t := postedAt.Time
		txn.PostedAt = &t
	}

	if reversedAt.Valid {
		t := reversedAt.Time
		txn.ReversedAt = &t
	}

	return &txn, nil
}
