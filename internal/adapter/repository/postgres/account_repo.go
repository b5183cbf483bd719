package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

const accountColumns = `id, code, name, type, parent_id, parent_type, currency, status,
	balance, version, metadata, created_at, updated_at, closed_at`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create creates a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	return r.create(ctx, r.pool, account)
}

// CreateTx creates a new account within a store transaction.
func (r *AccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	return r.create(ctx, txQuerier(tx, r.pool), account)
}

func (r *AccountRepository) create(ctx context.Context, q querier, account *domain.Account) error {
	metadata, err := marshalMetadata(account.Metadata)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		account.ID,
		account.Code,
		account.Name,
		string(account.Type),
		account.ParentID,
		accountTypePtrToString(account.ParentType),
		account.Currency,
		string(account.Status),
		decimalToNumeric(account.Balance),
		account.Version,
		metadata,
		timeToPgTimestamptz(account.CreatedAt),
		timeToPgTimestamptz(account.UpdatedAt),
		timePtrToPgTimestamptz(account.ClosedAt),
	)

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

// GetByCode retrieves an account by chart code.
func (r *AccountRepository) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code = $1`, code)
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}

		return nil, err
	}

	return account, nil
}

// GetByIDsForUpdate retrieves accounts with FOR UPDATE locks. Callers pass
// sorted IDs so that concurrent postings acquire locks in a consistent order.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	rows, err := txQuerier(tx, r.pool).Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`,
		ids,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

// UpdateBalance updates the balance and version of an account.
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	_, err := txQuerier(tx, r.pool).Exec(ctx, `
		UPDATE accounts
		SET balance = $2, version = $3, updated_at = $4
		WHERE id = $1`,
		id,
		decimalToNumeric(balance),
		version,
		timeToPgTimestamptz(updatedAt),
	)

	return err
}

// Update persists the mutable account fields.
func (r *AccountRepository) Update(ctx context.Context, account *domain.Account) error {
	metadata, err := marshalMetadata(account.Metadata)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET name = $2, type = $3, currency = $4, metadata = $5, updated_at = $6
		WHERE id = $1`,
		account.ID,
		account.Name,
		string(account.Type),
		account.Currency,
		metadata,
		timeToPgTimestamptz(account.UpdatedAt),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// Close marks an account closed within a store transaction, so the closure
// and its outbox event land atomically. The row is never deleted.
func (r *AccountRepository) Close(ctx context.Context, tx usecase.Transaction, id string, closedAt time.Time) error {
	tag, err := txQuerier(tx, r.pool).Exec(ctx, `
		UPDATE accounts
		SET status = $2, closed_at = $3, updated_at = $3
		WHERE id = $1`,
		id,
		string(domain.AccountStatusClosed),
		timeToPgTimestamptz(closedAt),
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}

// List lists accounts ordered by chart code.
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY code
		LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

// ListByCurrency lists all accounts in a currency.
func (r *AccountRepository) ListByCurrency(ctx context.Context, currency string) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE currency = $1
		ORDER BY code`,
		currency,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

// ListChildren lists the direct children of an account.
func (r *AccountRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE parent_id = $1
		ORDER BY code`,
		parentID,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

// ListByCodePrefix lists accounts whose chart code starts with prefix.
func (r *AccountRepository) ListByCodePrefix(ctx context.Context, prefix string) ([]*domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE code LIKE $1 || '%'
		ORDER BY code`,
		prefix,
	)
	if err != nil {
		return nil, err
	}

	return scanAccounts(rows)
}

// HasPostings reports whether any posted entry references the account.
func (r *AccountRepository) HasPostings(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM journal_entries
			WHERE account_id = $1 AND signed_amount IS NOT NULL
		)`,
		id,
	).Scan(&exists)

	return exists, err
}

func scanAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	defer rows.Close()

	var accounts []*domain.Account

	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		account    domain.Account
		accType    string
		parentType *string
		status     string
		balance    pgtype.Numeric
		metadata   []byte
		createdAt  pgtype.Timestamptz
		updatedAt  pgtype.Timestamptz
		closedAt   pgtype.Timestamptz
	)

	err := row.Scan(
		&account.ID, &account.Code, &account.Name, &accType, &account.ParentID,
		&parentType, &account.Currency, &status, &balance, &account.Version,
		&metadata, &createdAt, &updatedAt, &closedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Type = domain.AccountType(accType)
	account.Status = domain.AccountStatus(status)
	account.Balance = numericToDecimal(balance)
	account.CreatedAt = createdAt.Time
	account.UpdatedAt = updatedAt.Time

	if parentType != nil {
		t := domain.AccountType(*parentType)
		account.ParentType = &t
	}

	if closedAt.Valid {
		t := closedAt.Time
		account.ClosedAt = &t
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &account.Metadata); err != nil {
			return nil, err
		}
	}

	return &account, nil
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}

	return json.Marshal(metadata)
}

func accountTypePtrToString(t *domain.AccountType) *string {
	if t == nil {
		return nil
	}

	s := string(*t)

	return &s
}

// Type conversion helpers.
func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric

	_ = n.Scan(d.String())

	return n
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}

	d, _ := decimal.NewFromString(n.Int.String())
	if n.Exp != 0 {
		d = d.Shift(n.Exp)
	}

	return d
}

func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func timePtrToPgTimestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}

	return pgtype.Timestamptz{Time: *t, Valid: true}
}
