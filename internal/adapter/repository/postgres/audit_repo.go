package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

const auditColumns = `id, actor, action, resource_type, resource_id, request_id,
	before_state, after_state, status, error_message, created_at`

// AuditRepository implements usecase.AuditRepository. Records are append-only;
// there is no update or delete path.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Create appends an audit record.
func (r *AuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	return r.create(ctx, r.pool, record)
}

// CreateTx appends an audit record within a store transaction.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, record *domain.AuditRecord) error {
	return r.create(ctx, txQuerier(tx, r.pool), record)
}

func (r *AuditRepository) create(ctx context.Context, q querier, record *domain.AuditRecord) error {
	before, err := marshalState(record.BeforeState)
	if err != nil {
		return err
	}

	after, err := marshalState(record.AfterState)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO audit_records (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID,
		record.Actor,
		record.Action,
		record.ResourceType,
		record.ResourceID,
		record.RequestID,
		before,
		after,
		string(record.Status),
		record.ErrorMessage,
		timeToPgTimestamptz(record.CreatedAt),
	)

	return err
}

// List retrieves audit records matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	var (
		conditions []string
		args       []any
	)

	add := func(condition string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(condition, len(args)))
	}

	if filter.Actor != "" {
		add("actor = $%d", filter.Actor)
	}

	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}

	if filter.ResourceType != "" {
		add("resource_type = $%d", filter.ResourceType)
	}

	if filter.ResourceID != "" {
		add("resource_id = $%d", filter.ResourceID)
	}

	if filter.StartDate != nil {
		add("created_at >= $%d", *filter.StartDate)
	}

	if filter.EndDate != nil {
		add("created_at <= $%d", *filter.EndDate)
	}

	query := `SELECT ` + auditColumns + ` FROM audit_records`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	limit, offset := domain.ValidatePagination(filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return scanAuditRecords(rows)
}

// GetByResource retrieves the audit trail of one resource, newest first.
func (r *AuditRepository) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+auditColumns+`
		FROM audit_records
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC`,
		resourceType, resourceID,
	)
	if err != nil {
		return nil, err
	}

	return scanAuditRecords(rows)
}

func scanAuditRecords(rows pgx.Rows) ([]*domain.AuditRecord, error) {
	defer rows.Close()

	var records []*domain.AuditRecord

	for rows.Next() {
		var (
			record    domain.AuditRecord
			before    []byte
			after     []byte
			status    string
			createdAt pgtype.Timestamptz
		)

		err := rows.Scan(
			&record.ID, &record.Actor, &record.Action, &record.ResourceType,
			&record.ResourceID, &record.RequestID, &before, &after, &status,
			&record.ErrorMessage, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		record.Status = domain.AuditStatus(status)
		record.CreatedAt = createdAt.Time

		if len(before) > 0 {
			if err := json.Unmarshal(before, &record.BeforeState); err != nil {
				return nil, err
			}
		}

		if len(after) > 0 {
			if err := json.Unmarshal(after, &record.AfterState); err != nil {
				return nil, err
			}
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

func marshalState(state domain.JSON) ([]byte, error) {
	if state == nil {
		return nil, nil
	}

	return json.Marshal(state)
}
