package domain

import (
	"encoding/json"
	"time"
)

// AuditRecord is an immutable audit trail entry. Every posting, reversal,
// account mutation and coordinator transition appends one, as does every
// error occurrence.
type AuditRecord struct {
	ID           string
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is loosely structured audit state.
type JSON map[string]any

// AuditStatus records whether the audited action succeeded.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// Audit actions.
const (
	AuditActionAccountCreate = "account.create"
	AuditActionAccountUpdate = "account.update"
	AuditActionAccountClose  = "account.close"

	AuditActionTransactionRecord  = "transaction.record"
	AuditActionTransactionPost    = "transaction.post"
	AuditActionTransactionReverse = "transaction.reverse"

	AuditActionContextBegin     = "context.begin"
	AuditActionContextOperation = "context.operation"
	AuditActionContextCommit    = "context.commit"
	AuditActionContextRollback  = "context.rollback"
	AuditActionContextExpire    = "context.expire"

	AuditActionImbalance = "ledger.imbalance"
)

// MarshalState converts a domain object to JSON for audit logging.
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter selects audit records for listing.
type AuditFilter struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	StartDate    *time.Time
	EndDate      *time.Time
	Limit        int
	Offset       int
}
