package dto

import (
	"time"

	"github.com/iho/finledger/internal/domain"
)

// ContextResponse represents a distributed transaction context in API
// responses.
type ContextResponse struct {
	ID         string              `json:"id"`
	Owner      string              `json:"owner"`
	Status     string              `json:"status"`
	Operations []OperationResponse `json:"operations"`
	Deadline   time.Time           `json:"deadline"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// OperationResponse represents one recorded collaborator operation.
type OperationResponse struct {
	Ordinal   int            `json:"ordinal"`
	Service   string         `json:"service"`
	Operation string         `json:"operation"`
	Payload   map[string]any `json:"payload,omitempty"`
	AppliedAt time.Time      `json:"applied_at"`
}

// ContextFromDomain converts a domain transaction context to response.
func ContextFromDomain(tc *domain.TransactionContext) *ContextResponse {
	operations := make([]OperationResponse, len(tc.Operations))
	for i, op := range tc.Operations {
		operations[i] = OperationResponse{
			Ordinal:   op.Ordinal,
			Service:   op.Service,
			Operation: op.Operation,
			Payload:   op.Payload,
			AppliedAt: op.AppliedAt,
		}
	}
	return &ContextResponse{
		ID:         tc.ID,
		Owner:      tc.Owner,
		Status:     string(tc.Status),
		Operations: operations,
		Deadline:   tc.Deadline,
		CreatedAt:  tc.CreatedAt,
		UpdatedAt:  tc.UpdatedAt,
	}
}

// BeginContextResponse represents a freshly begun context.
type BeginContextResponse struct {
	ContextID string `json:"context_id"`
}

// AddOperationResponse represents a recorded operation's position.
type AddOperationResponse struct {
	ContextID string `json:"context_id"`
	Ordinal   int    `json:"ordinal"`
}

// RollbackResponse represents the outcome of a rollback.
type RollbackResponse struct {
	ContextID      string    `json:"context_id"`
	Status         string    `json:"status"`
	Compensated    int       `json:"compensated"`
	FailedOrdinals []int     `json:"failed_ordinals,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RollbackFromDomain converts a domain rollback result to response.
func RollbackFromDomain(r *domain.RollbackResult) *RollbackResponse {
	return &RollbackResponse{
		ContextID:      r.ContextID,
		Status:         string(r.Status),
		Compensated:    r.Compensated,
		FailedOrdinals: r.FailedOrdinals,
		CompletedAt:    r.CompletedAt,
	}
}

// AuditRecordResponse represents an audit record in API responses.
type AuditRecordResponse struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	RequestID    string         `json:"request_id,omitempty"`
	BeforeState  map[string]any `json:"before_state,omitempty"`
	AfterState   map[string]any `json:"after_state,omitempty"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// AuditRecordFromDomain converts a domain audit record to response.
func AuditRecordFromDomain(r *domain.AuditRecord) *AuditRecordResponse {
	return &AuditRecordResponse{
		ID:           r.ID,
		Actor:        r.Actor,
		Action:       r.Action,
		ResourceType: r.ResourceType,
		ResourceID:   r.ResourceID,
		RequestID:    r.RequestID,
		BeforeState:  r.BeforeState,
		AfterState:   r.AfterState,
		Status:       string(r.Status),
		ErrorMessage: r.ErrorMessage,
		CreatedAt:    r.CreatedAt,
	}
}

// AuditRecordsFromDomain converts domain audit records to responses.
func AuditRecordsFromDomain(records []*domain.AuditRecord) []*AuditRecordResponse {
	result := make([]*AuditRecordResponse, len(records))
	for i, r := range records {
		result[i] = AuditRecordFromDomain(r)
	}
	return result
}
