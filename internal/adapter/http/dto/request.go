package dto

import (
	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Code     string            `json:"code"`
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	ParentID *string           `json:"parent_id,omitempty"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() usecase.CreateAccountInput {
	return usecase.CreateAccountInput{
		Code:     r.Code,
		Name:     r.Name,
		Type:     domain.AccountType(r.Type),
		ParentID: r.ParentID,
		Currency: r.Currency,
		Metadata: r.Metadata,
	}
}

// UpdateAccountRequest represents a request to update an account. Absent
// fields are left unchanged.
type UpdateAccountRequest struct {
	Name     *string           `json:"name,omitempty"`
	Type     *string           `json:"type,omitempty"`
	Currency *string           `json:"currency,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateAccountRequest) ToUseCaseInput(id string) usecase.UpdateAccountInput {
	input := usecase.UpdateAccountInput{
		ID:       id,
		Name:     r.Name,
		Currency: r.Currency,
		Metadata: r.Metadata,
	}
	if r.Type != nil {
		accountType := domain.AccountType(*r.Type)
		input.Type = &accountType
	}
	return input
}

// EntryItem represents a single journal entry in a transaction request.
type EntryItem struct {
	AccountID   string          `json:"account_id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

// RecordTransactionRequest represents a request to record a journal
// transaction. (source_service, source_reference) is the idempotency key.
type RecordTransactionRequest struct {
	Type            string      `json:"type"`
	Description     string      `json:"description,omitempty"`
	Currency        string      `json:"currency"`
	Entries         []EntryItem `json:"entries"`
	SourceService   string      `json:"source_service"`
	SourceReference string      `json:"source_reference"`
	AutoPost        bool        `json:"auto_post"`
}

// ToUseCaseInput converts to use case input.
func (r *RecordTransactionRequest) ToUseCaseInput() usecase.RecordTransactionInput {
	entries := make([]usecase.EntryInput, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = usecase.EntryInput{
			AccountID:   e.AccountID,
			Kind:        domain.EntryKind(e.Kind),
			Amount:      e.Amount,
			Description: e.Description,
		}
	}
	return usecase.RecordTransactionInput{
		Type:            r.Type,
		Description:     r.Description,
		Currency:        r.Currency,
		Entries:         entries,
		SourceService:   r.SourceService,
		SourceReference: r.SourceReference,
		AutoPost:        r.AutoPost,
	}
}

// ReverseTransactionRequest represents a request to reverse a posted
// transaction.
type ReverseTransactionRequest struct {
	Reason string `json:"reason"`
}

// BeginContextRequest represents a request to begin a distributed
// transaction context.
type BeginContextRequest struct {
	Owner string `json:"owner"`
}

// AddOperationRequest represents a request to record one collaborator
// operation under a context.
type AddOperationRequest struct {
	Service      string         `json:"service"`
	Operation    string         `json:"operation"`
	Payload      map[string]any `json:"payload,omitempty"`
	Compensation map[string]any `json:"compensation,omitempty"`
}
