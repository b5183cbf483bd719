package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// Collaborator operations served by the local journal engine.
const (
	OpJournalRecord = "journal.record"
)

// LedgerCollaborator exposes the journal engine as a coordinator
// participant: Execute records and posts a transaction, Compensate reverses
// it. This makes ledger postings first-class steps in distributed flows
// alongside external services.
type LedgerCollaborator struct {
	journal *JournalUseCase
}

// NewLedgerCollaborator creates a new LedgerCollaborator.
func NewLedgerCollaborator(journal *JournalUseCase) *LedgerCollaborator {
	return &LedgerCollaborator{journal: journal}
}

// Execute records a posted transaction from the operation payload. The
// returned transaction ID is merged into the compensation payload by the
// coordinator, so Compensate can find the record to reverse.
func (lc *LedgerCollaborator) Execute(ctx context.Context, operation string, payload map[string]any) (map[string]any, error) {
	if operation != OpJournalRecord {
		return nil, fmt.Errorf("%w: unsupported ledger operation %q", domain.ErrValidation, operation)
	}

	input, err := recordInputFromPayload(payload)
	if err != nil {
		return nil, err
	}

	txn, err := lc.journal.RecordTransaction(ctx, input)
	if err != nil {
		return nil, err
	}

	return map[string]any{"transaction_id": txn.ID}, nil
}

// Compensate reverses the transaction recorded by Execute. Reversing an
// already reversed transaction reports a conflict, which the coordinator
// surfaces as a failed ordinal.
func (lc *LedgerCollaborator) Compensate(ctx context.Context, operation string, compensation map[string]any) error {
	transactionID, _ := compensation["transaction_id"].(string)
	if transactionID == "" {
		return fmt.Errorf("%w: compensation payload missing transaction_id", domain.ErrValidation)
	}

	reason, _ := compensation["reason"].(string)
	if reason == "" {
		reason = "distributed transaction rollback"
	}

	_, err := lc.journal.ReverseTransaction(ctx, ReverseTransactionInput{
		TransactionID: transactionID,
		Reason:        reason,
	})
	return err
}

func recordInputFromPayload(payload map[string]any) (RecordTransactionInput, error) {
	input := RecordTransactionInput{
		Type:            stringField(payload, "type"),
		Description:     stringField(payload, "description"),
		Currency:        stringField(payload, "currency"),
		SourceService:   stringField(payload, "source_service"),
		SourceReference: stringField(payload, "source_reference"),
		AutoPost:        true,
	}

	rawEntries, ok := payload["entries"].([]any)
	if !ok {
		return input, fmt.Errorf("%w: payload entries must be a list", domain.ErrValidation)
	}

	for _, raw := range rawEntries {
		entry, ok := raw.(map[string]any)
		if !ok {
			return input, fmt.Errorf("%w: malformed entry in payload", domain.ErrValidation)
		}

		amount, err := amountField(entry, "amount")
		if err != nil {
			return input, err
		}

		input.Entries = append(input.Entries, EntryInput{
			AccountID:   stringField(entry, "account_id"),
			Kind:        domain.EntryKind(stringField(entry, "kind")),
			Amount:      amount,
			Description: stringField(entry, "description"),
		})
	}

	return input, nil
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// amountField accepts both JSON-decoded numbers and decimal strings. Strings
// are preferred; float64 loses precision past 2^53.
func amountField(m map[string]any, key string) (decimal.Decimal, error) {
	switch v := m[key].(type) {
	case string:
		amount, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: invalid amount %q", domain.ErrValidation, v)
		}
		return amount, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: entry amount missing", domain.ErrValidation)
	}
}
