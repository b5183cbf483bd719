package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

func salePayload(reference string) map[string]any {
	return map[string]any{
		"type":             "sale",
		"currency":         "USD",
		"source_service":   "coordinator",
		"source_reference": reference,
		"entries": []any{
			map[string]any{"account_id": "acc-cash", "kind": "debit", "amount": "100"},
			map[string]any{"account_id": "acc-rev", "kind": "credit", "amount": "100"},
		},
	}
}

func TestLedgerCollaboratorExecutePostsTransaction(t *testing.T) {
	f := newJournalFixture()
	lc := usecase.NewLedgerCollaborator(f.uc)

	result, err := lc.Execute(context.Background(), usecase.OpJournalRecord, salePayload("flow-1"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	transactionID, _ := result["transaction_id"].(string)
	if transactionID == "" {
		t.Fatal("expected transaction_id in execute result")
	}

	if got := f.balance(t, "acc-cash"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected cash balance 100 after execute, got %s", got)
	}
}

func TestLedgerCollaboratorCompensateReverses(t *testing.T) {
	f := newJournalFixture()
	lc := usecase.NewLedgerCollaborator(f.uc)

	result, err := lc.Execute(context.Background(), usecase.OpJournalRecord, salePayload("flow-1"))
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	compensation := map[string]any{"transaction_id": result["transaction_id"]}
	if err := lc.Compensate(context.Background(), usecase.OpJournalRecord, compensation); err != nil {
		t.Fatalf("compensate failed: %v", err)
	}

	if got := f.balance(t, "acc-cash"); !got.IsZero() {
		t.Fatalf("expected cash balance restored to zero, got %s", got)
	}

	// A second compensation of the same step must not double-reverse.
	if err := lc.Compensate(context.Background(), usecase.OpJournalRecord, compensation); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on repeated compensation, got %v", err)
	}
}

func TestLedgerCollaboratorRejectsMalformedPayload(t *testing.T) {
	f := newJournalFixture()
	lc := usecase.NewLedgerCollaborator(f.uc)

	tests := []struct {
		name      string
		operation string
		payload   map[string]any
	}{
		{"unknown operation", "journal.destroy", salePayload("flow-1")},
		{"entries not a list", usecase.OpJournalRecord, map[string]any{"currency": "USD", "entries": "nope"}},
		{
			"missing amount",
			usecase.OpJournalRecord,
			map[string]any{
				"currency": "USD",
				"entries":  []any{map[string]any{"account_id": "acc-cash", "kind": "debit"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lc.Execute(context.Background(), tt.operation, tt.payload); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLedgerCollaboratorCompensateRequiresTransactionID(t *testing.T) {
	f := newJournalFixture()
	lc := usecase.NewLedgerCollaborator(f.uc)

	err := lc.Compensate(context.Background(), usecase.OpJournalRecord, map[string]any{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for missing transaction_id, got %v", err)
	}
}
