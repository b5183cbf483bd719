package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func entry(kind EntryKind, amount int64) JournalEntry {
	return JournalEntry{
		Kind:     kind,
		Amount:   decimal.NewFromInt(amount),
		Currency: "USD",
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []JournalEntry
		wantErr bool
	}{
		{
			name: "balanced pair",
			entries: []JournalEntry{
				entry(EntryKindDebit, 100),
				entry(EntryKindCredit, 100),
			},
		},
		{
			name: "balanced multi-leg",
			entries: []JournalEntry{
				entry(EntryKindDebit, 100),
				entry(EntryKindCredit, 60),
				entry(EntryKindCredit, 40),
			},
		},
		{
			name: "unbalanced",
			entries: []JournalEntry{
				entry(EntryKindDebit, 100),
				entry(EntryKindCredit, 90),
			},
			wantErr: true,
		},
		{
			name: "single entry",
			entries: []JournalEntry{
				entry(EntryKindDebit, 100),
			},
			wantErr: true,
		},
		{
			name:    "no entries",
			entries: nil,
			wantErr: true,
		},
		{
			name: "zero amount",
			entries: []JournalEntry{
				entry(EntryKindDebit, 0),
				entry(EntryKindCredit, 0),
			},
			wantErr: true,
		},
		{
			name: "negative amount",
			entries: []JournalEntry{
				entry(EntryKindDebit, -50),
				entry(EntryKindCredit, -50),
			},
			wantErr: true,
		},
		{
			name: "mixed currency",
			entries: []JournalEntry{
				entry(EntryKindDebit, 100),
				{Kind: EntryKindCredit, Amount: decimal.NewFromInt(100), Currency: "EUR"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := &Transaction{Currency: "USD", Entries: tt.entries}

			err := txn.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("expected ErrValidation, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransactionCanReverse(t *testing.T) {
	reversedBy := "txn-2"

	tests := []struct {
		name    string
		txn     Transaction
		wantErr bool
	}{
		{name: "posted", txn: Transaction{Status: TransactionStatusPosted}},
		{name: "draft", txn: Transaction{Status: TransactionStatusDraft}, wantErr: true},
		{name: "already reversed", txn: Transaction{Status: TransactionStatusReversed}, wantErr: true},
		{
			name:    "posted but linked to reversal",
			txn:     Transaction{Status: TransactionStatusPosted, ReversedByID: &reversedBy},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txn.CanReverse()
			if tt.wantErr {
				if !errors.Is(err, ErrConflict) {
					t.Errorf("expected ErrConflict, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTransactionTotalAmount(t *testing.T) {
	txn := &Transaction{
		Currency: "USD",
		Entries: []JournalEntry{
			entry(EntryKindDebit, 70),
			entry(EntryKindDebit, 30),
			entry(EntryKindCredit, 100),
		},
	}

	if got := txn.TotalAmount(); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected total 100, got %s", got)
	}
}
