package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind is the side of a journal entry.
type EntryKind string

const (
	EntryKindDebit  EntryKind = "debit"
	EntryKindCredit EntryKind = "credit"
)

// Opposite returns the other side.
func (k EntryKind) Opposite() EntryKind {
	if k == EntryKindDebit {
		return EntryKindCredit
	}

	return EntryKindDebit
}

// TransactionStatus is the lifecycle status of a journal transaction.
type TransactionStatus string

const (
	TransactionStatusDraft    TransactionStatus = "draft"
	TransactionStatusPosted   TransactionStatus = "posted"
	TransactionStatusReversed TransactionStatus = "reversed"
)

// JournalEntry is one debit or credit line within a transaction.
// SignedAmount is the balance delta applied to the account at posting time,
// positive on the account's normal side.
type JournalEntry struct {
	ID            string
	TransactionID string
	AccountID     string
	Kind          EntryKind
	Amount        decimal.Decimal
	SignedAmount  decimal.Decimal
	Currency      string
	Sequence      int32
	Description   string
	CreatedAt     time.Time
}

// Transaction is an immutable journal transaction. Once posted, the only
// permitted change is the status transition to reversed via a new linked
// transaction.
type Transaction struct {
	ID              string
	Type            string
	Description     string
	Status          TransactionStatus
	Currency        string
	Entries         []JournalEntry
	SourceService   string
	SourceReference string
	ReversalOfID    *string
	ReversedByID    *string
	ReversalReason  string
	CreatedAt       time.Time
	PostedAt        *time.Time
	ReversedAt      *time.Time
}

// MinEntries is the smallest legal entry count for a transaction.
const MinEntries = 2

// Validate enforces the double-entry invariants: at least two entries, all
// amounts strictly positive, a single currency, and balanced debits/credits.
func (t *Transaction) Validate() error {
	if len(t.Entries) < MinEntries {
		return fmt.Errorf("%w: at least %d entries required, got %d", ErrValidation, MinEntries, len(t.Entries))
	}

	debits := decimal.Zero
	credits := decimal.Zero

	for i, e := range t.Entries {
		if e.Amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: entry %d amount must be positive", ErrValidation, i)
		}

		if e.Currency != t.Currency {
			return fmt.Errorf("%w: entry %d currency %s does not match transaction currency %s",
				ErrValidation, i, e.Currency, t.Currency)
		}

		switch e.Kind {
		case EntryKindDebit:
			debits = debits.Add(e.Amount)
		case EntryKindCredit:
			credits = credits.Add(e.Amount)
		default:
			return fmt.Errorf("%w: entry %d has unknown kind %q", ErrValidation, i, e.Kind)
		}
	}

	if !debits.Equal(credits) {
		return fmt.Errorf("%w: debits %s do not equal credits %s", ErrValidation, debits, credits)
	}

	return nil
}

// CanPost reports whether the transaction may transition to posted.
func (t *Transaction) CanPost() error {
	switch t.Status {
	case TransactionStatusDraft:
		return nil
	case TransactionStatusPosted:
		// Posting is idempotent; the caller returns the original result.
		return nil
	default:
		return fmt.Errorf("%w: cannot post a %s transaction", ErrConflict, t.Status)
	}
}

// CanReverse reports whether the transaction may be reversed. A posted
// transaction is reversible exactly once.
func (t *Transaction) CanReverse() error {
	if t.Status != TransactionStatusPosted {
		return fmt.Errorf("%w: only posted transactions can be reversed, status is %s", ErrConflict, t.Status)
	}

	if t.ReversedByID != nil {
		return fmt.Errorf("%w: transaction already reversed by %s", ErrConflict, *t.ReversedByID)
	}

	return nil
}

// TotalAmount returns the debit-side total of the transaction.
func (t *Transaction) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Entries {
		if e.Kind == EntryKindDebit {
			total = total.Add(e.Amount)
		}
	}

	return total
}
