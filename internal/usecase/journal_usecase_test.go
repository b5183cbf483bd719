package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
	"github.com/iho/finledger/internal/usecase/mocks"
)

type journalFixture struct {
	uc         *usecase.JournalUseCase
	accRepo    *mocks.MockAccountRepository
	txnRepo    *mocks.MockTransactionRepository
	entryRepo  *mocks.MockEntryRepository
	outboxRepo *mocks.MockOutboxRepository
	auditRepo  *mocks.MockAuditRepository
	txMgr      *mocks.MockTransactionManager
	guard      *usecase.IntegrityGuard
	retrier    *mocks.MockRetrier
}

func newJournalFixture() *journalFixture {
	f := &journalFixture{
		accRepo:    mocks.NewMockAccountRepository(),
		txnRepo:    mocks.NewMockTransactionRepository(),
		entryRepo:  mocks.NewMockEntryRepository(),
		outboxRepo: mocks.NewMockOutboxRepository(),
		auditRepo:  mocks.NewMockAuditRepository(),
		txMgr:      mocks.NewMockTransactionManager(),
		guard:      usecase.NewIntegrityGuard(),
		retrier:    mocks.NewMockRetrier(),
	}

	f.uc = usecase.NewJournalUseCase(
		f.txMgr, f.accRepo, f.txnRepo, f.entryRepo,
		mocks.NewMockSnapshotRepository(), f.outboxRepo, f.auditRepo,
		mocks.NewMockCache(), mocks.NewMockIDGenerator(), f.guard, f.retrier,
	)

	// Standard two-account fixture: a debit-normal asset and a
	// credit-normal revenue account.
	f.accRepo.Seed(&domain.Account{
		ID: "acc-cash", Code: "1000", Name: "Cash", Type: domain.AccountTypeAsset,
		Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero,
	})
	f.accRepo.Seed(&domain.Account{
		ID: "acc-rev", Code: "4000", Name: "Revenue", Type: domain.AccountTypeRevenue,
		Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero,
	})

	return f
}

func saleInput(reference string, amount decimal.Decimal, autoPost bool) usecase.RecordTransactionInput {
	return usecase.RecordTransactionInput{
		Type:            "sale",
		Description:     "cash sale",
		Currency:        "USD",
		SourceService:   "orders",
		SourceReference: reference,
		AutoPost:        autoPost,
		Entries: []usecase.EntryInput{
			{AccountID: "acc-cash", Kind: domain.EntryKindDebit, Amount: amount},
			{AccountID: "acc-rev", Kind: domain.EntryKindCredit, Amount: amount},
		},
	}
}

func (f *journalFixture) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()

	account, err := f.accRepo.GetByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("account %s: %v", accountID, err)
	}

	return account.Balance
}

func TestJournalUseCase_RecordTransaction_Validation(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*usecase.RecordTransactionInput)
		errorType error
	}{
		{
			name:      "reject missing source key",
			mutate:    func(in *usecase.RecordTransactionInput) { in.SourceReference = "" },
			errorType: domain.ErrValidation,
		},
		{
			name:      "reject unknown currency",
			mutate:    func(in *usecase.RecordTransactionInput) { in.Currency = "ZZZ" },
			errorType: domain.ErrValidation,
		},
		{
			name: "reject single entry",
			mutate: func(in *usecase.RecordTransactionInput) {
				in.Entries = in.Entries[:1]
			},
			errorType: domain.ErrValidation,
		},
		{
			name: "reject unbalanced entries",
			mutate: func(in *usecase.RecordTransactionInput) {
				in.Entries[1].Amount = decimal.NewFromInt(99)
			},
			errorType: domain.ErrValidation,
		},
		{
			name: "reject zero amount",
			mutate: func(in *usecase.RecordTransactionInput) {
				in.Entries[0].Amount = decimal.Zero
				in.Entries[1].Amount = decimal.Zero
			},
			errorType: domain.ErrValidation,
		},
		{
			name: "reject unknown account",
			mutate: func(in *usecase.RecordTransactionInput) {
				in.Entries[0].AccountID = "acc-missing"
			},
			errorType: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newJournalFixture()

			input := saleInput("ord-1", decimal.NewFromInt(100), true)
			tt.mutate(&input)

			_, err := f.uc.RecordTransaction(context.Background(), input)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, tt.errorType) {
				t.Errorf("expected error %v, got %v", tt.errorType, err)
			}

			// A rejected transaction leaves no trace on balances.
			if !f.balance(t, "acc-cash").IsZero() || !f.balance(t, "acc-rev").IsZero() {
				t.Error("rejected transaction changed balances")
			}
		})
	}
}

func TestJournalUseCase_RecordTransaction_AutoPost(t *testing.T) {
	f := newJournalFixture()

	txn, err := f.uc.RecordTransaction(context.Background(), saleInput("ord-1", decimal.NewFromInt(100), true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txn.Status != domain.TransactionStatusPosted {
		t.Errorf("expected posted status, got %s", txn.Status)
	}
	if txn.PostedAt == nil {
		t.Error("expected posted_at to be set")
	}

	// Debit grows a debit-normal account, credit grows a credit-normal one.
	if got := f.balance(t, "acc-cash"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected cash balance 100, got %s", got)
	}
	if got := f.balance(t, "acc-rev"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected revenue balance 100, got %s", got)
	}

	var posted, balanceChanged int
	for _, e := range f.outboxRepo.Events() {
		switch e.EventType {
		case domain.EventTypeTransactionPosted:
			posted++
		case domain.EventTypeBalanceChanged:
			balanceChanged++
		}
	}
	if posted != 1 {
		t.Errorf("expected 1 transaction.posted event, got %d", posted)
	}
	if balanceChanged != 2 {
		t.Errorf("expected 2 balance.changed events, got %d", balanceChanged)
	}
}

func TestJournalUseCase_RecordTransaction_Idempotent(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	first, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(100), true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(100), true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected the original transaction back, got %s and %s", first.ID, second.ID)
	}

	// The duplicate applied no second posting.
	if got := f.balance(t, "acc-cash"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected cash balance 100 after duplicate, got %s", got)
	}
}

func TestJournalUseCase_PostTransaction(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	draft, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(40), false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Status != domain.TransactionStatusDraft {
		t.Fatalf("expected draft status, got %s", draft.Status)
	}
	if !f.balance(t, "acc-cash").IsZero() {
		t.Error("draft transaction changed balances")
	}

	posted, err := f.uc.PostTransaction(ctx, draft.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if posted.Status != domain.TransactionStatusPosted {
		t.Errorf("expected posted status, got %s", posted.Status)
	}
	if got := f.balance(t, "acc-cash"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected cash balance 40, got %s", got)
	}

	// Re-posting is a no-op returning the original result.
	again, err := f.uc.PostTransaction(ctx, draft.ID)
	if err != nil {
		t.Fatalf("unexpected error on re-post: %v", err)
	}
	if again.ID != posted.ID {
		t.Errorf("expected original transaction, got %s", again.ID)
	}
	if got := f.balance(t, "acc-cash"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("expected cash balance unchanged at 40, got %s", got)
	}

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := f.uc.PostTransaction(ctx, "missing")
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			t.Errorf("expected ErrTransactionNotFound, got %v", err)
		}
	})
}

func TestJournalUseCase_PostTransaction_ClosedAccount(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	draft, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(10), false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The account closes between draft and post.
	cash, _ := f.accRepo.GetByID(ctx, "acc-cash")
	cash.Status = domain.AccountStatusClosed

	if _, err := f.uc.PostTransaction(ctx, draft.ID); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for closed account, got %v", err)
	}
	if !f.balance(t, "acc-rev").IsZero() {
		t.Error("failed post changed balances")
	}
}

func TestJournalUseCase_ReverseTransaction(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	original, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(75), true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reversal, err := f.uc.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID: original.ID,
		Reason:        "customer refund",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if reversal.ReversalOfID == nil || *reversal.ReversalOfID != original.ID {
		t.Error("reversal is not linked to the original")
	}
	if original.ReversedByID == nil || *original.ReversedByID != reversal.ID {
		t.Error("original is not linked to the reversal")
	}
	if original.Status != domain.TransactionStatusReversed {
		t.Errorf("expected original status reversed, got %s", original.Status)
	}

	// Entry sides are swapped one for one.
	for i, e := range reversal.Entries {
		if e.Kind != original.Entries[i].Kind.Opposite() {
			t.Errorf("entry %d: expected kind %s, got %s", i, original.Entries[i].Kind.Opposite(), e.Kind)
		}
		if !e.Amount.Equal(original.Entries[i].Amount) {
			t.Errorf("entry %d: amount changed in reversal", i)
		}
	}

	// Balances return to their pre-transaction state.
	if !f.balance(t, "acc-cash").IsZero() || !f.balance(t, "acc-rev").IsZero() {
		t.Errorf("expected zero balances after reversal, got cash=%s rev=%s",
			f.balance(t, "acc-cash"), f.balance(t, "acc-rev"))
	}

	t.Run("second reversal rejected", func(t *testing.T) {
		_, err := f.uc.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
			TransactionID: original.ID,
			Reason:        "again",
		})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("draft cannot be reversed", func(t *testing.T) {
		draft, err := f.uc.RecordTransaction(ctx, saleInput("ord-2", decimal.NewFromInt(5), false))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err = f.uc.ReverseTransaction(ctx, usecase.ReverseTransactionInput{TransactionID: draft.ID, Reason: "no"})
		if !errors.Is(err, domain.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

// A detected imbalance fences off new postings in the affected currency
// until the hold is released.
func TestJournalUseCase_ImbalanceHoldBlocksPostings(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	balanceUC := usecase.NewBalanceUseCase(
		f.accRepo, f.entryRepo, mocks.NewMockSnapshotRepository(), f.auditRepo,
		mocks.NewMockCache(), mocks.NewMockIDGenerator(), f.guard,
	)

	// Corrupted store: deltas no longer cancel out.
	f.entryRepo.SumSignedDeltasFunc = func(ctx context.Context, accountID string, after, until time.Time) (decimal.Decimal, error) {
		if accountID == "acc-cash" {
			return decimal.NewFromInt(100), nil
		}
		return decimal.NewFromInt(90), nil
	}

	if _, err := balanceUC.GetTrialBalance(ctx, time.Now().UTC(), "USD"); !errors.Is(err, domain.ErrImbalance) {
		t.Fatalf("expected ErrImbalance, got %v", err)
	}

	_, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(10), true))
	if !errors.Is(err, domain.ErrIntegrityHold) {
		t.Fatalf("expected ErrIntegrityHold, got %v", err)
	}
	if !f.balance(t, "acc-cash").IsZero() {
		t.Error("blocked posting changed balances")
	}

	// Releasing the hold reopens the currency.
	f.guard.Release("USD")
	if _, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(10), true)); err != nil {
		t.Fatalf("unexpected error after release: %v", err)
	}
}

// Every store write path runs through the transient-failure retrier.
func TestJournalUseCase_WritesRunThroughRetrier(t *testing.T) {
	f := newJournalFixture()
	ctx := context.Background()

	draft, err := f.uc.RecordTransaction(ctx, saleInput("ord-1", decimal.NewFromInt(20), false))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.uc.PostTransaction(ctx, draft.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.uc.ReverseTransaction(ctx, usecase.ReverseTransactionInput{
		TransactionID: draft.ID,
		Reason:        "undo",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.retrier.Calls(); got != 3 {
		t.Errorf("expected 3 store operations through the retrier, got %d", got)
	}
}

// Concurrent unit postings against the same accounts must serialize: with N
// postings of 1 each, the final balance is exactly N.
func TestJournalUseCase_ConcurrentPostings(t *testing.T) {
	f := newJournalFixture()
	f.txMgr.Serialize = true

	const n = 50

	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := f.uc.RecordTransaction(context.Background(),
				saleInput(fmt.Sprintf("ord-%d", i), decimal.NewFromInt(1), true))
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	want := decimal.NewFromInt(n)
	if got := f.balance(t, "acc-cash"); !got.Equal(want) {
		t.Errorf("expected cash balance %s, got %s", want, got)
	}
	if got := f.balance(t, "acc-rev"); !got.Equal(want) {
		t.Errorf("expected revenue balance %s, got %s", want, got)
	}
}
