package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// JournalUseCase validates and posts double-entry transactions.
type JournalUseCase struct {
	auditRecorder

	txManager    TransactionManager
	accountRepo  AccountRepository
	txnRepo      TransactionRepository
	entryRepo    EntryRepository
	snapshotRepo SnapshotRepository
	outboxRepo   OutboxRepository
	cache        Cache
	idGen        IDGenerator
	guard        *IntegrityGuard
	retrier      Retrier
}

// NewJournalUseCase creates a new JournalUseCase.
func NewJournalUseCase(
	txManager TransactionManager,
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	entryRepo EntryRepository,
	snapshotRepo SnapshotRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	cache Cache,
	idGen IDGenerator,
	guard *IntegrityGuard,
	retrier Retrier,
) *JournalUseCase {
	return &JournalUseCase{
		auditRecorder: auditRecorder{auditRepo: auditRepo, idGen: idGen},
		txManager:     txManager,
		accountRepo:   accountRepo,
		txnRepo:       txnRepo,
		entryRepo:     entryRepo,
		snapshotRepo:  snapshotRepo,
		outboxRepo:    outboxRepo,
		cache:         cache,
		idGen:         idGen,
		guard:         guard,
		retrier:       retrier,
	}
}

// withRetry runs a store operation through the configured retrier, which
// replays deadlock and serialization failures. Replays are safe: the source
// key makes recordTransaction idempotent and re-posting is a no-op.
func (uc *JournalUseCase) withRetry(ctx context.Context, op func() error) error {
	if uc.retrier == nil {
		return op()
	}

	return uc.retrier.Retry(ctx, op)
}

// EntryInput is one requested journal entry line.
type EntryInput struct {
	AccountID   string
	Kind        domain.EntryKind
	Amount      decimal.Decimal
	Description string
}

// RecordTransactionInput represents input for recording a transaction.
// (SourceService, SourceReference) is the caller's idempotency key.
type RecordTransactionInput struct {
	Type            string
	Description     string
	Currency        string
	Entries         []EntryInput
	SourceService   string
	SourceReference string
	AutoPost        bool
}

// RecordTransaction validates the entries and creates a draft transaction,
// or posts it immediately when AutoPost is set. Validation failures make no
// balance changes. A repeated call with the same source key returns the
// original transaction.
func (uc *JournalUseCase) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*domain.Transaction, error) {
	var txn *domain.Transaction

	err := uc.withRetry(ctx, func() error {
		var err error
		txn, err = uc.recordTransaction(ctx, input)

		return err
	})

	resourceID := input.SourceReference
	if txn != nil {
		resourceID = txn.ID
	}

	uc.record(ctx, domain.AuditActionTransactionRecord, domain.AggregateTypeTransaction, resourceID, nil, txn, err)

	return txn, err
}

func (uc *JournalUseCase) recordTransaction(ctx context.Context, input RecordTransactionInput) (*domain.Transaction, error) {
	if input.SourceService == "" || input.SourceReference == "" {
		return nil, fmt.Errorf("%w: source_service and source_reference are required", domain.ErrValidation)
	}

	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Idempotency: a repeated request returns the original result.
	existing, err := uc.txnRepo.GetBySource(ctx, input.SourceService, input.SourceReference)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	// Replays above make no new postings; everything past this point does.
	if err := uc.guard.Check(input.Currency); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txnID := uc.idGen.Generate()

	entries := make([]domain.JournalEntry, 0, len(input.Entries))
	for i, e := range input.Entries {
		if err := domain.ValidateAmount(e.Amount); err != nil {
			return nil, err
		}

		entries = append(entries, domain.JournalEntry{
			ID:            uc.idGen.Generate(),
			TransactionID: txnID,
			AccountID:     e.AccountID,
			Kind:          e.Kind,
			Amount:        e.Amount,
			Currency:      input.Currency,
			Sequence:      int32(i + 1),
			Description:   e.Description,
			CreatedAt:     now,
		})
	}

	txn := &domain.Transaction{
		ID:              txnID,
		Type:            input.Type,
		Description:     input.Description,
		Status:          domain.TransactionStatusDraft,
		Currency:        input.Currency,
		Entries:         entries,
		SourceService:   input.SourceService,
		SourceReference: input.SourceReference,
		CreatedAt:       now,
	}

	if err := txn.Validate(); err != nil {
		return nil, err
	}

	if err := uc.validateAccounts(ctx, txn); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := uc.entryRepo.CreateBatch(ctx, tx, txn.Entries); err != nil {
		return nil, err
	}

	if input.AutoPost {
		if err := uc.postLocked(ctx, tx, txn, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if input.AutoPost {
		uc.invalidateBalances(ctx, txn)
	}

	return txn, nil
}

// validateAccounts checks that every referenced account exists, is open and
// carries the transaction currency. Read-only, outside the posting lock.
func (uc *JournalUseCase) validateAccounts(ctx context.Context, txn *domain.Transaction) error {
	seen := make(map[string]bool, len(txn.Entries))

	for _, e := range txn.Entries {
		if seen[e.AccountID] {
			continue
		}

		seen[e.AccountID] = true

		account, err := uc.accountRepo.GetByID(ctx, e.AccountID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return fmt.Errorf("%w: account %s does not exist", domain.ErrValidation, e.AccountID)
			}

			return err
		}

		if !account.IsOpen() {
			return fmt.Errorf("%w: account %s is closed", domain.ErrValidation, account.Code)
		}

		if account.Currency != txn.Currency {
			return fmt.Errorf("%w: account %s currency %s does not match transaction currency %s",
				domain.ErrValidation, account.Code, account.Currency, txn.Currency)
		}
	}

	return nil
}

// PostTransaction transitions a draft transaction to posted, atomically
// updating every touched account balance and writing fresh balance
// snapshots. Posting an already-posted transaction is a no-op returning the
// original result.
func (uc *JournalUseCase) PostTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var txn *domain.Transaction

	err := uc.withRetry(ctx, func() error {
		var err error
		txn, err = uc.postTransaction(ctx, transactionID)

		return err
	})
	if err != nil {
		// Success is audited inside the store transaction by postLocked.
		uc.record(ctx, domain.AuditActionTransactionPost, domain.AggregateTypeTransaction, transactionID, nil, nil, err)
	}

	return txn, err
}

func (uc *JournalUseCase) postTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}

	if txn.Status == domain.TransactionStatusPosted {
		// Retry after a successful post: return the original result.
		return txn, nil
	}

	if err := uc.guard.Check(txn.Currency); err != nil {
		return nil, err
	}

	if err := txn.CanPost(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := uc.postLocked(ctx, tx, txn, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateBalances(ctx, txn)

	return txn, nil
}

// postLocked applies a transaction inside an open store transaction: locks
// the touched accounts in sorted order, applies signed deltas, snapshots the
// resulting balances and queues outbox events.
func (uc *JournalUseCase) postLocked(ctx context.Context, tx Transaction, txn *domain.Transaction, now time.Time) error {
	accountIDs := uc.collectAccountIDs(txn.Entries)
	sort.Strings(accountIDs)

	accounts, err := uc.accountRepo.GetByIDsForUpdate(ctx, tx, accountIDs)
	if err != nil {
		return err
	}

	if len(accounts) != len(accountIDs) {
		return fmt.Errorf("%w: transaction references a missing account", domain.ErrValidation)
	}

	accountMap := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		if !a.IsOpen() {
			return fmt.Errorf("%w: account %s is closed", domain.ErrValidation, a.Code)
		}

		accountMap[a.ID] = a
	}

	previous := make(map[string]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		previous[a.ID] = a.Balance
	}

	// Apply every entry's signed delta in sequence order.
	for i := range txn.Entries {
		e := &txn.Entries[i]
		account := accountMap[e.AccountID]

		e.SignedAmount = account.SignedDelta(e.Kind, e.Amount)
		account.Balance = account.Balance.Add(e.SignedAmount)
		account.Version++
	}

	if err := uc.entryRepo.UpdateSignedAmounts(ctx, tx, txn.Entries); err != nil {
		return err
	}

	for _, id := range accountIDs {
		account := accountMap[id]

		if err := uc.accountRepo.UpdateBalance(ctx, tx, id, account.Balance, account.Version, now); err != nil {
			return err
		}

		snapshot := &domain.BalanceSnapshot{
			ID:        uc.idGen.Generate(),
			AccountID: id,
			Balance:   account.Balance,
			AsOf:      now,
			CreatedAt: now,
		}

		if err := uc.snapshotRepo.Create(ctx, tx, snapshot); err != nil {
			return err
		}

		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   id,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     domain.EventTypeBalanceChanged,
			Payload: domain.MarshalState(domain.BalanceChangedEvent{
				AccountID:       id,
				AccountCode:     account.Code,
				TransactionID:   txn.ID,
				PreviousBalance: previous[id].String(),
				CurrentBalance:  account.Balance.String(),
				Currency:        account.Currency,
			}),
			CreatedAt: now,
		}

		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := uc.txnRepo.MarkPosted(ctx, tx, txn.ID, now); err != nil {
		return err
	}

	txn.Status = domain.TransactionStatusPosted
	txn.PostedAt = &now

	posted := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   txn.ID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     domain.EventTypeTransactionPosted,
		Payload: domain.MarshalState(domain.TransactionPostedEvent{
			TransactionID:   txn.ID,
			Type:            txn.Type,
			Currency:        txn.Currency,
			TotalAmount:     txn.TotalAmount().String(),
			SourceService:   txn.SourceService,
			SourceReference: txn.SourceReference,
			PostedAt:        now.Format(time.RFC3339Nano),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, posted); err != nil {
		return err
	}

	return uc.recordTx(ctx, tx, domain.AuditActionTransactionPost, domain.AggregateTypeTransaction, txn.ID, nil, txn)
}

// ReverseTransactionInput represents input for reversing a transaction.
type ReverseTransactionInput struct {
	TransactionID string
	Reason        string
}

// ReverseTransaction creates and immediately posts a new transaction with
// every entry's side swapped, linking both records. A posted transaction can
// be reversed exactly once.
// Reversals are not fenced by the integrity guard: undoing a posting is how
// a held scope gets repaired.
func (uc *JournalUseCase) ReverseTransaction(ctx context.Context, input ReverseTransactionInput) (*domain.Transaction, error) {
	var reversal *domain.Transaction

	err := uc.withRetry(ctx, func() error {
		var err error
		reversal, err = uc.reverseTransaction(ctx, input)

		return err
	})

	uc.record(ctx, domain.AuditActionTransactionReverse, domain.AggregateTypeTransaction, input.TransactionID, nil, reversal, err)

	return reversal, err
}

func (uc *JournalUseCase) reverseTransaction(ctx context.Context, input ReverseTransactionInput) (*domain.Transaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	original, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, input.TransactionID)
	if err != nil {
		return nil, err
	}

	if err := original.CanReverse(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reversalID := uc.idGen.Generate()

	entries := make([]domain.JournalEntry, 0, len(original.Entries))
	for i, e := range original.Entries {
		entries = append(entries, domain.JournalEntry{
			ID:            uc.idGen.Generate(),
			TransactionID: reversalID,
			AccountID:     e.AccountID,
			Kind:          e.Kind.Opposite(),
			Amount:        e.Amount,
			Currency:      e.Currency,
			Sequence:      int32(i + 1),
			Description:   fmt.Sprintf("reversal of %s", e.ID),
			CreatedAt:     now,
		})
	}

	reversal := &domain.Transaction{
		ID:              reversalID,
		Type:            original.Type,
		Description:     fmt.Sprintf("reversal of %s: %s", original.ID, input.Reason),
		Status:          domain.TransactionStatusDraft,
		Currency:        original.Currency,
		Entries:         entries,
		SourceService:   original.SourceService,
		SourceReference: original.SourceReference + ":reversal",
		ReversalOfID:    &original.ID,
		ReversalReason:  input.Reason,
		CreatedAt:       now,
	}

	if err := uc.txnRepo.Create(ctx, tx, reversal); err != nil {
		return nil, err
	}

	if err := uc.entryRepo.CreateBatch(ctx, tx, reversal.Entries); err != nil {
		return nil, err
	}

	if err := uc.postLocked(ctx, tx, reversal, now); err != nil {
		return nil, err
	}

	if err := uc.txnRepo.MarkReversed(ctx, tx, original.ID, reversalID, input.Reason, now); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   reversalID,
		AggregateType: domain.AggregateTypeTransaction,
		EventType:     domain.EventTypeTransactionReversed,
		Payload: domain.MarshalState(domain.TransactionReversedEvent{
			ReversalTransactionID: reversalID,
			OriginalTransactionID: original.ID,
			Reason:                input.Reason,
			Currency:              reversal.Currency,
			TotalAmount:           reversal.TotalAmount().String(),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.invalidateBalances(ctx, reversal)

	return reversal, nil
}

// GetTransaction retrieves a transaction with its entries.
func (uc *JournalUseCase) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return uc.txnRepo.GetByID(ctx, id)
}

// ListTransactionsByAccountInput represents input for listing transactions.
type ListTransactionsByAccountInput struct {
	AccountID string
	Limit     int
	Offset    int
}

// ListTransactionsByAccount lists transactions touching an account.
func (uc *JournalUseCase) ListTransactionsByAccount(ctx context.Context, input ListTransactionsByAccountInput) ([]*domain.Transaction, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.txnRepo.ListByAccount(ctx, input.AccountID, limit, offset)
}

func (uc *JournalUseCase) collectAccountIDs(entries []domain.JournalEntry) []string {
	seen := make(map[string]bool, len(entries))

	var ids []string
	for _, e := range entries {
		if !seen[e.AccountID] {
			seen[e.AccountID] = true
			ids = append(ids, e.AccountID)
		}
	}

	return ids
}

func (uc *JournalUseCase) invalidateBalances(ctx context.Context, txn *domain.Transaction) {
	if uc.cache == nil {
		return
	}

	for _, id := range uc.collectAccountIDs(txn.Entries) {
		_ = uc.cache.Delete(ctx, balanceCacheKey(id))
	}
}

func balanceCacheKey(accountID string) string {
	return "balance:" + accountID
}
