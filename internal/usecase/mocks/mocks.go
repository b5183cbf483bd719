package mocks

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

// MockAccountRepository is a map-backed mock of AccountRepository.
type MockAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account

	CreateFunc            func(ctx context.Context, account *domain.Account) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.Account, error)
	GetByCodeFunc         func(ctx context.Context, code string) (*domain.Account, error)
	GetByIDsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error)
	UpdateBalanceFunc     func(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error
	HasPostingsFunc       func(ctx context.Context, id string) (bool, error)
}

func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{accounts: make(map[string]*domain.Account)}
}

// Seed stores an account directly, bypassing hooks.
func (m *MockAccountRepository) Seed(account *domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	return m.Create(ctx, account)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[id]; ok {
		return acc, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByCode(ctx context.Context, code string) (*domain.Account, error) {
	if m.GetByCodeFunc != nil {
		return m.GetByCodeFunc(ctx, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, acc := range m.accounts {
		if acc.Code == code {
			return acc, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	if m.GetByIDsForUpdateFunc != nil {
		return m.GetByIDsForUpdateFunc(ctx, tx, ids)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, id := range ids {
		if acc, ok := m.accounts[id]; ok {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance decimal.Decimal, version int64, updatedAt time.Time) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, tx, id, balance, version, updatedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		acc.Balance = balance
		acc.Version = version
		acc.UpdatedAt = updatedAt
	}
	return nil
}

func (m *MockAccountRepository) Update(ctx context.Context, account *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *MockAccountRepository) Close(ctx context.Context, tx usecase.Transaction, id string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[id]; ok {
		acc.Status = domain.AccountStatusClosed
		acc.ClosedAt = &closedAt
	}
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*domain.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		accounts = append(accounts, acc)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	if offset >= len(accounts) {
		return nil, nil
	}
	end := offset + limit
	if end > len(accounts) {
		end = len(accounts)
	}
	return accounts[offset:end], nil
}

func (m *MockAccountRepository) ListByCurrency(ctx context.Context, currency string) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		if acc.Currency == currency {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (m *MockAccountRepository) ListChildren(ctx context.Context, parentID string) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		if acc.ParentID != nil && *acc.ParentID == parentID {
			accounts = append(accounts, acc)
		}
	}
	return accounts, nil
}

func (m *MockAccountRepository) ListByCodePrefix(ctx context.Context, prefix string) ([]*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var accounts []*domain.Account
	for _, acc := range m.accounts {
		if strings.HasPrefix(acc.Code, prefix) {
			accounts = append(accounts, acc)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
	return accounts, nil
}

func (m *MockAccountRepository) HasPostings(ctx context.Context, id string) (bool, error) {
	if m.HasPostingsFunc != nil {
		return m.HasPostingsFunc(ctx, id)
	}
	return false, nil
}

// MockTransactionRepository is a map-backed mock of TransactionRepository.
type MockTransactionRepository struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	bySource     map[string]*domain.Transaction

	CreateFunc      func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
	GetBySourceFunc func(ctx context.Context, sourceService, sourceReference string) (*domain.Transaction, error)
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		transactions: make(map[string]*domain.Transaction),
		bySource:     make(map[string]*domain.Transaction),
	}
}

func sourceKey(service, reference string) string {
	return service + "|" + reference
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[txn.ID] = txn
	m.bySource[sourceKey(txn.SourceService, txn.SourceReference)] = txn
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.transactions[id]; ok {
		return txn, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Transaction, error) {
	return m.GetByID(ctx, id)
}

func (m *MockTransactionRepository) GetBySource(ctx context.Context, sourceService, sourceReference string) (*domain.Transaction, error) {
	if m.GetBySourceFunc != nil {
		return m.GetBySourceFunc(ctx, sourceService, sourceReference)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if txn, ok := m.bySource[sourceKey(sourceService, sourceReference)]; ok {
		return txn, nil
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) MarkPosted(ctx context.Context, tx usecase.Transaction, id string, postedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn, ok := m.transactions[id]; ok {
		txn.Status = domain.TransactionStatusPosted
		txn.PostedAt = &postedAt
	}
	return nil
}

func (m *MockTransactionRepository) MarkReversed(ctx context.Context, tx usecase.Transaction, id, reversedByID, reason string, reversedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn, ok := m.transactions[id]; ok {
		txn.Status = domain.TransactionStatusReversed
		txn.ReversedByID = &reversedByID
		txn.ReversalReason = reason
		txn.ReversedAt = &reversedAt
	}
	return nil
}

func (m *MockTransactionRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.Transaction
	for _, txn := range m.transactions {
		for _, e := range txn.Entries {
			if e.AccountID == accountID {
				txns = append(txns, txn)
				break
			}
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, nil
}

// MockEntryRepository is a mock of EntryRepository. Entries become visible
// to SumSignedDeltas once UpdateSignedAmounts marks them posted.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries []domain.JournalEntry
	posted  map[string]bool

	SumSignedDeltasFunc func(ctx context.Context, accountID string, after, until time.Time) (decimal.Decimal, error)
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{posted: make(map[string]bool)}
}

func (m *MockEntryRepository) CreateBatch(ctx context.Context, tx usecase.Transaction, entries []domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *MockEntryRepository) UpdateSignedAmounts(ctx context.Context, tx usecase.Transaction, entries []domain.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, updated := range entries {
		m.posted[updated.ID] = true
		for i := range m.entries {
			if m.entries[i].ID == updated.ID {
				m.entries[i].SignedAmount = updated.SignedAmount
			}
		}
	}
	return nil
}

func (m *MockEntryRepository) GetByTransaction(ctx context.Context, transactionID string) ([]domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []domain.JournalEntry
	for _, e := range m.entries {
		if e.TransactionID == transactionID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MockEntryRepository) GetByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.JournalEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []domain.JournalEntry
	for _, e := range m.entries {
		if e.AccountID == accountID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MockEntryRepository) SumSignedDeltas(ctx context.Context, accountID string, after, until time.Time) (decimal.Decimal, error) {
	if m.SumSignedDeltasFunc != nil {
		return m.SumSignedDeltasFunc(ctx, accountID, after, until)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.AccountID != accountID || !m.posted[e.ID] {
			continue
		}
		if !after.IsZero() && !e.CreatedAt.After(after) {
			continue
		}
		if e.CreatedAt.After(until) {
			continue
		}
		sum = sum.Add(e.SignedAmount)
	}
	return sum, nil
}

// MockSnapshotRepository is a mock of SnapshotRepository.
type MockSnapshotRepository struct {
	mu        sync.RWMutex
	snapshots []*domain.BalanceSnapshot
}

func NewMockSnapshotRepository() *MockSnapshotRepository {
	return &MockSnapshotRepository{}
}

func (m *MockSnapshotRepository) Create(ctx context.Context, tx usecase.Transaction, snapshot *domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *MockSnapshotRepository) Latest(ctx context.Context, accountID string, asOf time.Time) (*domain.BalanceSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.BalanceSnapshot
	for _, s := range m.snapshots {
		if s.AccountID != accountID || s.AsOf.After(asOf) {
			continue
		}
		if latest == nil || s.AsOf.After(latest.AsOf) {
			latest = s
		}
	}
	return latest, nil
}

// MockOutboxRepository is a mock of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			events = append(events, e)
		}
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
		}
	}
	return nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if !e.Published || e.PublishedAt == nil || !e.PublishedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

// Events returns a snapshot of all stored events.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// MockAuditRepository is a mock of AuditRepository.
type MockAuditRepository struct {
	mu      sync.RWMutex
	records []*domain.AuditRecord
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, record *domain.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, record *domain.AuditRecord) error {
	return m.Create(ctx, record)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.AuditRecord
	for _, r := range m.records {
		if filter.Action != "" && r.Action != filter.Action {
			continue
		}
		records = append(records, r)
	}
	return records, nil
}

func (m *MockAuditRepository) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var records []*domain.AuditRecord
	for _, r := range m.records {
		if r.ResourceType == resourceType && r.ResourceID == resourceID {
			records = append(records, r)
		}
	}
	return records, nil
}

// Records returns a snapshot of all stored records.
func (m *MockAuditRepository) Records() []*domain.AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.AuditRecord(nil), m.records...)
}

// MockSagaRepository is a mock of SagaRepository.
type MockSagaRepository struct {
	mu       sync.RWMutex
	contexts map[string]*domain.TransactionContext
	statuses map[string]domain.ContextStatus
}

func NewMockSagaRepository() *MockSagaRepository {
	return &MockSagaRepository{
		contexts: make(map[string]*domain.TransactionContext),
		statuses: make(map[string]domain.ContextStatus),
	}
}

func (m *MockSagaRepository) CreateContext(ctx context.Context, tc *domain.TransactionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[tc.ID] = tc
	m.statuses[tc.ID] = tc.Status
	return nil
}

func (m *MockSagaRepository) AppendOperation(ctx context.Context, contextID string, op *domain.SagaOperation) error {
	return nil
}

func (m *MockSagaRepository) UpdateStatus(ctx context.Context, contextID string, status domain.ContextStatus, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[contextID] = status
	return nil
}

// Status returns the last persisted status for a context.
func (m *MockSagaRepository) Status(contextID string) domain.ContextStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statuses[contextID]
}

// MockTransaction is a mock store transaction.
type MockTransaction struct {
	release sync.Once
	unlock  func()

	Committed  bool
	RolledBack bool
}

func (t *MockTransaction) Commit(ctx context.Context) error {
	t.Committed = true
	if t.unlock != nil {
		t.release.Do(t.unlock)
	}
	return nil
}

func (t *MockTransaction) Rollback(ctx context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	if t.unlock != nil {
		t.release.Do(t.unlock)
	}
	return nil
}

// MockTransactionManager is a mock of TransactionManager. With Serialize
// set, Begin blocks until the previous transaction commits or rolls back,
// emulating store-level locking.
type MockTransactionManager struct {
	Serialize bool
	mu        sync.Mutex

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	if !m.Serialize {
		return &MockTransaction{}, nil
	}
	m.mu.Lock()
	return &MockTransaction{unlock: m.mu.Unlock}, nil
}

// MockRetrier runs each operation once and counts invocations.
type MockRetrier struct {
	mu    sync.Mutex
	calls int
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return operation()
}

// Calls returns how many operations ran through the retrier.
func (m *MockRetrier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockIDGenerator generates sequential IDs.
type MockIDGenerator struct {
	mu      sync.Mutex
	counter int

	GenerateFunc func() string
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("id-%06d", m.counter)
}

// MockCache is a map-backed mock of Cache.
type MockCache struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.items[key], nil
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// MockCollaborator is a scriptable mock of Collaborator that records the
// order of calls.
type MockCollaborator struct {
	mu          sync.Mutex
	Executed    []string
	Compensated []string

	ExecuteFunc    func(ctx context.Context, operation string, payload map[string]any) (map[string]any, error)
	CompensateFunc func(ctx context.Context, operation string, compensation map[string]any) error
}

func NewMockCollaborator() *MockCollaborator {
	return &MockCollaborator{}
}

func (m *MockCollaborator) Execute(ctx context.Context, operation string, payload map[string]any) (map[string]any, error) {
	m.mu.Lock()
	m.Executed = append(m.Executed, operation)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, operation, payload)
	}
	return nil, nil
}

func (m *MockCollaborator) Compensate(ctx context.Context, operation string, compensation map[string]any) error {
	m.mu.Lock()
	m.Compensated = append(m.Compensated, operation)
	m.mu.Unlock()
	if m.CompensateFunc != nil {
		return m.CompensateFunc(ctx, operation, compensation)
	}
	return nil
}
