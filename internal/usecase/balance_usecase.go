package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// BalanceUseCase computes balances, trial balances and reconciliation
// reports. Reads only ever see posted entries.
type BalanceUseCase struct {
	auditRecorder

	accountRepo  AccountRepository
	entryRepo    EntryRepository
	snapshotRepo SnapshotRepository
	cache        Cache
	guard        *IntegrityGuard
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	accountRepo AccountRepository,
	entryRepo EntryRepository,
	snapshotRepo SnapshotRepository,
	auditRepo AuditRepository,
	cache Cache,
	idGen IDGenerator,
	guard *IntegrityGuard,
) *BalanceUseCase {
	return &BalanceUseCase{
		auditRecorder: auditRecorder{auditRepo: auditRepo, idGen: idGen},
		accountRepo:   accountRepo,
		entryRepo:     entryRepo,
		snapshotRepo:  snapshotRepo,
		cache:         cache,
		guard:         guard,
	}
}

// GetAccountBalance returns the signed balance of an account as of a point
// in time: the nearest snapshot at or before asOf plus the signed deltas of
// entries posted after it. The result must equal a full-history
// recomputation.
func (uc *BalanceUseCase) GetAccountBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	if _, err := uc.accountRepo.GetByID(ctx, accountID); err != nil {
		return decimal.Zero, err
	}

	if cached, ok := uc.cachedBalance(ctx, accountID, asOf); ok {
		return cached, nil
	}

	balance, err := uc.balanceAt(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	uc.cacheBalance(ctx, accountID, asOf, balance)

	return balance, nil
}

func (uc *BalanceUseCase) balanceAt(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	snapshot, err := uc.snapshotRepo.Latest(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	base := decimal.Zero

	var after time.Time
	if snapshot != nil {
		base = snapshot.Balance
		after = snapshot.AsOf
	}

	delta, err := uc.entryRepo.SumSignedDeltas(ctx, accountID, after, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	return base.Add(delta), nil
}

// RecomputeBalance replays the full entry history, bypassing snapshots. Used
// by reconciliation and drift tests.
func (uc *BalanceUseCase) RecomputeBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error) {
	return uc.entryRepo.SumSignedDeltas(ctx, accountID, time.Time{}, asOf)
}

// GetTrialBalance sums balances grouped by account type for one currency.
// An imbalance between the debit-normal and credit-normal totals is a fatal
// data-integrity condition: it is audited and returned as ErrImbalance.
func (uc *BalanceUseCase) GetTrialBalance(ctx context.Context, asOf time.Time, currency string) (*domain.TrialBalance, error) {
	accounts, err := uc.accountRepo.ListByCurrency(ctx, currency)
	if err != nil {
		return nil, err
	}

	tb := &domain.TrialBalance{
		AsOf:        asOf,
		Currency:    currency,
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}

	for _, account := range accounts {
		balance, err := uc.balanceAt(ctx, account.ID, asOf)
		if err != nil {
			return nil, err
		}

		row := domain.TrialBalanceRow{
			AccountID:   account.ID,
			AccountCode: account.Code,
			AccountName: account.Name,
			AccountType: account.Type,
			Debit:       decimal.Zero,
			Credit:      decimal.Zero,
		}

		// A negative normal-side balance lands on the opposite column.
		side := account.NormalSide()
		if balance.IsNegative() {
			side = side.Opposite()
			balance = balance.Neg()
		}

		if side == domain.EntryKindDebit {
			row.Debit = balance
			tb.TotalDebit = tb.TotalDebit.Add(balance)
		} else {
			row.Credit = balance
			tb.TotalCredit = tb.TotalCredit.Add(balance)
		}

		tb.Rows = append(tb.Rows, row)
	}

	sort.Slice(tb.Rows, func(i, j int) bool { return tb.Rows[i].AccountCode < tb.Rows[j].AccountCode })

	if !tb.Balanced() {
		err := fmt.Errorf("%w: debits %s, credits %s as of %s",
			domain.ErrImbalance, tb.TotalDebit, tb.TotalCredit, asOf.Format(time.RFC3339))
		uc.record(ctx, domain.AuditActionImbalance, domain.AggregateTypeAccount, currency, nil, tb, err)

		// Postings in the affected currency stay blocked until an operator
		// repairs the records and releases the hold.
		scope := currency
		if scope == "" {
			scope = ScopeAll
		}
		uc.guard.Hold(scope, err.Error())

		return nil, err
	}

	return tb, nil
}

// ReconcileAccounts compares cached balances against full-history
// recomputation and parent balances against the sum of their children.
// Read-only: discrepancies are reported, never repaired in place.
func (uc *BalanceUseCase) ReconcileAccounts(ctx context.Context, scope string) ([]domain.Discrepancy, error) {
	var (
		accounts []*domain.Account
		err      error
	)

	if scope == "" {
		limit, offset := domain.ValidatePagination(10000, 0)
		accounts, err = uc.accountRepo.List(ctx, limit, offset)
	} else {
		accounts, err = uc.accountRepo.ListByCodePrefix(ctx, scope)
	}

	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Account, len(accounts))
	children := make(map[string][]*domain.Account)

	for _, a := range accounts {
		byID[a.ID] = a
	}

	for _, a := range accounts {
		if a.ParentID != nil {
			children[*a.ParentID] = append(children[*a.ParentID], a)
		}
	}

	now := time.Now().UTC()
	discrepancies := make([]domain.Discrepancy, 0)
	recomputed := make(map[string]decimal.Decimal, len(accounts))

	for _, account := range accounts {
		replayed, err := uc.RecomputeBalance(ctx, account.ID, now)
		if err != nil {
			return nil, err
		}

		recomputed[account.ID] = replayed

		if !replayed.Equal(account.Balance) {
			discrepancies = append(discrepancies, domain.Discrepancy{
				AccountID:   account.ID,
				AccountCode: account.Code,
				Expected:    replayed,
				Actual:      account.Balance,
				Detail:      "cached balance drifted from entry history",
			})
		}
	}

	// Hierarchy check: a parent's subtree rollup of cached balances must
	// equal the same rollup over replayed entry history.
	for _, account := range accounts {
		if len(children[account.ID]) == 0 {
			continue
		}

		cached := uc.rollup(account, children, func(a *domain.Account) decimal.Decimal { return a.Balance })
		replayed := uc.rollup(account, children, func(a *domain.Account) decimal.Decimal { return recomputed[a.ID] })

		if !cached.Equal(replayed) {
			discrepancies = append(discrepancies, domain.Discrepancy{
				AccountID:   account.ID,
				AccountCode: account.Code,
				Expected:    replayed,
				Actual:      cached,
				Detail:      "subtree rollup does not match entry history",
			})
		}
	}

	return discrepancies, nil
}

func (uc *BalanceUseCase) rollup(account *domain.Account, children map[string][]*domain.Account, balance func(*domain.Account) decimal.Decimal) decimal.Decimal {
	total := balance(account)
	for _, child := range children[account.ID] {
		total = total.Add(uc.rollup(child, children, balance))
	}

	return total
}

// GetBalanceSheet returns balances grouped by account type and rolled up
// through the account hierarchy.
func (uc *BalanceUseCase) GetBalanceSheet(ctx context.Context, asOf time.Time, currency string) (*domain.BalanceSheet, error) {
	accounts, err := uc.accountRepo.ListByCurrency(ctx, currency)
	if err != nil {
		return nil, err
	}

	balances := make(map[string]decimal.Decimal, len(accounts))
	children := make(map[string][]*domain.Account)

	var roots []*domain.Account

	for _, a := range accounts {
		balance, err := uc.balanceAt(ctx, a.ID, asOf)
		if err != nil {
			return nil, err
		}

		balances[a.ID] = balance

		if a.ParentID == nil {
			roots = append(roots, a)
		} else {
			children[*a.ParentID] = append(children[*a.ParentID], a)
		}
	}

	sheet := &domain.BalanceSheet{AsOf: asOf, Currency: currency}
	byType := make(map[domain.AccountType][]domain.BalanceSheetItem)
	totals := make(map[domain.AccountType]decimal.Decimal)

	var build func(a *domain.Account) domain.BalanceSheetItem
	build = func(a *domain.Account) domain.BalanceSheetItem {
		item := domain.BalanceSheetItem{
			AccountID:   a.ID,
			AccountCode: a.Code,
			AccountName: a.Name,
			Balance:     balances[a.ID],
		}

		kids := children[a.ID]
		sort.Slice(kids, func(i, j int) bool { return kids[i].Code < kids[j].Code })

		for _, child := range kids {
			childItem := build(child)
			item.Balance = item.Balance.Add(childItem.Balance)
			item.Children = append(item.Children, childItem)
		}

		return item
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Code < roots[j].Code })

	for _, root := range roots {
		item := build(root)
		byType[root.Type] = append(byType[root.Type], item)
		totals[root.Type] = totals[root.Type].Add(item.Balance)
	}

	for _, typ := range []domain.AccountType{
		domain.AccountTypeAsset, domain.AccountTypeLiability, domain.AccountTypeEquity,
		domain.AccountTypeRevenue, domain.AccountTypeExpense, domain.AccountTypeContra,
	} {
		items, ok := byType[typ]
		if !ok {
			continue
		}

		sheet.Sections = append(sheet.Sections, domain.BalanceSheetSection{
			Type:  typ,
			Items: items,
			Total: totals[typ],
		})
	}

	return sheet, nil
}

type cachedBalance struct {
	Balance string    `json:"balance"`
	AsOf    time.Time `json:"as_of"`
}

// cachedBalance only serves current-time reads: historical as-of queries go
// straight to the store.
func (uc *BalanceUseCase) cachedBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, bool) {
	if uc.cache == nil || !currentRead(asOf) {
		return decimal.Zero, false
	}

	raw, err := uc.cache.Get(ctx, balanceCacheKey(accountID))
	if err != nil || raw == nil {
		return decimal.Zero, false
	}

	var cb cachedBalance
	if err := json.Unmarshal(raw, &cb); err != nil {
		return decimal.Zero, false
	}

	balance, err := decimal.NewFromString(cb.Balance)
	if err != nil {
		return decimal.Zero, false
	}

	return balance, true
}

func (uc *BalanceUseCase) cacheBalance(ctx context.Context, accountID string, asOf time.Time, balance decimal.Decimal) {
	if uc.cache == nil || !currentRead(asOf) {
		return
	}

	raw, err := json.Marshal(cachedBalance{Balance: balance.String(), AsOf: asOf})
	if err != nil {
		return
	}

	_ = uc.cache.Set(ctx, balanceCacheKey(accountID), raw, BalanceCacheTTL)
}

func currentRead(asOf time.Time) bool {
	return time.Since(asOf) < time.Second && time.Until(asOf) < time.Second
}
