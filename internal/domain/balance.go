package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot caches an account balance at a point in time. It is an
// optimization, never authoritative: recomputing from the full entry history
// must produce the same value.
type BalanceSnapshot struct {
	ID        string
	AccountID string
	Balance   decimal.Decimal
	AsOf      time.Time
	CreatedAt time.Time
}

// TrialBalanceRow is one account line in a trial balance report.
type TrialBalanceRow struct {
	AccountID   string
	AccountCode string
	AccountName string
	AccountType AccountType
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// TrialBalance is a point-in-time report asserting total debit-side balances
// equal total credit-side balances.
type TrialBalance struct {
	AsOf        time.Time
	Currency    string
	Rows        []TrialBalanceRow
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

// Balanced reports whether debits equal credits.
func (tb *TrialBalance) Balanced() bool {
	return tb.TotalDebit.Equal(tb.TotalCredit)
}

// Discrepancy is one reconciliation finding: an account whose recorded
// balance disagrees with the expected value.
type Discrepancy struct {
	AccountID   string
	AccountCode string
	Expected    decimal.Decimal
	Actual      decimal.Decimal
	Detail      string
}

// BalanceSheetItem is one account with its children rolled up.
type BalanceSheetItem struct {
	AccountID   string
	AccountCode string
	AccountName string
	Balance     decimal.Decimal
	Children    []BalanceSheetItem
}

// BalanceSheetSection groups top-level accounts of one type.
type BalanceSheetSection struct {
	Type  AccountType
	Items []BalanceSheetItem
	Total decimal.Decimal
}

// BalanceSheet is the hierarchy-rolled-up balance report.
type BalanceSheet struct {
	AsOf     time.Time
	Currency string
	Sections []BalanceSheetSection
}
