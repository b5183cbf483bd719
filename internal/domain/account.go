package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account within the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
	AccountTypeContra    AccountType = "contra"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense, AccountTypeContra:
		return true
	}

	return false
}

// NormalSide returns the entry kind that increases an account of this type.
// Contra accounts are credit-normal; a contra account parented under a
// credit-normal account flips to debit-normal (see Account.NormalSide).
func (t AccountType) NormalSide() EntryKind {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return EntryKindDebit
	default:
		return EntryKindCredit
	}
}

// AccountStatus is the lifecycle status of an account.
type AccountStatus string

const (
	AccountStatusOpen   AccountStatus = "open"
	AccountStatusClosed AccountStatus = "closed"
)

// Account is a node in the chart of accounts. Accounts are soft-closed and
// never physically deleted.
type Account struct {
	ID         string
	Code       string
	Name       string
	Type       AccountType
	ParentID   *string
	ParentType *AccountType
	Currency   string
	Status     AccountStatus
	Balance    decimal.Decimal
	Version    int64
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ClosedAt   *time.Time
}

// NormalSide returns the side that increases this account's balance.
func (a *Account) NormalSide() EntryKind {
	if a.Type == AccountTypeContra && a.ParentType != nil {
		return a.ParentType.NormalSide().Opposite()
	}

	return a.Type.NormalSide()
}

// SignedDelta converts a raw entry into the balance delta for this account:
// positive when the entry is on the account's normal side.
func (a *Account) SignedDelta(kind EntryKind, amount decimal.Decimal) decimal.Decimal {
	if kind == a.NormalSide() {
		return amount
	}

	return amount.Neg()
}

// CanClose checks soft-close preconditions. Child status is the caller's
// responsibility since it requires a repository lookup.
func (a *Account) CanClose() error {
	if a.Status == AccountStatusClosed {
		return ErrAccountClosed
	}

	if !a.Balance.IsZero() {
		return ErrNonZeroBalance
	}

	return nil
}

// IsOpen reports whether the account accepts postings.
func (a *Account) IsOpen() bool {
	return a.Status == AccountStatusOpen
}
