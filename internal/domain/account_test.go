package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccountNormalSide(t *testing.T) {
	liability := AccountTypeLiability
	asset := AccountTypeAsset

	tests := []struct {
		name    string
		account Account
		want    EntryKind
	}{
		{name: "asset is debit-normal", account: Account{Type: AccountTypeAsset}, want: EntryKindDebit},
		{name: "expense is debit-normal", account: Account{Type: AccountTypeExpense}, want: EntryKindDebit},
		{name: "liability is credit-normal", account: Account{Type: AccountTypeLiability}, want: EntryKindCredit},
		{name: "equity is credit-normal", account: Account{Type: AccountTypeEquity}, want: EntryKindCredit},
		{name: "revenue is credit-normal", account: Account{Type: AccountTypeRevenue}, want: EntryKindCredit},
		{name: "orphan contra is credit-normal", account: Account{Type: AccountTypeContra}, want: EntryKindCredit},
		{
			name:    "contra under liability flips to debit",
			account: Account{Type: AccountTypeContra, ParentType: &liability},
			want:    EntryKindDebit,
		},
		{
			name:    "contra under asset flips to credit",
			account: Account{Type: AccountTypeContra, ParentType: &asset},
			want:    EntryKindCredit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.NormalSide(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestAccountSignedDelta(t *testing.T) {
	cash := Account{Type: AccountTypeAsset}
	deposits := Account{Type: AccountTypeLiability}
	amount := decimal.NewFromInt(100)

	if got := cash.SignedDelta(EntryKindDebit, amount); !got.Equal(amount) {
		t.Errorf("debit to asset should be +100, got %s", got)
	}

	if got := cash.SignedDelta(EntryKindCredit, amount); !got.Equal(amount.Neg()) {
		t.Errorf("credit to asset should be -100, got %s", got)
	}

	if got := deposits.SignedDelta(EntryKindCredit, amount); !got.Equal(amount) {
		t.Errorf("credit to liability should be +100, got %s", got)
	}
}

func TestAccountCanClose(t *testing.T) {
	tests := []struct {
		name    string
		account Account
		wantErr error
	}{
		{
			name:    "open zero balance",
			account: Account{Status: AccountStatusOpen, Balance: decimal.Zero},
		},
		{
			name:    "nonzero balance",
			account: Account{Status: AccountStatusOpen, Balance: decimal.NewFromInt(5)},
			wantErr: ErrNonZeroBalance,
		},
		{
			name:    "already closed",
			account: Account{Status: AccountStatusClosed, Balance: decimal.Zero},
			wantErr: ErrAccountClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.CanClose()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccountTypeValid(t *testing.T) {
	for _, typ := range []AccountType{
		AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
		AccountTypeRevenue, AccountTypeExpense, AccountTypeContra,
	} {
		if !typ.Valid() {
			t.Errorf("%s should be valid", typ)
		}
	}

	if AccountType("bogus").Valid() {
		t.Error("bogus type should be invalid")
	}
}
