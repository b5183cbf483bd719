package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
	"github.com/iho/finledger/internal/usecase/mocks"
)

func newAccountUseCase(accRepo *mocks.MockAccountRepository) (*usecase.AccountUseCase, *mocks.MockOutboxRepository, *mocks.MockAuditRepository) {
	outboxRepo := mocks.NewMockOutboxRepository()
	auditRepo := mocks.NewMockAuditRepository()

	uc := usecase.NewAccountUseCase(accRepo, outboxRepo, auditRepo, mocks.NewMockTransactionManager(), mocks.NewMockIDGenerator())

	return uc, outboxRepo, auditRepo
}

func strptr(s string) *string { return &s }

func TestAccountUseCase_CreateAccount(t *testing.T) {
	tests := []struct {
		name        string
		input       usecase.CreateAccountInput
		seed        []*domain.Account
		expectError bool
		errorType   error
	}{
		{
			name: "successful create",
			input: usecase.CreateAccountInput{
				Code:     "1000",
				Name:     "Cash",
				Type:     domain.AccountTypeAsset,
				Currency: "USD",
			},
		},
		{
			name: "reject duplicate code",
			input: usecase.CreateAccountInput{
				Code:     "1000",
				Name:     "Cash",
				Type:     domain.AccountTypeAsset,
				Currency: "USD",
			},
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen},
			},
			expectError: true,
			errorType:   domain.ErrDuplicateCode,
		},
		{
			name: "reject malformed code",
			input: usecase.CreateAccountInput{
				Code:     "cash!",
				Name:     "Cash",
				Type:     domain.AccountTypeAsset,
				Currency: "USD",
			},
			expectError: true,
			errorType:   domain.ErrValidation,
		},
		{
			name: "reject unknown currency",
			input: usecase.CreateAccountInput{
				Code:     "1000",
				Name:     "Cash",
				Type:     domain.AccountTypeAsset,
				Currency: "XXX",
			},
			expectError: true,
			errorType:   domain.ErrValidation,
		},
		{
			name: "reject unknown account type",
			input: usecase.CreateAccountInput{
				Code:     "1000",
				Name:     "Cash",
				Type:     domain.AccountType("stock"),
				Currency: "USD",
			},
			expectError: true,
			errorType:   domain.ErrValidation,
		},
		{
			name: "reject missing parent",
			input: usecase.CreateAccountInput{
				Code:     "1010",
				Name:     "Petty cash",
				Type:     domain.AccountTypeAsset,
				ParentID: strptr("nope"),
				Currency: "USD",
			},
			expectError: true,
			errorType:   domain.ErrInvalidParent,
		},
		{
			name: "reject parent currency mismatch",
			input: usecase.CreateAccountInput{
				Code:     "1010",
				Name:     "Petty cash",
				Type:     domain.AccountTypeAsset,
				ParentID: strptr("acc-1"),
				Currency: "EUR",
			},
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen},
			},
			expectError: true,
			errorType:   domain.ErrInvalidParent,
		},
		{
			name: "reject closed parent",
			input: usecase.CreateAccountInput{
				Code:     "1010",
				Name:     "Petty cash",
				Type:     domain.AccountTypeAsset,
				ParentID: strptr("acc-1"),
				Currency: "USD",
			},
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusClosed},
			},
			expectError: true,
			errorType:   domain.ErrInvalidParent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accRepo := mocks.NewMockAccountRepository()
			for _, acc := range tt.seed {
				accRepo.Seed(acc)
			}

			uc, outboxRepo, _ := newAccountUseCase(accRepo)

			account, err := uc.CreateAccount(context.Background(), tt.input)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errorType != nil && !errors.Is(err, tt.errorType) {
					t.Errorf("expected error %v, got %v", tt.errorType, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if account == nil {
				t.Fatal("expected account, got nil")
			}
			if account.Status != domain.AccountStatusOpen {
				t.Errorf("expected open status, got %s", account.Status)
			}
			if !account.Balance.IsZero() {
				t.Errorf("expected zero opening balance, got %s", account.Balance)
			}

			events := outboxRepo.Events()
			if len(events) != 1 || events[0].EventType != domain.EventTypeAccountCreated {
				t.Errorf("expected one account.created event, got %v", events)
			}
		})
	}
}

func TestAccountUseCase_CreateAccount_InheritsParentType(t *testing.T) {
	accRepo := mocks.NewMockAccountRepository()
	accRepo.Seed(&domain.Account{
		ID: "acc-1", Code: "1000", Type: domain.AccountTypeAsset,
		Currency: "USD", Status: domain.AccountStatusOpen,
	})

	uc, _, _ := newAccountUseCase(accRepo)

	account, err := uc.CreateAccount(context.Background(), usecase.CreateAccountInput{
		Code:     "1090",
		Name:     "Accumulated depreciation",
		Type:     domain.AccountTypeContra,
		ParentID: strptr("acc-1"),
		Currency: "USD",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if account.ParentType == nil || *account.ParentType != domain.AccountTypeAsset {
		t.Fatalf("expected recorded parent type asset, got %v", account.ParentType)
	}

	// Contra of a debit-normal parent is credit-normal.
	if got := account.NormalSide(); got != domain.EntryKindCredit {
		t.Errorf("expected credit normal side, got %s", got)
	}
}

func TestAccountUseCase_UpdateAccount(t *testing.T) {
	eur := "EUR"
	liability := domain.AccountTypeLiability

	tests := []struct {
		name        string
		input       usecase.UpdateAccountInput
		hasPostings bool
		expectError bool
		errorType   error
	}{
		{
			name:  "rename",
			input: usecase.UpdateAccountInput{ID: "acc-1", Name: strptr("Operating cash")},
		},
		{
			name:  "metadata update",
			input: usecase.UpdateAccountInput{ID: "acc-1", Metadata: map[string]string{"region": "emea"}},
		},
		{
			name:  "retype before any posting",
			input: usecase.UpdateAccountInput{ID: "acc-1", Type: &liability},
		},
		{
			name:        "reject retype after postings",
			input:       usecase.UpdateAccountInput{ID: "acc-1", Type: &liability},
			hasPostings: true,
			expectError: true,
			errorType:   domain.ErrImmutableField,
		},
		{
			name:        "reject currency change after postings",
			input:       usecase.UpdateAccountInput{ID: "acc-1", Currency: &eur},
			hasPostings: true,
			expectError: true,
			errorType:   domain.ErrImmutableField,
		},
		{
			name:        "reject unknown account",
			input:       usecase.UpdateAccountInput{ID: "missing", Name: strptr("x")},
			expectError: true,
			errorType:   domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accRepo := mocks.NewMockAccountRepository()
			accRepo.Seed(&domain.Account{
				ID: "acc-1", Code: "1000", Name: "Cash", Type: domain.AccountTypeAsset,
				Currency: "USD", Status: domain.AccountStatusOpen,
			})
			accRepo.HasPostingsFunc = func(ctx context.Context, id string) (bool, error) {
				return tt.hasPostings, nil
			}

			uc, _, _ := newAccountUseCase(accRepo)

			_, err := uc.UpdateAccount(context.Background(), tt.input)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errorType != nil && !errors.Is(err, tt.errorType) {
					t.Errorf("expected error %v, got %v", tt.errorType, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestAccountUseCase_CloseAccount(t *testing.T) {
	tests := []struct {
		name        string
		seed        []*domain.Account
		closeID     string
		expectError bool
		errorType   error
	}{
		{
			name: "successful close",
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero},
			},
			closeID: "acc-1",
		},
		{
			name: "reject nonzero balance",
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.NewFromInt(5)},
			},
			closeID:     "acc-1",
			expectError: true,
			errorType:   domain.ErrNonZeroBalance,
		},
		{
			name: "reject open child",
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero},
				{ID: "acc-2", Code: "1010", Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero, ParentID: strptr("acc-1")},
			},
			closeID:     "acc-1",
			expectError: true,
			errorType:   domain.ErrHasOpenChildren,
		},
		{
			name: "close with closed children",
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusOpen, Balance: decimal.Zero},
				{ID: "acc-2", Code: "1010", Currency: "USD", Status: domain.AccountStatusClosed, Balance: decimal.Zero, ParentID: strptr("acc-1")},
			},
			closeID: "acc-1",
		},
		{
			name: "reject double close",
			seed: []*domain.Account{
				{ID: "acc-1", Code: "1000", Currency: "USD", Status: domain.AccountStatusClosed, Balance: decimal.Zero},
			},
			closeID:     "acc-1",
			expectError: true,
			errorType:   domain.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accRepo := mocks.NewMockAccountRepository()
			for _, acc := range tt.seed {
				accRepo.Seed(acc)
			}

			uc, outboxRepo, auditRepo := newAccountUseCase(accRepo)

			account, err := uc.CloseAccount(context.Background(), tt.closeID)

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errorType != nil && !errors.Is(err, tt.errorType) {
					t.Errorf("expected error %v, got %v", tt.errorType, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if account.Status != domain.AccountStatusClosed || account.ClosedAt == nil {
				t.Errorf("expected closed account, got status %s", account.Status)
			}

			// Closure is audited, never deleted.
			records := auditRepo.Records()
			if len(records) == 0 || records[len(records)-1].Action != domain.AuditActionAccountClose {
				t.Error("expected account.close audit record")
			}

			// Closure is announced the same way creation is.
			events := outboxRepo.Events()
			if len(events) != 1 || events[0].EventType != domain.EventTypeAccountClosed {
				t.Errorf("expected one account.closed event, got %v", events)
			}
		})
	}
}
