package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// AccountUseCase manages the chart of accounts.
type AccountUseCase struct {
	auditRecorder

	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	txManager   TransactionManager
	idGen       IDGenerator
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	txManager TransactionManager,
	idGen IDGenerator,
) *AccountUseCase {
	return &AccountUseCase{
		auditRecorder: auditRecorder{auditRepo: auditRepo, idGen: idGen},
		accountRepo:   accountRepo,
		outboxRepo:    outboxRepo,
		txManager:     txManager,
		idGen:         idGen,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	Code     string
	Name     string
	Type     domain.AccountType
	ParentID *string
	Currency string
	Metadata map[string]string
}

// CreateAccount creates a new account in the chart of accounts.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	account, err := uc.createAccount(ctx, input)
	uc.record(ctx, domain.AuditActionAccountCreate, domain.AggregateTypeAccount, input.Code, nil, account, err)

	return account, err
}

func (uc *AccountUseCase) createAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	if err := domain.ValidateAccountCode(input.Code); err != nil {
		return nil, err
	}

	if err := domain.ValidateAccountName(input.Name); err != nil {
		return nil, err
	}

	if !input.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, input.Type)
	}

	if err := domain.ValidateCurrency(input.Currency); err != nil {
		return nil, err
	}

	if err := domain.ValidateMetadata(input.Metadata); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))

	existing, err := uc.accountRepo.GetByCode(ctx, input.Code)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	if existing != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateCode, input.Code)
	}

	var parentType *domain.AccountType

	if input.ParentID != nil {
		parent, err := uc.accountRepo.GetByID(ctx, *input.ParentID)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return nil, fmt.Errorf("%w: parent %s does not exist", domain.ErrInvalidParent, *input.ParentID)
			}

			return nil, err
		}

		if parent.Currency != currency {
			return nil, fmt.Errorf("%w: parent currency %s does not match %s", domain.ErrInvalidParent, parent.Currency, currency)
		}

		if !parent.IsOpen() {
			return nil, fmt.Errorf("%w: parent %s is closed", domain.ErrInvalidParent, parent.Code)
		}

		parentType = &parent.Type
	}

	now := time.Now().UTC()

	account := &domain.Account{
		ID:         uc.idGen.Generate(),
		Code:       input.Code,
		Name:       strings.TrimSpace(input.Name),
		Type:       input.Type,
		ParentID:   input.ParentID,
		ParentType: parentType,
		Currency:   currency,
		Status:     domain.AccountStatusOpen,
		Balance:    decimal.Zero,
		Version:    0,
		Metadata:   input.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.accountRepo.CreateTx(ctx, tx, account); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountCreated,
		Payload: domain.MarshalState(domain.AccountCreatedEvent{
			AccountID: account.ID,
			Code:      account.Code,
			Type:      string(account.Type),
			Currency:  account.Currency,
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return account, nil
}

// UpdateAccountInput carries the mutable account fields. Type and currency
// are immutable once the account has postings.
type UpdateAccountInput struct {
	ID       string
	Name     *string
	Type     *domain.AccountType
	Currency *string
	Metadata map[string]string
}

// UpdateAccount updates account metadata.
func (uc *AccountUseCase) UpdateAccount(ctx context.Context, input UpdateAccountInput) (*domain.Account, error) {
	account, err := uc.updateAccount(ctx, input)
	uc.record(ctx, domain.AuditActionAccountUpdate, domain.AggregateTypeAccount, input.ID, nil, account, err)

	return account, err
}

func (uc *AccountUseCase) updateAccount(ctx context.Context, input UpdateAccountInput) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	// Type and currency are frozen once the account has postings.
	if (input.Type != nil && *input.Type != account.Type) ||
		(input.Currency != nil && !strings.EqualFold(*input.Currency, account.Currency)) {
		posted, err := uc.accountRepo.HasPostings(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		if posted {
			return nil, fmt.Errorf("%w: type and currency", domain.ErrImmutableField)
		}
	}

	if input.Type != nil {
		if !input.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown account type %q", domain.ErrValidation, *input.Type)
		}

		account.Type = *input.Type
	}

	if input.Currency != nil {
		if err := domain.ValidateCurrency(*input.Currency); err != nil {
			return nil, err
		}

		account.Currency = strings.ToUpper(strings.TrimSpace(*input.Currency))
	}

	name := account.Name
	if input.Name != nil {
		if err := domain.ValidateAccountName(*input.Name); err != nil {
			return nil, err
		}

		name = strings.TrimSpace(*input.Name)
	}

	metadata := account.Metadata
	if input.Metadata != nil {
		if err := domain.ValidateMetadata(input.Metadata); err != nil {
			return nil, err
		}

		metadata = input.Metadata
	}

	account.Name = name
	account.Metadata = metadata
	account.UpdatedAt = time.Now().UTC()

	if err := uc.accountRepo.Update(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// CloseAccount soft-closes an account. Fails when the balance is nonzero or
// any child account is still open; accounts are never physically deleted.
func (uc *AccountUseCase) CloseAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.closeAccount(ctx, id)
	uc.record(ctx, domain.AuditActionAccountClose, domain.AggregateTypeAccount, id, nil, account, err)

	return account, err
}

func (uc *AccountUseCase) closeAccount(ctx context.Context, id string) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := account.CanClose(); err != nil {
		return nil, err
	}

	children, err := uc.accountRepo.ListChildren(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, child := range children {
		if child.IsOpen() {
			return nil, fmt.Errorf("%w: child %s is open", domain.ErrHasOpenChildren, child.Code)
		}
	}

	now := time.Now().UTC()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := uc.accountRepo.Close(ctx, tx, id, now); err != nil {
		return nil, err
	}

	event := &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   account.ID,
		AggregateType: domain.AggregateTypeAccount,
		EventType:     domain.EventTypeAccountClosed,
		Payload: domain.MarshalState(domain.AccountClosedEvent{
			AccountID: account.ID,
			Code:      account.Code,
			ClosedAt:  now.Format(time.RFC3339Nano),
		}),
		CreatedAt: now,
	}

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	account.Status = domain.AccountStatusClosed
	account.ClosedAt = &now
	account.UpdatedAt = now

	return account, nil
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// GetAccountByCode retrieves an account by chart code.
func (uc *AccountUseCase) GetAccountByCode(ctx context.Context, code string) (*domain.Account, error) {
	return uc.accountRepo.GetByCode(ctx, code)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	limit, offset := domain.ValidatePagination(input.Limit, input.Offset)

	return uc.accountRepo.List(ctx, limit, offset)
}
