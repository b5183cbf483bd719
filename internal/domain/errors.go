package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateCode     = errors.New("account code already exists")
	ErrInvalidParent     = errors.New("invalid parent account")
	ErrNonZeroBalance    = errors.New("account has a non-zero balance")
	ErrHasOpenChildren   = errors.New("account has open child accounts")
	ErrAccountClosed     = errors.New("account is closed")
	ErrImmutableField    = errors.New("field is immutable after first posting")

	// Journal errors
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrValidation          = errors.New("transaction validation failed")
	ErrConflict            = errors.New("conflicting transaction state")
	ErrImbalance           = errors.New("ledger imbalance detected")
	ErrIntegrityHold       = errors.New("writes suspended pending integrity review")

	// Coordinator errors
	ErrContextNotFound  = errors.New("transaction context not found")
	ErrContextTerminal  = errors.New("transaction context already terminal")
	ErrContextTimeout   = errors.New("transaction context deadline exceeded")
	ErrPartialRollback  = errors.New("one or more compensations failed")
	ErrUnknownService   = errors.New("no collaborator registered for service")
)
