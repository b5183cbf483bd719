package domain

import "time"

// Event types published to subscribing collaborators. Delivery is
// at-least-once; consumers dedupe on (transaction_id, event_type).
const (
	EventTypeTransactionPosted     = "transaction.posted"
	EventTypeTransactionReversed   = "transaction.reversed"
	EventTypeBalanceChanged        = "balance.changed"
	EventTypeTransactionRolledBack = "transaction.rolled_back"
	EventTypeAccountCreated        = "account.created"
	EventTypeAccountClosed         = "account.closed"
)

// Aggregate types.
const (
	AggregateTypeTransaction = "transaction"
	AggregateTypeAccount     = "account"
	AggregateTypeContext     = "context"
)

// OutboxEvent is an event pending publication, written in the same store
// transaction as the state change it describes.
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionPostedEvent payload
type TransactionPostedEvent struct {
	TransactionID   string `json:"transaction_id"`
	Type            string `json:"type"`
	Currency        string `json:"currency"`
	TotalAmount     string `json:"total_amount"`
	SourceService   string `json:"source_service"`
	SourceReference string `json:"source_reference"`
	PostedAt        string `json:"posted_at"`
}

// TransactionReversedEvent payload
type TransactionReversedEvent struct {
	ReversalTransactionID string `json:"reversal_transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id"`
	Reason                string `json:"reason"`
	Currency              string `json:"currency"`
	TotalAmount           string `json:"total_amount"`
}

// BalanceChangedEvent payload
type BalanceChangedEvent struct {
	AccountID       string `json:"account_id"`
	AccountCode     string `json:"account_code"`
	TransactionID   string `json:"transaction_id"`
	PreviousBalance string `json:"previous_balance"`
	CurrentBalance  string `json:"current_balance"`
	Currency        string `json:"currency"`
}

// TransactionRolledBackEvent payload
type TransactionRolledBackEvent struct {
	ContextID      string `json:"context_id"`
	Owner          string `json:"owner"`
	Status         string `json:"status"`
	Compensated    int    `json:"compensated"`
	FailedOrdinals []int  `json:"failed_ordinals,omitempty"`
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
}

// AccountClosedEvent payload
type AccountClosedEvent struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
	ClosedAt  string `json:"closed_at"`
}
