package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/domain"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	ParentID  *string           `json:"parent_id,omitempty"`
	Currency  string            `json:"currency"`
	Status    string            `json:"status"`
	Balance   decimal.Decimal   `json:"balance"`
	Version   int64             `json:"version"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ClosedAt  *time.Time        `json:"closed_at,omitempty"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Code:      a.Code,
		Name:      a.Name,
		Type:      string(a.Type),
		ParentID:  a.ParentID,
		Currency:  a.Currency,
		Status:    string(a.Status),
		Balance:   a.Balance,
		Version:   a.Version,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
		ClosedAt:  a.ClosedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// EntryResponse represents a journal entry in API responses.
type EntryResponse struct {
	ID           string           `json:"id"`
	AccountID    string           `json:"account_id"`
	Kind         string           `json:"kind"`
	Amount       decimal.Decimal  `json:"amount"`
	SignedAmount *decimal.Decimal `json:"signed_amount,omitempty"`
	Currency     string           `json:"currency"`
	Sequence     int32            `json:"sequence"`
	Description  string           `json:"description,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Description     string          `json:"description,omitempty"`
	Status          string          `json:"status"`
	Currency        string          `json:"currency"`
	Entries         []EntryResponse `json:"entries"`
	SourceService   string          `json:"source_service"`
	SourceReference string          `json:"source_reference"`
	ReversalOfID    *string         `json:"reversal_of_id,omitempty"`
	ReversedByID    *string         `json:"reversed_by_id,omitempty"`
	ReversalReason  string          `json:"reversal_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	PostedAt        *time.Time      `json:"posted_at,omitempty"`
	ReversedAt      *time.Time      `json:"reversed_at,omitempty"`
}

// TransactionFromDomain converts domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	entries := make([]EntryResponse, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = EntryResponse{
			ID:          e.ID,
			AccountID:   e.AccountID,
			Kind:        string(e.Kind),
			Amount:      e.Amount,
			Currency:    e.Currency,
			Sequence:    e.Sequence,
			Description: e.Description,
			CreatedAt:   e.CreatedAt,
		}
		if t.Status != domain.TransactionStatusDraft {
			signed := e.SignedAmount
			entries[i].SignedAmount = &signed
		}
	}

	return &TransactionResponse{
		ID:              t.ID,
		Type:            t.Type,
		Description:     t.Description,
		Status:          string(t.Status),
		Currency:        t.Currency,
		Entries:         entries,
		SourceService:   t.SourceService,
		SourceReference: t.SourceReference,
		ReversalOfID:    t.ReversalOfID,
		ReversedByID:    t.ReversedByID,
		ReversalReason:  t.ReversalReason,
		CreatedAt:       t.CreatedAt,
		PostedAt:        t.PostedAt,
		ReversedAt:      t.ReversedAt,
	}
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(transactions []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(transactions))
	for i, t := range transactions {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// ListTransactionsResponse represents a page of transactions.
type ListTransactionsResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
	Total        int64                  `json:"total"`
}

// BalanceResponse represents a point-in-time account balance.
type BalanceResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	AsOf      time.Time       `json:"as_of"`
}

// TrialBalanceRowResponse represents one trial balance row.
type TrialBalanceRowResponse struct {
	AccountID   string          `json:"account_id"`
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

// TrialBalanceResponse represents a trial balance report.
type TrialBalanceResponse struct {
	AsOf        time.Time                 `json:"as_of"`
	Currency    string                    `json:"currency"`
	Rows        []TrialBalanceRowResponse `json:"rows"`
	TotalDebit  decimal.Decimal           `json:"total_debit"`
	TotalCredit decimal.Decimal           `json:"total_credit"`
}

// TrialBalanceFromDomain converts a domain trial balance to response.
func TrialBalanceFromDomain(tb *domain.TrialBalance) *TrialBalanceResponse {
	rows := make([]TrialBalanceRowResponse, len(tb.Rows))
	for i, row := range tb.Rows {
		rows[i] = TrialBalanceRowResponse{
			AccountID:   row.AccountID,
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			AccountType: string(row.AccountType),
			Debit:       row.Debit,
			Credit:      row.Credit,
		}
	}
	return &TrialBalanceResponse{
		AsOf:        tb.AsOf,
		Currency:    tb.Currency,
		Rows:        rows,
		TotalDebit:  tb.TotalDebit,
		TotalCredit: tb.TotalCredit,
	}
}

// DiscrepancyResponse represents one reconciliation finding.
type DiscrepancyResponse struct {
	AccountID   string          `json:"account_id"`
	AccountCode string          `json:"account_code"`
	Expected    decimal.Decimal `json:"expected"`
	Actual      decimal.Decimal `json:"actual"`
	Detail      string          `json:"detail"`
}

// ReconcileResponse represents a reconciliation report.
type ReconcileResponse struct {
	Scope         string                `json:"scope"`
	Discrepancies []DiscrepancyResponse `json:"discrepancies"`
	Clean         bool                  `json:"clean"`
}

// ReconcileFromDomain converts reconciliation findings to response.
func ReconcileFromDomain(scope string, discrepancies []domain.Discrepancy) *ReconcileResponse {
	result := make([]DiscrepancyResponse, len(discrepancies))
	for i, d := range discrepancies {
		result[i] = DiscrepancyResponse{
			AccountID:   d.AccountID,
			AccountCode: d.AccountCode,
			Expected:    d.Expected,
			Actual:      d.Actual,
			Detail:      d.Detail,
		}
	}
	return &ReconcileResponse{
		Scope:         scope,
		Discrepancies: result,
		Clean:         len(result) == 0,
	}
}

// BalanceSheetItemResponse represents one balance sheet line.
type BalanceSheetItemResponse struct {
	AccountID   string                     `json:"account_id"`
	AccountCode string                     `json:"account_code"`
	AccountName string                     `json:"account_name"`
	Balance     decimal.Decimal            `json:"balance"`
	Children    []BalanceSheetItemResponse `json:"children,omitempty"`
}

// BalanceSheetSectionResponse represents one balance sheet section.
type BalanceSheetSectionResponse struct {
	Type  string                     `json:"type"`
	Items []BalanceSheetItemResponse `json:"items"`
	Total decimal.Decimal            `json:"total"`
}

// BalanceSheetResponse represents a balance sheet report.
type BalanceSheetResponse struct {
	AsOf     time.Time                     `json:"as_of"`
	Currency string                        `json:"currency"`
	Sections []BalanceSheetSectionResponse `json:"sections"`
}

// BalanceSheetFromDomain converts a domain balance sheet to response.
func BalanceSheetFromDomain(bs *domain.BalanceSheet) *BalanceSheetResponse {
	sections := make([]BalanceSheetSectionResponse, len(bs.Sections))
	for i, section := range bs.Sections {
		sections[i] = BalanceSheetSectionResponse{
			Type:  string(section.Type),
			Items: balanceSheetItems(section.Items),
			Total: section.Total,
		}
	}
	return &BalanceSheetResponse{
		AsOf:     bs.AsOf,
		Currency: bs.Currency,
		Sections: sections,
	}
}

func balanceSheetItems(items []domain.BalanceSheetItem) []BalanceSheetItemResponse {
	if len(items) == 0 {
		return nil
	}
	result := make([]BalanceSheetItemResponse, len(items))
	for i, item := range items {
		result[i] = BalanceSheetItemResponse{
			AccountID:   item.AccountID,
			AccountCode: item.AccountCode,
			AccountName: item.AccountName,
			Balance:     item.Balance,
			Children:    balanceSheetItems(item.Children),
		}
	}
	return result
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
