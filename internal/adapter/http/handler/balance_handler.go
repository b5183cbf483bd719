package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/domain"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	GetAccountBalance(ctx context.Context, accountID string, asOf time.Time) (decimal.Decimal, error)
	GetTrialBalance(ctx context.Context, asOf time.Time, currency string) (*domain.TrialBalance, error)
	ReconcileAccounts(ctx context.Context, scope string) ([]domain.Discrepancy, error)
	GetBalanceSheet(ctx context.Context, asOf time.Time, currency string) (*domain.BalanceSheet, error)
}

// BalanceHandler handles balance and reporting HTTP requests.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// GetBalance returns an account's balance, optionally at a historical point.
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	asOf, err := parseTimeQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of parameter", err.Error())
		return
	}

	balance, err := h.balanceUC.GetAccountBalance(r.Context(), id, asOf)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{
		AccountID: id,
		Balance:   balance,
		AsOf:      asOf,
	})
}

// TrialBalance returns the trial balance report.
func (h *BalanceHandler) TrialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTimeQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of parameter", err.Error())
		return
	}

	tb, err := h.balanceUC.GetTrialBalance(r.Context(), asOf, r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to compute trial balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TrialBalanceFromDomain(tb))
}

// Reconcile recomputes balances from entry history and reports drift.
func (h *BalanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")

	discrepancies, err := h.balanceUC.ReconcileAccounts(r.Context(), scope)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile accounts", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconcileFromDomain(scope, discrepancies))
}

// BalanceSheet returns the hierarchical balance sheet report.
func (h *BalanceHandler) BalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseTimeQuery(r, "as_of")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid as_of parameter", err.Error())
		return
	}

	bs, err := h.balanceUC.GetBalanceSheet(r.Context(), asOf, r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to compute balance sheet", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceSheetFromDomain(bs))
}
