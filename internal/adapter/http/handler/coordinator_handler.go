package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/domain"
)

// CoordinatorService defines the behavior needed by CoordinatorHandler.
type CoordinatorService interface {
	BeginTransaction(ctx context.Context, owner string) (string, error)
	AddOperation(ctx context.Context, contextID, service, operation string, payload, compensation map[string]any) (int, error)
	CommitTransaction(ctx context.Context, contextID string) (*domain.TransactionContext, error)
	RollbackTransaction(ctx context.Context, contextID string) (*domain.RollbackResult, error)
	GetContext(contextID string) (*domain.TransactionContext, error)
}

// CoordinatorHandler handles distributed transaction HTTP requests.
type CoordinatorHandler struct {
	coordinator CoordinatorService
}

// NewCoordinatorHandler creates a new CoordinatorHandler.
func NewCoordinatorHandler(coordinator CoordinatorService) *CoordinatorHandler {
	return &CoordinatorHandler{coordinator: coordinator}
}

// Begin opens a new distributed transaction context.
func (h *CoordinatorHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req dto.BeginContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Owner == "" {
		writeError(w, http.StatusBadRequest, "missing owner", "")
		return
	}

	contextID, err := h.coordinator.BeginTransaction(r.Context(), req.Owner)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to begin context", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.BeginContextResponse{ContextID: contextID})
}

// AddOperation executes a collaborator operation under a context.
func (h *CoordinatorHandler) AddOperation(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	if contextID == "" {
		writeError(w, http.StatusBadRequest, "missing context ID", "")
		return
	}

	var req dto.AddOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ordinal, err := h.coordinator.AddOperation(r.Context(), contextID, req.Service, req.Operation, req.Payload, req.Compensation)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to add operation", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AddOperationResponse{
		ContextID: contextID,
		Ordinal:   ordinal,
	})
}

// Commit finalizes a context.
func (h *CoordinatorHandler) Commit(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	if contextID == "" {
		writeError(w, http.StatusBadRequest, "missing context ID", "")
		return
	}

	tc, err := h.coordinator.CommitTransaction(r.Context(), contextID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to commit context", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ContextFromDomain(tc))
}

// Rollback compensates all applied operations in reverse order.
func (h *CoordinatorHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	if contextID == "" {
		writeError(w, http.StatusBadRequest, "missing context ID", "")
		return
	}

	result, err := h.coordinator.RollbackTransaction(r.Context(), contextID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to roll back context", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.RollbackFromDomain(result))
}

// Get returns a context's current state.
func (h *CoordinatorHandler) Get(w http.ResponseWriter, r *http.Request) {
	contextID := chi.URLParam(r, "id")
	if contextID == "" {
		writeError(w, http.StatusBadRequest, "missing context ID", "")
		return
	}

	tc, err := h.coordinator.GetContext(contextID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get context", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ContextFromDomain(tc))
}
