package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/domain"
)

// AuditService defines the behavior needed by AuditHandler.
type AuditService interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error)
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditRecord, error)
}

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	auditRepo AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditRepo AuditService) *AuditHandler {
	return &AuditHandler{auditRepo: auditRepo}
}

// List lists audit records with optional filters.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.AuditFilter{
		Actor:        r.URL.Query().Get("actor"),
		Action:       r.URL.Query().Get("action"),
		ResourceType: r.URL.Query().Get("resource_type"),
		ResourceID:   r.URL.Query().Get("resource_id"),
		Limit:        parseIntQuery(r, "limit", 50),
		Offset:       parseIntQuery(r, "offset", 0),
	}

	if v := r.URL.Query().Get("start_date"); v != "" {
		start, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date parameter", err.Error())
			return
		}
		filter.StartDate = &start
	}
	if v := r.URL.Query().Get("end_date"); v != "" {
		end, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date parameter", err.Error())
			return
		}
		filter.EndDate = &end
	}

	records, err := h.auditRepo.List(r.Context(), filter)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list audit records", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditRecordsFromDomain(records))
}

// GetByResource lists the audit history of one resource.
func (h *AuditHandler) GetByResource(w http.ResponseWriter, r *http.Request) {
	resourceType := chi.URLParam(r, "type")
	resourceID := chi.URLParam(r, "id")
	if resourceType == "" || resourceID == "" {
		writeError(w, http.StatusBadRequest, "missing resource type or ID", "")
		return
	}

	records, err := h.auditRepo.GetByResource(r.Context(), resourceType, resourceID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get audit records", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AuditRecordsFromDomain(records))
}
