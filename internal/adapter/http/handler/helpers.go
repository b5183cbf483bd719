package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/domain"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound),
		errors.Is(err, domain.ErrContextNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateCode):
		return http.StatusConflict
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrContextTerminal),
		errors.Is(err, domain.ErrImmutableField),
		errors.Is(err, domain.ErrNonZeroBalance),
		errors.Is(err, domain.ErrHasOpenChildren),
		errors.Is(err, domain.ErrIntegrityHold):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidParent),
		errors.Is(err, domain.ErrAccountClosed),
		errors.Is(err, domain.ErrUnknownService):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrContextTimeout):
		return http.StatusGone
	case errors.Is(err, domain.ErrPartialRollback):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrImbalance):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultValue int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return i
}

// parseTimeQuery parses an RFC3339 query parameter, defaulting to now.
func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, val)
}
