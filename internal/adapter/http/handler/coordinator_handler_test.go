package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/adapter/http/handler/mocks"
	"github.com/iho/finledger/internal/domain"
)

func TestCoordinatorHandler_Begin(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().BeginTransaction(gomock.Any(), "payments").Return("ctx-1", nil)

	handler := NewCoordinatorHandler(svc)

	body, _ := json.Marshal(dto.BeginContextRequest{Owner: "payments"})
	rec := httptest.NewRecorder()
	handler.Begin(rec, httptest.NewRequest(http.MethodPost, "/contexts", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.BeginContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ContextID != "ctx-1" {
		t.Fatalf("expected ctx-1, got %s", resp.ContextID)
	}
}

func TestCoordinatorHandler_Begin_MissingOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewCoordinatorHandler(mocks.NewMockCoordinatorService(ctrl))

	rec := httptest.NewRecorder()
	handler.Begin(rec, httptest.NewRequest(http.MethodPost, "/contexts", bytes.NewReader([]byte(`{}`))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing owner, got %d", rec.Code)
	}
}

func TestCoordinatorHandler_AddOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().AddOperation(gomock.Any(), "ctx-1", "wallet", "wallet.create",
		map[string]any{"user_id": "u1"}, map[string]any{"action": "delete"}).Return(1, nil)

	handler := NewCoordinatorHandler(svc)

	body, _ := json.Marshal(dto.AddOperationRequest{
		Service:      "wallet",
		Operation:    "wallet.create",
		Payload:      map[string]any{"user_id": "u1"},
		Compensation: map[string]any{"action": "delete"},
	})
	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/operations", bytes.NewReader(body)), "id", "ctx-1")
	rec := httptest.NewRecorder()
	handler.AddOperation(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AddOperationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Ordinal != 1 {
		t.Fatalf("expected ordinal 1, got %d", resp.Ordinal)
	}
}

func TestCoordinatorHandler_AddOperation_UnknownService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().AddOperation(gomock.Any(), "ctx-1", "unknown", "op", gomock.Any(), gomock.Any()).
		Return(0, domain.ErrUnknownService)

	handler := NewCoordinatorHandler(svc)

	body, _ := json.Marshal(dto.AddOperationRequest{Service: "unknown", Operation: "op"})
	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/operations", bytes.NewReader(body)), "id", "ctx-1")
	rec := httptest.NewRecorder()
	handler.AddOperation(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown service, got %d", rec.Code)
	}
}

func TestCoordinatorHandler_Commit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().CommitTransaction(gomock.Any(), "ctx-1").Return(&domain.TransactionContext{
		ID:     "ctx-1",
		Owner:  "payments",
		Status: domain.ContextStatusCommitted,
	}, nil)

	handler := NewCoordinatorHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/commit", nil), "id", "ctx-1")
	rec := httptest.NewRecorder()
	handler.Commit(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ContextResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "committed" {
		t.Fatalf("expected committed status, got %s", resp.Status)
	}
}

func TestCoordinatorHandler_Commit_Expired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().CommitTransaction(gomock.Any(), "ctx-1").Return(nil, domain.ErrContextTimeout)

	handler := NewCoordinatorHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/commit", nil), "id", "ctx-1")
	rec := httptest.NewRecorder()
	handler.Commit(rec, req)

	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410 for expired context, got %d", rec.Code)
	}
}

func TestCoordinatorHandler_Rollback_Partial(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().RollbackTransaction(gomock.Any(), "ctx-1").Return(&domain.RollbackResult{
		ContextID:      "ctx-1",
		Status:         domain.ContextStatusPartiallyRolledBack,
		Compensated:    1,
		FailedOrdinals: []int{2},
		CompletedAt:    time.Now().UTC(),
	}, nil)

	handler := NewCoordinatorHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/contexts/ctx-1/rollback", nil), "id", "ctx-1")
	rec := httptest.NewRecorder()
	handler.Rollback(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.RollbackResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "partially_rolled_back" || len(resp.FailedOrdinals) != 1 {
		t.Fatalf("unexpected rollback response: %+v", resp)
	}
}

func TestCoordinatorHandler_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockCoordinatorService(ctrl)
	svc.EXPECT().GetContext("missing").Return(nil, domain.ErrContextNotFound)

	handler := NewCoordinatorHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/contexts/missing", nil), "id", "missing")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
