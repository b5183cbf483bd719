package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"github.com/iho/finledger/internal/adapter/http/dto"
	"github.com/iho/finledger/internal/adapter/http/handler/mocks"
	"github.com/iho/finledger/internal/domain"
	"github.com/iho/finledger/internal/usecase"
)

func TestAccountHandler_Create_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	account := &domain.Account{
		ID:       "acc-1",
		Code:     "1000",
		Name:     "Cash",
		Type:     domain.AccountTypeAsset,
		Currency: "USD",
		Status:   domain.AccountStatusOpen,
	}

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().CreateAccount(gomock.Any(), usecase.CreateAccountInput{
		Code:     "1000",
		Name:     "Cash",
		Type:     domain.AccountTypeAsset,
		Currency: "USD",
	}).Return(account, nil)

	handler := NewAccountHandler(svc)

	body, _ := json.Marshal(dto.CreateAccountRequest{
		Code:     "1000",
		Name:     "Cash",
		Type:     "asset",
		Currency: "USD",
	})

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.AccountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "acc-1" || resp.Code != "1000" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAccountHandler_Create_InvalidJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	handler := NewAccountHandler(mocks.NewMockAccountService(ctrl))

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte("{not json"))))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAccountHandler_Create_DuplicateCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().CreateAccount(gomock.Any(), gomock.Any()).Return(nil, domain.ErrDuplicateCode)

	handler := NewAccountHandler(svc)

	body, _ := json.Marshal(dto.CreateAccountRequest{Code: "1000", Name: "Cash", Type: "asset", Currency: "USD"})
	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate code, got %d", rec.Code)
	}
}

func TestAccountHandler_Get_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().GetAccount(gomock.Any(), "missing").Return(nil, domain.ErrAccountNotFound)

	handler := NewAccountHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/missing", nil), "id", "missing")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAccountHandler_Update_ImmutableField(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().UpdateAccount(gomock.Any(), gomock.Any()).Return(nil, domain.ErrImmutableField)

	handler := NewAccountHandler(svc)

	currency := "EUR"
	body, _ := json.Marshal(dto.UpdateAccountRequest{Currency: &currency})
	req := setChiURLParam(httptest.NewRequest(http.MethodPut, "/accounts/acc-1", bytes.NewReader(body)), "id", "acc-1")
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for immutable field, got %d", rec.Code)
	}
}

func TestAccountHandler_Close_NonZeroBalance(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().CloseAccount(gomock.Any(), "acc-1").Return(nil, domain.ErrNonZeroBalance)

	handler := NewAccountHandler(svc)

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/accounts/acc-1/close", nil), "id", "acc-1")
	rec := httptest.NewRecorder()
	handler.Close(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for non-zero balance, got %d", rec.Code)
	}
}

func TestAccountHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := mocks.NewMockAccountService(ctrl)
	svc.EXPECT().ListAccounts(gomock.Any(), usecase.ListAccountsInput{Limit: 5, Offset: 10}).Return([]*domain.Account{
		{ID: "acc-1", Code: "1000"},
		{ID: "acc-2", Code: "2000"},
	}, nil)

	handler := NewAccountHandler(svc)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/accounts?limit=5&offset=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.ListAccountsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(resp.Accounts))
	}
}

func setChiURLParam(r *http.Request, key, value string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, &chi.Context{
		URLParams: chi.RouteParams{
			Keys:   []string{key},
			Values: []string{value},
		},
	}))
}
