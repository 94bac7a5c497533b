package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/reliefbridge/fundledger/api/middleware"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/payments"
	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/pkg/auth"
	"github.com/reliefbridge/fundledger/pkg/config"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/types"
)

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rc := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rc.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func withActor(req *http.Request, role enums.Role) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), auth.Actor{UserID: uuid.New(), Role: role}))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope.Error
}

func TestAccountGetRejectsBadID(t *testing.T) {
	handler := AccountGet(fakeLedger{}, nil)

	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/nope", nil), "accountId", "nope")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %s", got.Code)
	}
}

func TestAccountGetMapsUnknownAccount(t *testing.T) {
	handler := AccountGet(fakeLedger{
		getAccountFn: func(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownAccount, "account not found")
		},
	}, nil)

	id := uuid.New()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/v1/accounts/"+id.String(), nil), "accountId", id.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestAccountAddFundPassesParsedInput(t *testing.T) {
	accountID := uuid.New()
	var captured ledger.FundInput
	handler := AccountAddFund(fakeLedger{
		addFundFn: func(ctx context.Context, input ledger.FundInput) (*models.FundTransaction, error) {
			captured = input
			return &models.FundTransaction{
				ID:         uuid.New(),
				AccountID:  input.AccountID,
				Currency:   "EUR",
				Amount:     input.Amount,
				BaseAmount: dec("200"),
				Subtype:    enums.TransactionSubtypeDeposit,
				Status:     enums.TransactionStatusCompleted,
			}, nil
		},
	}, nil)

	body := `{"amount":"100.00","currency":"eur","category":"Health"}`
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "accountId", accountID.String())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.AccountID != accountID {
		t.Fatalf("expected account %s got %s", accountID, captured.AccountID)
	}
	if !captured.Amount.Equal(dec("100")) {
		t.Fatalf("expected amount 100 got %s", captured.Amount)
	}
	if captured.Category == nil || *captured.Category != enums.CategoryHealth {
		t.Fatalf("expected health category got %v", captured.Category)
	}

	var envelope struct {
		Data transactionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.BaseAmount.Equal(dec("200")) {
		t.Fatalf("expected base amount 200 got %s", envelope.Data.BaseAmount)
	}
}

func TestAccountAddFundRejectsThirdDecimal(t *testing.T) {
	handler := AccountAddFund(fakeLedger{}, nil)

	id := uuid.New().String()
	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"1.234"}`)), "accountId", id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := decodeError(t, rec); got.Code != string(pkgerrors.CodeInvalidAmount) {
		t.Fatalf("expected INVALID_AMOUNT got %s", got.Code)
	}
}

func TestAccountBalanceForwardsCurrency(t *testing.T) {
	var gotCurrency string
	handler := AccountBalance(fakeLedger{
		balanceFn: func(ctx context.Context, accountID uuid.UUID, currency string) (*ledger.Balance, error) {
			gotCurrency = currency
			return &ledger.Balance{Currency: "EUR", Total: dec("100"), Available: dec("100")}, nil
		},
	}, nil)

	id := uuid.New().String()
	req := withURLParams(httptest.NewRequest(http.MethodGet, "/?currency=EUR", nil), "accountId", id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if gotCurrency != "EUR" {
		t.Fatalf("expected EUR got %q", gotCurrency)
	}
}

func TestHoldCommitWithoutPendingHoldIsNoop(t *testing.T) {
	handler := HoldCommit(fakeHolds{
		commitFn: func(ctx context.Context, scope enums.AllocationScope, targetID string) (*models.FundTransaction, error) {
			if scope != enums.AllocationScopeCase || targetID != "c-9" {
				t.Fatalf("unexpected target %s/%s", scope, targetID)
			}
			return nil, nil
		},
	}, nil)

	req := withURLParams(httptest.NewRequest(http.MethodPost, "/", nil), "scope", "case", "targetId", "c-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Settled bool `json:"settled"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Settled {
		t.Fatalf("expected settled=false")
	}
}

func TestTransferAdvanceStageForwardsActor(t *testing.T) {
	transferID := uuid.New()
	var gotActor auth.Actor
	handler := TransferAdvanceStage(fakeTransfers{
		advanceFn: func(ctx context.Context, id uuid.UUID, stage enums.TransferStage, actor auth.Actor) (*models.TransferRequest, error) {
			gotActor = actor
			if stage != enums.TransferStageApproved {
				t.Fatalf("expected Approved got %q", stage)
			}
			return &models.TransferRequest{ID: id, Stage: stage, Amount: dec("300"), Currency: "USD"}, nil
		},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"stage":"Approved"}`))
	req = withActor(withURLParams(req, "transferId", transferID.String()), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !gotActor.IsAdmin() {
		t.Fatalf("expected admin actor got %+v", gotActor)
	}
}

func TestPaymentCreateRequiresActor(t *testing.T) {
	handler := PaymentCreate(fakePayments{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestPaymentCreateRejectsUnknownMethod(t *testing.T) {
	handler := PaymentCreate(fakePayments{
		recordFn: func(ctx context.Context, input payments.RecordInput, actor auth.Actor) (*payments.Receipt, error) {
			t.Fatalf("service should not be called")
			return nil, nil
		},
	}, nil)

	body := `{"fund_id":"` + uuid.NewString() + `","amount":"10","payee":"Clinic","method":"barter"}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), enums.RoleAdmin)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestRequirementProcessBuildsRequest(t *testing.T) {
	budgetID := uuid.New()
	handler := RequirementProcess(fakeProcessor{
		processFn: func(ctx context.Context, id requirements.ID, req requirements.Request) (*requirements.Result, error) {
			if id != requirements.HoldBudget {
				t.Fatalf("expected hold_budget got %q", id)
			}
			if req.BudgetID != budgetID || req.Scope != enums.AllocationScopeProject {
				t.Fatalf("unexpected request %+v", req)
			}
			if req.Actor == uuid.Nil {
				t.Fatalf("expected actor to be set")
			}
			return &requirements.Result{Requirement: id, Transaction: &models.FundTransaction{ID: uuid.New()}}, nil
		},
	}, nil)

	body := `{"scope":"project","target_id":"p-1","budget_id":"` + budgetID.String() + `","amount":"400"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = withActor(withURLParams(req, "requirement", "hold_budget"), enums.RoleStaff)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	handler := HealthReady(cfg, nil, map[string]Pinger{
		"db":    fakePinger{},
		"redis": fakePinger{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	got := decodeError(t, rec)
	details, ok := got.Details.(map[string]any)
	if !ok || details["redis"] != "down" || details["db"] != "up" {
		t.Fatalf("unexpected details %+v", got.Details)
	}
}
