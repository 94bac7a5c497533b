package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/ledger"
	"github.com/reliefbridge/fundledger/internal/reporting"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
	"github.com/reliefbridge/fundledger/pkg/pagination"
)

type accountCreateRequest struct {
	Kind     string  `json:"kind" validate:"required"`
	Name     string  `json:"name" validate:"required,max=200"`
	OwnerRef *string `json:"owner_ref" validate:"omitempty,max=200"`
	ParentID string  `json:"parent_id"`
	Currency string  `json:"currency"`
}

func (r accountCreateRequest) toInput() (ledger.CreateAccountInput, error) {
	kind, err := enums.ParseAccountKind(strings.ToLower(strings.TrimSpace(r.Kind)))
	if err != nil {
		return ledger.CreateAccountInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account kind")
	}
	parentID, err := validators.ParseOptionalUUID(r.ParentID, "parent_id")
	if err != nil {
		return ledger.CreateAccountInput{}, err
	}
	var owner *string
	if r.OwnerRef != nil {
		if trimmed := strings.TrimSpace(*r.OwnerRef); trimmed != "" {
			owner = &trimmed
		}
	}
	return ledger.CreateAccountInput{
		Kind:     kind,
		Name:     validators.SanitizeString(r.Name, 200),
		OwnerRef: owner,
		ParentID: parentID,
		Currency: strings.TrimSpace(r.Currency),
	}, nil
}

// fundMoveRequest is the body of add-fund and use-fund.
type fundMoveRequest struct {
	Amount     string  `json:"amount" validate:"required"`
	Currency   string  `json:"currency"`
	Category   string  `json:"category"`
	TargetType string  `json:"target_type"`
	TargetID   string  `json:"target_id"`
	Note       *string `json:"note" validate:"omitempty,max=500"`
}

func (r fundMoveRequest) toInput() (ledger.FundInput, error) {
	amount, err := validators.ParseAmount(r.Amount)
	if err != nil {
		return ledger.FundInput{}, err
	}
	category, err := validators.ParseOptionalCategory(r.Category)
	if err != nil {
		return ledger.FundInput{}, err
	}
	targetType, targetID, err := validators.ParseOptionalTarget(r.TargetType, r.TargetID)
	if err != nil {
		return ledger.FundInput{}, err
	}
	return ledger.FundInput{
		Amount:     amount,
		Currency:   strings.TrimSpace(r.Currency),
		Category:   category,
		TargetType: targetType,
		TargetID:   targetID,
		Note:       r.Note,
	}, nil
}

// AccountCreate opens a region account, fund, sub-fund or budget.
func AccountCreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload accountCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreateAccount(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, accountResponseFromModel(created))
	}
}

func AccountGet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		acct, err := svc.GetAccount(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accountResponseFromModel(acct))
	}
}

// AccountList filters by ?kind= and ?parent_id=.
func AccountList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter ledger.AccountFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("kind")); raw != "" {
			kind, err := enums.ParseAccountKind(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account kind"))
				return
			}
			filter.Kind = &kind
		}
		parentID, err := validators.ParseOptionalUUID(r.URL.Query().Get("parent_id"), "parent_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.ParentID = parentID

		rows, err := svc.ListAccounts(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, accountResponseFromModel))
	}
}

func AccountDelete(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteAccount(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AccountBalance returns base totals, or one currency row with ?currency=.
// ?breakdown=currencies lists every currency row instead.
func AccountBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if strings.EqualFold(r.URL.Query().Get("breakdown"), "currencies") {
			rows, err := svc.ListCurrencyBalances(r.Context(), id)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, rows)
			return
		}
		balance, err := svc.GetBalance(r.Context(), id, r.URL.Query().Get("currency"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

func AccountCategories(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		views, err := svc.GetCategoryBalances(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// AccountTransactions pages the log newest first with ?limit= and ?cursor=.
func AccountTransactions(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListTransactions(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[*transactionResponse]{
			Items:      mapSlice(page.Items, transactionResponseFromModel),
			NextCursor: page.NextCursor,
		})
	}
}

// AccountAddFund credits an account.
func AccountAddFund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return fundMove(logg, svc.AddFund)
}

// AccountUseFund spends from an account.
func AccountUseFund(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return fundMove(logg, svc.UseFund)
}

func fundMove(logg *logger.Logger, op func(ctx context.Context, input ledger.FundInput) (*models.FundTransaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload fundMoveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.AccountID = id

		txn, err := op(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transactionResponseFromModel(txn))
	}
}

func AccountScopePercentages(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pct, err := svc.ScopePercentages(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pct)
	}
}

func AccountDashboard(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dash, err := svc.Dashboard(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"account":           accountResponseFromModel(dash.Account),
			"balance":           dash.Balance,
			"currencies":        dash.Currencies,
			"categories":        dash.Categories,
			"scope_percentages": dash.ScopePercentages,
		})
	}
}

// AccountReconcile runs the integrity checks for one account on demand.
func AccountReconcile(svc reporting.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "accountId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		report, err := svc.Reconcile(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !report.OK() && logg != nil {
			ctx := logg.WithAccountID(r.Context(), id.String())
			logg.Warn(logg.WithField(ctx, "violations", len(report.Violations)), "ledger.reconcile_violation")
		}
		responses.WriteSuccess(w, map[string]any{
			"account_id": report.AccountID,
			"checked_at": report.CheckedAt,
			"ok":         report.OK(),
			"violations": report.Violations,
		})
	}
}
