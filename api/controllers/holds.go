package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/holds"
	"github.com/reliefbridge/fundledger/pkg/db/models"
	"github.com/reliefbridge/fundledger/pkg/enums"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type holdRequest struct {
	BudgetID string `json:"budget_id" validate:"required,uuid"`
	Amount   string `json:"amount" validate:"required"`
	Currency string `json:"currency"`
	Scope    string `json:"scope" validate:"required"`
	TargetID string `json:"target_id" validate:"required,max=200"`
	Category string `json:"category"`
}

func (r holdRequest) toInput() (holds.HoldInput, error) {
	budgetID, err := validators.ParseOptionalUUID(r.BudgetID, "budget_id")
	if err != nil {
		return holds.HoldInput{}, err
	}
	amount, err := validators.ParseAmount(r.Amount)
	if err != nil {
		return holds.HoldInput{}, err
	}
	scope, err := validators.ParseScope(r.Scope)
	if err != nil {
		return holds.HoldInput{}, err
	}
	category, err := validators.ParseOptionalCategory(r.Category)
	if err != nil {
		return holds.HoldInput{}, err
	}
	return holds.HoldInput{
		BudgetID: *budgetID,
		Amount:   amount,
		Currency: strings.TrimSpace(r.Currency),
		Scope:    scope,
		TargetID: strings.TrimSpace(r.TargetID),
		Category: category,
	}, nil
}

// HoldCreate reserves budget for a case or project.
func HoldCreate(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload holdRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.Hold(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transactionResponseFromModel(txn))
	}
}

// HoldCommit marks the pending hold on a target as spent.
func HoldCommit(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return holdSettle(logg, svc.Commit)
}

// HoldReverse returns the pending hold on a target to the budget.
func HoldReverse(svc holds.Service, logg *logger.Logger) http.HandlerFunc {
	return holdSettle(logg, svc.Reverse)
}

func holdSettle(logg *logger.Logger, op func(context.Context, enums.AllocationScope, string) (*models.FundTransaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := validators.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := op(r.Context(), scope, chi.URLParam(r, "targetId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// settling a target without a pending hold is a no-op
		responses.WriteSuccess(w, map[string]any{
			"settled":     txn != nil,
			"transaction": transactionResponseFromModel(txn),
		})
	}
}
