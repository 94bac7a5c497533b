package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/requirements"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

// RequirementProcessor runs workflow milestones.
type RequirementProcessor interface {
	Requirements() []requirements.ID
	Process(ctx context.Context, id requirements.ID, req requirements.Request) (*requirements.Result, error)
}

type requirementRequest struct {
	Scope     string `json:"scope" validate:"required"`
	TargetID  string `json:"target_id" validate:"required,max=200"`
	BudgetID  string `json:"budget_id"`
	AccountID string `json:"account_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Category  string `json:"category"`
}

func (r requirementRequest) toRequest(actor uuid.UUID) (requirements.Request, error) {
	scope, err := validators.ParseScope(r.Scope)
	if err != nil {
		return requirements.Request{}, err
	}
	budgetID, err := validators.ParseOptionalUUID(r.BudgetID, "budget_id")
	if err != nil {
		return requirements.Request{}, err
	}
	accountID, err := validators.ParseOptionalUUID(r.AccountID, "account_id")
	if err != nil {
		return requirements.Request{}, err
	}
	amount := decimal.Zero
	if strings.TrimSpace(r.Amount) != "" {
		if amount, err = validators.ParseAmount(r.Amount); err != nil {
			return requirements.Request{}, err
		}
	}
	category, err := validators.ParseOptionalCategory(r.Category)
	if err != nil {
		return requirements.Request{}, err
	}
	req := requirements.Request{
		Scope:    scope,
		TargetID: strings.TrimSpace(r.TargetID),
		Actor:    actor,
		Amount:   amount,
		Currency: strings.TrimSpace(r.Currency),
		Category: category,
	}
	if budgetID != nil {
		req.BudgetID = *budgetID
	}
	if accountID != nil {
		req.AccountID = *accountID
	}
	return req, nil
}

// RequirementList names the milestones the processor accepts.
func RequirementList(proc RequirementProcessor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, proc.Requirements())
	}
}

// RequirementProcess runs the milestone named in the path.
func RequirementProcess(proc RequirementProcessor, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload requirementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		req, err := payload.toRequest(actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := proc.Process(r.Context(), requirements.ID(chi.URLParam(r, "requirement")), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"requirement": result.Requirement,
			"transaction": transactionResponseFromModel(result.Transaction),
			"allocation":  allocationResponseFromModel(result.Allocation),
			"release":     releaseResponseFromModel(result.Release),
		})
	}
}
