package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/allocations"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type allocationCreateRequest struct {
	Scope     string `json:"scope" validate:"required"`
	TargetID  string `json:"target_id" validate:"required,max=200"`
	AccountID string `json:"account_id" validate:"required,uuid"`
	Amount    string `json:"amount" validate:"required"`
	Category  string `json:"category" validate:"required"`
}

type releaseCreateRequest struct {
	Scope    string `json:"scope" validate:"required"`
	TargetID string `json:"target_id" validate:"required,max=200"`
	Amount   string `json:"amount" validate:"required"`
}

type releaseRejectRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// AllocationCreate earmarks region account funds for a case or project.
func AllocationCreate(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload allocationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := validators.ParseScope(payload.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := validators.ParseOptionalUUID(payload.AccountID, "account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := validators.ParseOptionalCategory(payload.Category)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Allocate(r.Context(), allocations.AllocateInput{
			Scope:     scope,
			TargetID:  strings.TrimSpace(payload.TargetID),
			AccountID: *accountID,
			Amount:    amount,
			Category:  *category,
			Actor:     &actor.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, allocationResponseFromModel(created))
	}
}

// AllocationGet reports the allocation and derived state of a target.
func AllocationGet(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := validators.ParseScope(chi.URLParam(r, "scope"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.GetAllocation(r.Context(), scope, chi.URLParam(r, "targetId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationViewResponseFrom(view))
	}
}

// ReleaseCreate asks to draw down part of an allocation.
func ReleaseCreate(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload releaseCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := validators.ParseScope(payload.Scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.RequestRelease(r.Context(), allocations.ReleaseInput{
			Scope:       scope,
			TargetID:    strings.TrimSpace(payload.TargetID),
			Amount:      amount,
			RequestedBy: actor.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, releaseResponseFromModel(created))
	}
}

// ReleaseList filters by ?scope=, ?target_id= and ?status=.
func ReleaseList(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var filter allocations.ReleaseFilter
		if raw := strings.TrimSpace(q.Get("scope")); raw != "" {
			scope, err := validators.ParseScope(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter.Scope = &scope
		}
		if raw := strings.TrimSpace(q.Get("target_id")); raw != "" {
			filter.TargetID = &raw
		}
		if raw := strings.TrimSpace(q.Get("status")); raw != "" {
			status, err := enums.ParseReleaseStatus(strings.ToLower(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		rows, err := svc.ListReleaseRequests(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, releaseResponseFromModel))
	}
}

// ReleaseApprove applies a pending release to its allocation.
func ReleaseApprove(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "releaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.ApproveRelease(r.Context(), id, actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, releaseResponseFromModel(updated))
	}
}

// ReleaseReject closes a pending release without touching the allocation.
func ReleaseReject(svc allocations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "releaseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload releaseRejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.RejectRelease(r.Context(), id, actor.UserID, strings.TrimSpace(payload.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, releaseResponseFromModel(updated))
	}
}
