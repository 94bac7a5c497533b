package controllers

import (
	"net/http"
	"strings"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/transfers"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type transferCreateRequest struct {
	FromAccountID string  `json:"from_account_id" validate:"required,uuid"`
	ToAccountID   string  `json:"to_account_id" validate:"required,uuid"`
	Amount        string  `json:"amount" validate:"required"`
	Currency      string  `json:"currency"`
	Notes         *string `json:"notes" validate:"omitempty,max=1000"`
}

type transferStageRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// TransferCreate opens a transfer request in Pending Assessment.
func TransferCreate(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transferCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := validators.ParseOptionalUUID(payload.FromAccountID, "from_account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseOptionalUUID(payload.ToAccountID, "to_account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount(payload.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.RequestTransfer(r.Context(), transfers.RequestInput{
			FromAccountID: *from,
			ToAccountID:   *to,
			Amount:        amount,
			Currency:      strings.TrimSpace(payload.Currency),
			Notes:         payload.Notes,
			RequestedBy:   actor.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, transferResponseFromModel(created))
	}
}

func TransferGet(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, err := svc.GetTransfer(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transferResponseFromModel(found))
	}
}

// TransferList filters by ?stage= and ?account_id=.
func TransferList(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter transfers.Filter
		if raw := strings.TrimSpace(r.URL.Query().Get("stage")); raw != "" {
			stage, err := enums.ParseTransferStage(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stage"))
				return
			}
			filter.Stage = &stage
		}
		accountID, err := validators.ParseOptionalUUID(r.URL.Query().Get("account_id"), "account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.AccountID = accountID

		rows, err := svc.ListTransfers(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, transferResponseFromModel))
	}
}

// TransferAdvanceStage moves a transfer forward; Approved posts the money.
func TransferAdvanceStage(svc transfers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "transferId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transferStageRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AdvanceStage(r.Context(), id, enums.TransferStage(strings.TrimSpace(payload.Stage)), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transferResponseFromModel(updated))
	}
}
