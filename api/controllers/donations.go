package controllers

import (
	"net/http"
	"strings"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/donations"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type donationCreateRequest struct {
	Donor      string `json:"donor" validate:"required,max=200"`
	AccountID  string `json:"account_id" validate:"required,uuid"`
	FundID     string `json:"fund_id" validate:"required,uuid"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency"`
	Category   string `json:"category"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
}

// DonationCreate credits a donation to an account and a fund.
func DonationCreate(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload donationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		accountID, err := validators.ParseOptionalUUID(payload.AccountID, "account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fundID, err := validators.ParseOptionalUUID(payload.FundID, "fund_id")
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
		targetType, targetID, err := validators.ParseOptionalTarget(payload.TargetType, payload.TargetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.RecordDonation(r.Context(), donations.RecordInput{
			Donor:      validators.SanitizeString(payload.Donor, 200),
			AccountID:  *accountID,
			FundID:     *fundID,
			Amount:     amount,
			Currency:   strings.TrimSpace(payload.Currency),
			Category:   category,
			TargetType: targetType,
			TargetID:   targetID,
			RecordedBy: actor.UserID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"donation":      donationResponseFromModel(receipt.Donation),
			"account_entry": transactionResponseFromModel(receipt.AccountEntry),
			"fund_entry":    transactionResponseFromModel(receipt.FundEntry),
		})
	}
}

// DonationList lists donations touching ?account_id= as account or fund.
func DonationList(svc donations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := validators.ParseOptionalUUID(r.URL.Query().Get("account_id"), "account_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if accountID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "account_id is required"))
			return
		}
		rows, err := svc.ListDonations(r.Context(), *accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, donationResponseFromModel))
	}
}
