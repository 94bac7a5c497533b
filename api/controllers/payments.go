package controllers

import (
	"net/http"
	"strings"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/payments"
	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type paymentCreateRequest struct {
	FundID     string  `json:"fund_id" validate:"required,uuid"`
	Amount     string  `json:"amount" validate:"required"`
	Currency   string  `json:"currency"`
	Payee      string  `json:"payee" validate:"required,max=200"`
	Method     string  `json:"method" validate:"required"`
	Notes      *string `json:"notes" validate:"omitempty,max=1000"`
	Category   string  `json:"category"`
	TargetType string  `json:"target_type"`
	TargetID   string  `json:"target_id"`
	Sequence   *int    `json:"sequence"`
}

func (r paymentCreateRequest) toInput() (payments.RecordInput, error) {
	fundID, err := validators.ParseOptionalUUID(r.FundID, "fund_id")
	if err != nil {
		return payments.RecordInput{}, err
	}
	amount, err := validators.ParseAmount(r.Amount)
	if err != nil {
		return payments.RecordInput{}, err
	}
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(r.Method)))
	if err != nil {
		return payments.RecordInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	category, err := validators.ParseOptionalCategory(r.Category)
	if err != nil {
		return payments.RecordInput{}, err
	}
	targetType, targetID, err := validators.ParseOptionalTarget(r.TargetType, r.TargetID)
	if err != nil {
		return payments.RecordInput{}, err
	}
	return payments.RecordInput{
		FundID:     *fundID,
		Amount:     amount,
		Currency:   strings.TrimSpace(r.Currency),
		Payee:      r.Payee,
		Method:     method,
		Notes:      r.Notes,
		Category:   category,
		TargetType: targetType,
		TargetID:   targetID,
		Sequence:   r.Sequence,
	}, nil
}

// PaymentCreate records money leaving a fund.
func PaymentCreate(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := requireActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload paymentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.RecordPayment(r.Context(), input, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"payment":     paymentResponseFromModel(receipt.Payment),
			"transaction": transactionResponseFromModel(receipt.Transaction),
		})
	}
}

func PaymentGet(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "paymentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		found, err := svc.GetPayment(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, paymentResponseFromModel(found))
	}
}

// PaymentList lists the payments made from ?fund_id=.
func PaymentList(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fundID, err := validators.ParseOptionalUUID(r.URL.Query().Get("fund_id"), "fund_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if fundID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "fund_id is required"))
			return
		}
		rows, err := svc.ListPayments(r.Context(), *fundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, paymentResponseFromModel))
	}
}
