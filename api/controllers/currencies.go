package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/api/responses"
	"github.com/reliefbridge/fundledger/api/validators"
	"github.com/reliefbridge/fundledger/internal/currency"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/logger"
)

type currencyUpsertRequest struct {
	Name string `json:"name" validate:"max=64"`
	Rate string `json:"rate" validate:"required"`
}

// CurrencyList returns every registered currency.
func CurrencyList(svc currency.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, mapSlice(rows, currencyResponseFromModel))
	}
}

// CurrencyUpsert creates the currency or replaces its rate.
func CurrencyUpsert(svc currency.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload currencyUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(payload.Rate))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInvalidRate, err, "invalid rate"))
			return
		}

		saved, err := svc.Upsert(r.Context(), currency.UpsertInput{
			Code: chi.URLParam(r, "code"),
			Name: strings.TrimSpace(payload.Name),
			Rate: rate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, currencyResponseFromModel(saved))
	}
}

// CurrencyDelete removes a non-base currency.
func CurrencyDelete(svc currency.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
