package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/pkg/enums"
	pkgerrors "github.com/reliefbridge/fundledger/pkg/errors"
	"github.com/reliefbridge/fundledger/pkg/money"
)

// ParseUUIDParam reads a chi path parameter as a UUID.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid path parameter").WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// ParseOptionalUUID parses a body or query field that may be empty.
func ParseOptionalUUID(raw, field string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid uuid").WithDetails(map[string]any{"field": field})
	}
	return &id, nil
}

// ParseAmount reads a money string. Sign checks are left to the services so
// that they report INVALID_AMOUNT consistently.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := money.Parse(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInvalidAmount, err, "invalid amount")
	}
	return d, nil
}

// ParseOptionalCategory lower-cases and validates a category when present.
func ParseOptionalCategory(raw string) (*enums.Category, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return nil, nil
	}
	category := enums.Category(raw)
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownCategory, "unknown category").WithDetails(map[string]any{"category": raw})
	}
	return &category, nil
}

// ParseScope validates an allocation scope path or body value.
func ParseScope(raw string) (enums.AllocationScope, error) {
	scope := enums.AllocationScope(strings.ToLower(strings.TrimSpace(raw)))
	if !scope.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid scope").WithDetails(map[string]any{"scope": raw})
	}
	return scope, nil
}

// ParseOptionalTarget validates a target reference; both parts or neither.
func ParseOptionalTarget(targetType, targetID string) (*enums.TargetType, *string, error) {
	targetType = strings.ToLower(strings.TrimSpace(targetType))
	targetID = strings.TrimSpace(targetID)
	if targetType == "" && targetID == "" {
		return nil, nil, nil
	}
	if targetType == "" || targetID == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "target_type and target_id go together")
	}
	tt := enums.TargetType(targetType)
	if !tt.IsValid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target_type").WithDetails(map[string]any{"target_type": targetType})
	}
	return &tt, &targetID, nil
}
