// Package money holds the fixed-point rules shared by every balance in the
// ledger: two decimal places for amounts, eight for exchange rates.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	Scale     int32 = 2
	RateScale int32 = 8
)

// Round brings an amount to money scale using banker-free half-up rounding.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse reads a user supplied amount, rejecting more than two decimal places.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.Equal(d.Round(Scale)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, Scale)
	}
	return d, nil
}

// ToBase converts a native amount to the base currency: amount / rate.
func ToBase(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.DivRound(rate, Scale)
}

// FromBase converts a base amount to a native currency: amount * rate.
func FromBase(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate))
}

// WithinEpsilon reports |a-b| <= eps.
func WithinEpsilon(a, b, eps decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(eps)
}

// Percent returns 100*part/whole at money scale, zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).DivRound(whole, Scale)
}
