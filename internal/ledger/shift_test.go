package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

func TestShiftsPreserveIdentity(t *testing.T) {
	for subtype, s := range postShifts {
		assert.Equal(t, s.total, s.used+s.onHold+s.available, "post shift for %s", subtype)
	}
	for status, s := range settleShifts {
		assert.Equal(t, s.total, s.used+s.onHold+s.available, "settle shift for %s", status)
	}
}

func TestShiftsCoverEverySubtype(t *testing.T) {
	for _, subtype := range []enums.TransactionSubtype{
		enums.TransactionSubtypeDeposit,
		enums.TransactionSubtypeSpend,
		enums.TransactionSubtypeDonation,
		enums.TransactionSubtypePayment,
		enums.TransactionSubtypeTransferIn,
		enums.TransactionSubtypeTransferOut,
		enums.TransactionSubtypeHold,
	} {
		s, ok := postShifts[subtype]
		assert.True(t, ok, "missing shift for %s", subtype)
		assert.Equal(t, subtype.Type() == enums.TransactionTypeUse, s.debit() > 0, "debit direction for %s", subtype)
	}
}

func TestEffectOfHoldFollowsStatus(t *testing.T) {
	amount := decimal.NewFromInt(500)

	pending := Effect(enums.TransactionSubtypeHold, enums.TransactionStatusPending, amount)
	assert.True(t, pending.OnHold.Equal(amount))
	assert.True(t, pending.Available.Equal(amount.Neg()))

	completed := Effect(enums.TransactionSubtypeHold, enums.TransactionStatusCompleted, amount)
	assert.True(t, completed.OnHold.IsZero())
	assert.True(t, completed.Used.Equal(amount))
	assert.True(t, completed.Available.Equal(amount.Neg()))

	reversed := Effect(enums.TransactionSubtypeHold, enums.TransactionStatusReversed, amount)
	assert.True(t, reversed.OnHold.IsZero())
	assert.True(t, reversed.Available.IsZero())
	assert.True(t, reversed.Used.IsZero())
}

func TestTransferOutLeavesAvailableTwice(t *testing.T) {
	d := postShifts[enums.TransactionSubtypeTransferOut].delta(decimal.NewFromInt(300))
	assert.Equal(t, "-300", d.Total.String())
	assert.Equal(t, "300", d.Used.String())
	assert.Equal(t, "-600", d.Available.String())
}
