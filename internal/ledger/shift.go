package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// shift holds the coefficients a movement applies to the total, used, onHold
// and available columns. The same shift is applied to the account (base
// amount), the currency row (native amount) and the category bucket (base
// amount), so total == used + onHold + available holds after every posting.
type shift struct {
	total, used, onHold, available int64
}

var postShifts = map[enums.TransactionSubtype]shift{
	enums.TransactionSubtypeDeposit:     {total: 1, available: 1},
	enums.TransactionSubtypeDonation:    {total: 1, available: 1},
	enums.TransactionSubtypeTransferIn:  {total: 1, available: 1},
	enums.TransactionSubtypeSpend:       {used: 1, available: -1},
	enums.TransactionSubtypePayment:     {total: -1, available: -1},
	enums.TransactionSubtypeTransferOut: {total: -1, used: 1, available: -2},
	enums.TransactionSubtypeHold:        {onHold: 1, available: -1},
}

var settleShifts = map[enums.TransactionStatus]shift{
	enums.TransactionStatusCompleted: {used: 1, onHold: -1},
	enums.TransactionStatusReversed:  {onHold: -1, available: 1},
}

// debit is how many times the amount leaves available.
func (s shift) debit() int64 {
	if s.available < 0 {
		return -s.available
	}
	return 0
}

func (s shift) plus(o shift) shift {
	return shift{
		total:     s.total + o.total,
		used:      s.used + o.used,
		onHold:    s.onHold + o.onHold,
		available: s.available + o.available,
	}
}

func scaled(amount decimal.Decimal, k int64) decimal.Decimal {
	if k == 0 {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(k))
}

// Delta is a change to the four balance columns.
type Delta struct {
	Total     decimal.Decimal
	Used      decimal.Decimal
	OnHold    decimal.Decimal
	Available decimal.Decimal
}

func (s shift) delta(amount decimal.Decimal) Delta {
	return Delta{
		Total:     scaled(amount, s.total),
		Used:      scaled(amount, s.used),
		OnHold:    scaled(amount, s.onHold),
		Available: scaled(amount, s.available),
	}
}

// Add sums two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		Total:     d.Total.Add(o.Total),
		Used:      d.Used.Add(o.Used),
		OnHold:    d.OnHold.Add(o.OnHold),
		Available: d.Available.Add(o.Available),
	}
}

// Effect is the net change a logged transaction has made to its account,
// given the status it is in now. Replaying Effect over an account's log
// reproduces its balances.
func Effect(subtype enums.TransactionSubtype, status enums.TransactionStatus, amount decimal.Decimal) Delta {
	s, ok := postShifts[subtype]
	if !ok {
		return Delta{}
	}
	if subtype == enums.TransactionSubtypeHold {
		if settle, ok := settleShifts[status]; ok {
			s = s.plus(settle)
		}
	}
	return s.delta(amount)
}
