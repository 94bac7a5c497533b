package enums

import "fmt"

// TransactionSubtype names the business event behind a transaction.
type TransactionSubtype string

const (
	TransactionSubtypeDeposit     TransactionSubtype = "deposit"
	TransactionSubtypeSpend       TransactionSubtype = "spend"
	TransactionSubtypeDonation    TransactionSubtype = "donation"
	TransactionSubtypePayment     TransactionSubtype = "payment"
	TransactionSubtypeTransferIn  TransactionSubtype = "transfer_in"
	TransactionSubtypeTransferOut TransactionSubtype = "transfer_out"
	TransactionSubtypeHold        TransactionSubtype = "hold"
)

var validTransactionSubtypes = []TransactionSubtype{
	TransactionSubtypeDeposit,
	TransactionSubtypeSpend,
	TransactionSubtypeDonation,
	TransactionSubtypePayment,
	TransactionSubtypeTransferIn,
	TransactionSubtypeTransferOut,
	TransactionSubtypeHold,
}

// String implements fmt.Stringer.
func (s TransactionSubtype) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TransactionSubtype.
func (s TransactionSubtype) IsValid() bool {
	for _, candidate := range validTransactionSubtypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTransactionSubtype converts raw input into a TransactionSubtype.
func ParseTransactionSubtype(value string) (TransactionSubtype, error) {
	for _, candidate := range validTransactionSubtypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction subtype %q", value)
}

// Type returns the transaction type a subtype always carries.
func (s TransactionSubtype) Type() TransactionType {
	switch s {
	case TransactionSubtypeDeposit, TransactionSubtypeDonation, TransactionSubtypeTransferIn:
		return TransactionTypeAdd
	default:
		return TransactionTypeUse
	}
}
