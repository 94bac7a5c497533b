package enums

import "fmt"

// AccountKind identifies which kind of balance holder a ledger account is.
type AccountKind string

const (
	AccountKindRegionAccount AccountKind = "region_account"
	AccountKindFinancialFund AccountKind = "financial_fund"
	AccountKindSubFund       AccountKind = "sub_fund"
	AccountKindUserBudget    AccountKind = "user_budget"
)

var validAccountKinds = []AccountKind{
	AccountKindRegionAccount,
	AccountKindFinancialFund,
	AccountKindSubFund,
	AccountKindUserBudget,
}

// String implements fmt.Stringer.
func (a AccountKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AccountKind.
func (a AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccountKind converts raw input into a AccountKind.
func ParseAccountKind(value string) (AccountKind, error) {
	for _, candidate := range validAccountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account kind %q", value)
}
