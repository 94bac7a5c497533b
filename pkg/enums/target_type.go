package enums

import "fmt"

// TargetType names what a transaction was made for.
type TargetType string

const (
	TargetTypeCase     TargetType = "case"
	TargetTypeProject  TargetType = "project"
	TargetTypePayment  TargetType = "payment"
	TargetTypeTransfer TargetType = "transfer"
)

var validTargetTypes = []TargetType{
	TargetTypeCase,
	TargetTypeProject,
	TargetTypePayment,
	TargetTypeTransfer,
}

// String implements fmt.Stringer.
func (t TargetType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TargetType.
func (t TargetType) IsValid() bool {
	for _, candidate := range validTargetTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTargetType converts raw input into a TargetType.
func ParseTargetType(value string) (TargetType, error) {
	for _, candidate := range validTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid target type %q", value)
}
