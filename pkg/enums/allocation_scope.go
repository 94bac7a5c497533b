package enums

import "fmt"

// AllocationScope distinguishes case allocations from project allocations.
type AllocationScope string

const (
	AllocationScopeCase    AllocationScope = "case"
	AllocationScopeProject AllocationScope = "project"
)

var validAllocationScopes = []AllocationScope{
	AllocationScopeCase,
	AllocationScopeProject,
}

// String implements fmt.Stringer.
func (a AllocationScope) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AllocationScope.
func (a AllocationScope) IsValid() bool {
	for _, candidate := range validAllocationScopes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAllocationScope converts raw input into a AllocationScope.
func ParseAllocationScope(value string) (AllocationScope, error) {
	for _, candidate := range validAllocationScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid allocation scope %q", value)
}
