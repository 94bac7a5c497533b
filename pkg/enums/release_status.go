package enums

import "fmt"

// ReleaseStatus tracks a fund release request.
type ReleaseStatus string

const (
	ReleaseStatusPending  ReleaseStatus = "pending"
	ReleaseStatusApproved ReleaseStatus = "approved"
	ReleaseStatusRejected ReleaseStatus = "rejected"
)

var validReleaseStatuses = []ReleaseStatus{
	ReleaseStatusPending,
	ReleaseStatusApproved,
	ReleaseStatusRejected,
}

// String implements fmt.Stringer.
func (r ReleaseStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReleaseStatus.
func (r ReleaseStatus) IsValid() bool {
	for _, candidate := range validReleaseStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReleaseStatus converts raw input into a ReleaseStatus.
func ParseReleaseStatus(value string) (ReleaseStatus, error) {
	for _, candidate := range validReleaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid release status %q", value)
}
