package enums

import "fmt"

// TransferStage is the assessment stage of a fund transfer request.
type TransferStage string

const (
	TransferStagePendingAssessment TransferStage = "Pending Assessment"
	TransferStageOnGoing           TransferStage = "On Going"
	TransferStageApproved          TransferStage = "Approved"
)

var validTransferStages = []TransferStage{
	TransferStagePendingAssessment,
	TransferStageOnGoing,
	TransferStageApproved,
}

// String implements fmt.Stringer.
func (t TransferStage) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferStage.
func (t TransferStage) IsValid() bool {
	for _, candidate := range validTransferStages {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransferStage converts raw input into a TransferStage.
func ParseTransferStage(value string) (TransferStage, error) {
	for _, candidate := range validTransferStages {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer stage %q", value)
}

// IsTerminal reports whether no further stage change is allowed.
func (t TransferStage) IsTerminal() bool {
	return t == TransferStageApproved
}
