package enums

import "fmt"

// AssignmentMode selects the creation policy for an assignment. Immutable
// once the assignment exists.
type AssignmentMode string

const (
	AssignmentModeDirect     AssignmentMode = "direct"
	AssignmentModeOffer      AssignmentMode = "offer"
	AssignmentModeBroadcast  AssignmentMode = "broadcast"
	AssignmentModeAutoAccept AssignmentMode = "auto_accept"
)

var validAssignmentModes = []AssignmentMode{
	AssignmentModeDirect,
	AssignmentModeOffer,
	AssignmentModeBroadcast,
	AssignmentModeAutoAccept,
}

// String implements fmt.Stringer.
func (m AssignmentMode) String() string {
	return string(m)
}

// IsValid reports whether the value is a known AssignmentMode.
func (m AssignmentMode) IsValid() bool {
	for _, candidate := range validAssignmentModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// AutoAccepts reports whether assignments in this mode are created already
// accepted, skipping the offer window entirely.
func (m AssignmentMode) AutoAccepts() bool {
	return m == AssignmentModeDirect || m == AssignmentModeAutoAccept
}

// ParseAssignmentMode converts raw input into an AssignmentMode.
func ParseAssignmentMode(value string) (AssignmentMode, error) {
	for _, candidate := range validAssignmentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment mode %q", value)
}
