package enums

import "fmt"

// ServiceOrderStatus tracks the parent order lifecycle as seen by matching.
type ServiceOrderStatus string

const (
	ServiceOrderStatusOpen      ServiceOrderStatus = "open"
	ServiceOrderStatusCancelled ServiceOrderStatus = "cancelled"
	ServiceOrderStatusCompleted ServiceOrderStatus = "completed"
)

var validServiceOrderStatuses = []ServiceOrderStatus{
	ServiceOrderStatusOpen,
	ServiceOrderStatusCancelled,
	ServiceOrderStatusCompleted,
}

// IsValid reports whether the value is a known ServiceOrderStatus.
func (s ServiceOrderStatus) IsValid() bool {
	for _, candidate := range validServiceOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceOrderStatus converts raw input into a ServiceOrderStatus.
func ParseServiceOrderStatus(value string) (ServiceOrderStatus, error) {
	for _, candidate := range validServiceOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service order status %q", value)
}

// ProjectAssignmentMode is consumed from country configuration; it steers
// upstream project routing, not this engine directly.
type ProjectAssignmentMode string

const (
	ProjectAssignmentModeAuto   ProjectAssignmentMode = "auto"
	ProjectAssignmentModeManual ProjectAssignmentMode = "manual"
)

// IsValid reports whether the value is a known ProjectAssignmentMode.
func (m ProjectAssignmentMode) IsValid() bool {
	return m == ProjectAssignmentModeAuto || m == ProjectAssignmentModeManual
}
