package enums

import "fmt"

// AlertSeverity grades escalation alerts for operators.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

var validAlertSeverities = []AlertSeverity{
	AlertSeverityInfo,
	AlertSeverityWarning,
	AlertSeverityCritical,
}

// IsValid reports whether the value is a known AlertSeverity.
func (s AlertSeverity) IsValid() bool {
	for _, candidate := range validAlertSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// AlertType names the escalation scenarios the engine raises.
type AlertType string

const (
	AlertTypeOfferTimeout        AlertType = "offer_timeout"
	AlertTypeNegotiationLimit    AlertType = "negotiation_limit"
	AlertTypeBroadcastUnanswered AlertType = "broadcast_unanswered"
)

var validAlertTypes = []AlertType{
	AlertTypeOfferTimeout,
	AlertTypeNegotiationLimit,
	AlertTypeBroadcastUnanswered,
}

// IsValid reports whether the value is a known AlertType.
func (a AlertType) IsValid() bool {
	for _, candidate := range validAlertTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// TaskPriority orders operator tasks.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityNormal TaskPriority = "normal"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

var validTaskPriorities = []TaskPriority{
	TaskPriorityLow,
	TaskPriorityNormal,
	TaskPriorityHigh,
	TaskPriorityUrgent,
}

// IsValid reports whether the value is a known TaskPriority.
func (p TaskPriority) IsValid() bool {
	for _, candidate := range validTaskPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// TaskType names the operator task categories produced by escalations.
type TaskType string

const (
	TaskTypeManualReassignment TaskType = "manual_reassignment"
	TaskTypeNegotiationReview  TaskType = "negotiation_review"
)

// IsValid reports whether the value is a known TaskType.
func (t TaskType) IsValid() bool {
	return t == TaskTypeManualReassignment || t == TaskTypeNegotiationReview
}

// TaskStatus tracks operator task completion.
type TaskStatus string

const (
	TaskStatusOpen TaskStatus = "open"
	TaskStatusDone TaskStatus = "done"
)

// ParseAlertSeverity converts raw input into an AlertSeverity.
func ParseAlertSeverity(value string) (AlertSeverity, error) {
	for _, candidate := range validAlertSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid alert severity %q", value)
}

// ParseTaskPriority converts raw input into a TaskPriority.
func ParseTaskPriority(value string) (TaskPriority, error) {
	for _, candidate := range validTaskPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid task priority %q", value)
}
