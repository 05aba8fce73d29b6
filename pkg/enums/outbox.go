package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAssignment OutboxAggregateType = "assignment"
	AggregateEscalation OutboxAggregateType = "escalation"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAssignment,
	AggregateEscalation,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAssignmentCreated      OutboxEventType = "assignment_created"
	EventAssignmentAccepted     OutboxEventType = "assignment_accepted"
	EventAssignmentDeclined     OutboxEventType = "assignment_declined"
	EventAssignmentAutoDeclined OutboxEventType = "assignment_auto_declined"
	EventAssignmentTimedOut     OutboxEventType = "assignment_timed_out"
	EventAssignmentCancelled    OutboxEventType = "assignment_cancelled"
	EventDateProposed           OutboxEventType = "date_proposed"
	EventEscalationRaised       OutboxEventType = "escalation_raised"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAssignmentCreated,
	EventAssignmentAccepted,
	EventAssignmentDeclined,
	EventAssignmentAutoDeclined,
	EventAssignmentTimedOut,
	EventAssignmentCancelled,
	EventDateProposed,
	EventEscalationRaised,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
