package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
)

// AssignmentCreatedEvent signals a new assignment row, in any mode.
type AssignmentCreatedEvent struct {
	AssignmentID   uuid.UUID              `json:"assignment_id"`
	ServiceOrderID uuid.UUID              `json:"service_order_id"`
	ProviderID     uuid.UUID              `json:"provider_id"`
	WorkTeamID     *uuid.UUID             `json:"work_team_id,omitempty"`
	Mode           enums.AssignmentMode   `json:"mode"`
	Status         enums.AssignmentStatus `json:"status"`
	Score          float64                `json:"score"`
	OfferExpiresAt *time.Time             `json:"offer_expires_at,omitempty"`
}

// AssignmentAcceptedEvent is emitted when an offer is accepted, whether by a
// provider action or by the engine itself in auto-accept modes.
type AssignmentAcceptedEvent struct {
	AssignmentID   uuid.UUID  `json:"assignment_id"`
	ServiceOrderID uuid.UUID  `json:"service_order_id"`
	ProviderID     uuid.UUID  `json:"provider_id"`
	AcceptedAt     time.Time  `json:"accepted_at"`
	AcceptedDate   *time.Time `json:"accepted_date,omitempty"`
}

// AssignmentDeclinedEvent is emitted when a provider declines an offer.
type AssignmentDeclinedEvent struct {
	AssignmentID   uuid.UUID `json:"assignment_id"`
	ServiceOrderID uuid.UUID `json:"service_order_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	Reason         string    `json:"reason"`
	DeclinedAt     time.Time `json:"declined_at"`
}

// AssignmentAutoDeclinedEvent covers broadcast siblings closed when another
// provider accepted first.
type AssignmentAutoDeclinedEvent struct {
	AssignmentID        uuid.UUID `json:"assignment_id"`
	ServiceOrderID      uuid.UUID `json:"service_order_id"`
	ProviderID          uuid.UUID `json:"provider_id"`
	WinningAssignmentID uuid.UUID `json:"winning_assignment_id"`
}

// AssignmentTimedOutEvent is emitted by the expiry sweep when a pending offer
// passes its deadline unanswered.
type AssignmentTimedOutEvent struct {
	AssignmentID   uuid.UUID `json:"assignment_id"`
	ServiceOrderID uuid.UUID `json:"service_order_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	ExpiredAt      time.Time `json:"expired_at"`
}

// AssignmentCancelledEvent is emitted when an operator withdraws an offer.
type AssignmentCancelledEvent struct {
	AssignmentID   uuid.UUID `json:"assignment_id"`
	ServiceOrderID uuid.UUID `json:"service_order_id"`
	ProviderID     uuid.UUID `json:"provider_id"`
	Reason         string    `json:"reason,omitempty"`
}

// DateProposedEvent records one round of date negotiation.
type DateProposedEvent struct {
	AssignmentID   uuid.UUID              `json:"assignment_id"`
	ServiceOrderID uuid.UUID              `json:"service_order_id"`
	Round          int                    `json:"round"`
	ProposedDate   time.Time              `json:"proposed_date"`
	ProposedBy     enums.NegotiationParty `json:"proposed_by"`
}

// EscalationRaisedEvent tells downstream systems an alert and operator task
// were created.
type EscalationRaisedEvent struct {
	AlertID      uuid.UUID           `json:"alert_id"`
	TaskID       uuid.UUID           `json:"task_id"`
	AlertType    enums.AlertType     `json:"alert_type"`
	Severity     enums.AlertSeverity `json:"severity"`
	TaskType     enums.TaskType      `json:"task_type"`
	TaskPriority enums.TaskPriority  `json:"task_priority"`
	AssignmentID *uuid.UUID          `json:"assignment_id,omitempty"`
	Message      string              `json:"message"`
}
