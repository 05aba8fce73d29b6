package assignments

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
)

// CreateInput is one matching request: a service order plus the explicit
// provider pool to evaluate.
type CreateInput struct {
	ServiceOrderID uuid.UUID
	ProviderIDs    []uuid.UUID
	Mode           enums.AssignmentMode
	// ProposedDate overrides the order's requested date as the initial
	// execution date offered to providers.
	ProposedDate *time.Time
	Actor        *outbox.ActorRef
}

// CreateResult reports what one matching run produced.
type CreateResult struct {
	Assignments  []models.Assignment
	AutoAccepted bool
}

// AssignmentIDs returns the created ids in rank order.
func (r CreateResult) AssignmentIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		ids = append(ids, a.ID)
	}
	return ids
}

// AcceptInput identifies the assignment a provider is accepting.
type AcceptInput struct {
	AssignmentID uuid.UUID
	// AcceptedDate records the date the provider committed to when it
	// differs from the current proposal.
	AcceptedDate *time.Time
	Actor        *outbox.ActorRef
}

// DeclineInput carries the mandatory decline reason.
type DeclineInput struct {
	AssignmentID uuid.UUID
	Reason       string
	Actor        *outbox.ActorRef
}

// CancelInput withdraws a still-open assignment.
type CancelInput struct {
	AssignmentID uuid.UUID
	Reason       string
	Actor        *outbox.ActorRef
}

// ListFilters narrows the assignment listing.
type ListFilters struct {
	ServiceOrderID *uuid.UUID
	ProviderID     *uuid.UUID
	Status         *enums.AssignmentStatus
	Mode           *enums.AssignmentMode
}

// AssignmentList is one cursor page of assignments.
type AssignmentList struct {
	Items      []models.Assignment
	NextCursor *string
}
