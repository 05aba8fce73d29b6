package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/pagination"
)

// Repository defines persistence operations for assignments and the rows the
// matching flow reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateAssignment(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error)
	FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindServiceOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
	FindProvidersWithTeams(ctx context.Context, ids []uuid.UUID) ([]models.Provider, error)
	FindAcceptedByServiceOrder(ctx context.Context, serviceOrderID uuid.UUID) (*models.Assignment, error)
	ListAssignments(ctx context.Context, params pagination.Params, filters ListFilters) (*AssignmentList, error)

	// UpdateStatusIf applies updates only when the row still holds the expected
	// status; the returned count is 0 when the compare-and-swap lost.
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected enums.AssignmentStatus, updates map[string]any) (int64, error)
	// UpdateProposalIf is the negotiation variant: the update only applies
	// while the row is still pending at the expected round.
	UpdateProposalIf(ctx context.Context, id uuid.UUID, expectedRound int, updates map[string]any) (int64, error)
	FindPendingSiblings(ctx context.Context, serviceOrderID, excludeID uuid.UUID) ([]models.Assignment, error)
	DeclinePendingSiblings(ctx context.Context, serviceOrderID, excludeID uuid.UUID, reason string, declinedAt time.Time) (int64, error)
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error)

	CreateNegotiation(ctx context.Context, negotiation *models.DateNegotiation) error
	FindNegotiations(ctx context.Context, assignmentID uuid.UUID) ([]models.DateNegotiation, error)
}
