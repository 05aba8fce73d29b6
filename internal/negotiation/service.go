package negotiation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/internal/assignments"
	"github.com/omaldonado/crewdispatch-backend/internal/escalation"
	"github.com/omaldonado/crewdispatch-backend/internal/tenant"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ProposeInput is one round of date re-negotiation on a pending assignment.
type ProposeInput struct {
	AssignmentID uuid.UUID
	ProposedDate time.Time
	ProposedBy   enums.NegotiationParty
	Notes        *string
	Actor        *outbox.ActorRef
}

// Service appends negotiation rounds and enforces the country round cap.
type Service interface {
	Propose(ctx context.Context, input ProposeInput) (*models.DateNegotiation, error)
	ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.DateNegotiation, error)
}

type service struct {
	repo        assignments.Repository
	tx          txRunner
	outbox      outboxPublisher
	policies    tenant.Resolver
	escalations escalation.Service
	logg        *logger.Logger
	now         func() time.Time
}

// NewService wires the negotiation manager.
func NewService(
	repo assignments.Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	policies tenant.Resolver,
	escalations escalation.Service,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy resolver required")
	}
	if escalations == nil {
		return nil, fmt.Errorf("escalation service required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		outbox:      outboxSvc,
		policies:    policies,
		escalations: escalations,
		logg:        logg,
		now:         time.Now,
	}, nil
}

func (s *service) Propose(ctx context.Context, input ProposeInput) (*models.DateNegotiation, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.ProposedDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposed date required")
	}
	if !input.ProposedBy.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid proposing party")
	}

	var (
		created  *models.DateNegotiation
		exceeded *limitExceeded
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		assignment, err := repo.FindAssignment(ctx, input.AssignmentID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
		}
		if assignment.Status != enums.AssignmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending assignments can be re-negotiated")
		}

		order, err := repo.FindServiceOrder(ctx, assignment.ServiceOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order")
		}
		policy, err := s.policies.Resolve(ctx, order.CountryCode)
		if err != nil {
			return err
		}

		nextRound := assignment.DateNegotiationRound + 1
		if policy.MaxNegotiationRounds > 0 && nextRound > policy.MaxNegotiationRounds {
			exceeded = &limitExceeded{assignment: *assignment, limit: policy.MaxNegotiationRounds, round: nextRound}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "negotiation round limit exceeded")
		}

		// guard the round counter with the same conditional-update discipline
		// as status transitions so concurrent proposals cannot share a round
		rows, err := repo.UpdateProposalIf(ctx, assignment.ID, assignment.DateNegotiationRound, map[string]any{
			"proposed_date":          input.ProposedDate,
			"date_negotiation_round": nextRound,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update assignment proposal")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending assignments can be re-negotiated")
		}

		negotiation := &models.DateNegotiation{
			ID:           uuid.New(),
			AssignmentID: assignment.ID,
			Round:        nextRound,
			ProposedDate: input.ProposedDate,
			ProposedBy:   input.ProposedBy,
			Notes:        input.Notes,
		}
		if err := repo.CreateNegotiation(ctx, negotiation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist negotiation")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventDateProposed,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.DateProposedEvent{
				AssignmentID:   assignment.ID,
				ServiceOrderID: assignment.ServiceOrderID,
				Round:          nextRound,
				ProposedDate:   input.ProposedDate,
				ProposedBy:     input.ProposedBy,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		created = negotiation
		return nil
	})
	if err != nil {
		if exceeded != nil {
			// the rejected proposal rolled back; raise the escalation in its
			// own transaction so it survives
			s.raiseLimitEscalation(ctx, *exceeded)
		}
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithAssignmentID(ctx, input.AssignmentID.String())
		s.logg.Info(s.logg.WithField(logCtx, "round", created.Round), "date negotiation recorded")
	}
	return created, nil
}

type limitExceeded struct {
	assignment models.Assignment
	limit      int
	round      int
}

func (s *service) raiseLimitEscalation(ctx context.Context, info limitExceeded) {
	assignmentID := info.assignment.ID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.escalations.Raise(ctx, tx, escalation.RaiseInput{
			AlertType:    enums.AlertTypeNegotiationLimit,
			Severity:     enums.AlertSeverityWarning,
			Message:      fmt.Sprintf("Negotiation round limit (%d) exceeded", info.limit),
			TaskType:     enums.TaskTypeNegotiationReview,
			TaskPriority: enums.TaskPriorityHigh,
			AssignmentID: &assignmentID,
			Metadata: map[string]any{
				"service_order_id": info.assignment.ServiceOrderID.String(),
				"round_requested":  info.round,
			},
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "raising negotiation limit escalation", err)
	}
}

func (s *service) ListByAssignment(ctx context.Context, assignmentID uuid.UUID) ([]models.DateNegotiation, error) {
	if assignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if _, err := s.repo.FindAssignment(ctx, assignmentID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	rows, err := s.repo.FindNegotiations(ctx, assignmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list negotiations")
	}
	return rows, nil
}
