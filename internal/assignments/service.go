package assignments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/internal/funnel"
	"github.com/omaldonado/crewdispatch-backend/internal/matching"
	"github.com/omaldonado/crewdispatch-backend/internal/tenant"
	dbpkg "github.com/omaldonado/crewdispatch-backend/pkg/db"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox/payloads"
	"github.com/omaldonado/crewdispatch-backend/pkg/pagination"
)

// broadcastSettlementReason is the auto-generated decline reason applied to
// losing broadcast siblings.
const broadcastSettlementReason = "Another provider accepted first"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type funnelRecordInput = funnel.RecordInput

type funnelRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, input funnelRecordInput) error
}

// Service owns the assignment state machine and the matching entry point.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	Accept(ctx context.Context, input AcceptInput) (*models.Assignment, error)
	Decline(ctx context.Context, input DeclineInput) (*models.Assignment, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Assignment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*AssignmentList, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	policies tenant.Resolver
	filter   *matching.Filter
	scorer   *matching.Scorer
	funnel   funnelRecorder
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the matching pipeline and state machine dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	outboxSvc outboxPublisher,
	policies tenant.Resolver,
	filter *matching.Filter,
	scorer *matching.Scorer,
	funnelSvc funnelRecorder,
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
	if filter == nil || scorer == nil {
		return nil, fmt.Errorf("matching filter and scorer required")
	}
	if funnelSvc == nil {
		return nil, fmt.Errorf("funnel recorder required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		policies: policies,
		filter:   filter,
		scorer:   scorer,
		funnel:   funnelSvc,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.ServiceOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "service order id required")
	}
	if !input.Mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid assignment mode")
	}
	if len(input.ProviderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one provider required")
	}
	if input.Mode == enums.AssignmentModeBroadcast && len(input.ProviderIDs) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast requires at least two providers")
	}
	if input.Mode.AutoAccepts() && len(input.ProviderIDs) != 1 {
		// a second accepted row would violate the one-winner rule
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direct and auto-accept assignments take exactly one provider")
	}
	if hasDuplicateIDs(input.ProviderIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate provider ids")
	}

	order, err := s.loadServiceOrder(ctx, input.ServiceOrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.ServiceOrderStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "service order is not open")
	}

	accepted, err := s.repo.FindAcceptedByServiceOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check accepted assignment")
	}
	if accepted != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "service order already has an accepted assignment")
	}

	policy, err := s.policies.Resolve(ctx, order.CountryCode)
	if err != nil {
		return nil, err
	}

	providers, err := s.repo.FindProvidersWithTeams(ctx, input.ProviderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load providers")
	}
	if len(providers) != len(input.ProviderIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "one or more providers not found")
	}

	// explicit single-provider modes treat tenant mismatch as a hard error,
	// not a silently filtered candidate
	if input.Mode.AutoAccepts() && !matching.TenantMatches(*order, providers[0]) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "country mismatch")
	}

	pool := buildCandidatePool(providers)
	if len(pool) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "named providers have no work teams")
	}

	filtered := s.filter.Run(*order, pool)
	ranked := s.scorer.Rank(*order, filtered.Survivors)
	perProvider := bestTeamPerProvider(ranked)
	if len(perProvider) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no eligible candidates").
			WithDetails(map[string]any{"filterReasons": filtered.FilterReasons()})
	}
	if input.Mode == enums.AssignmentModeBroadcast && len(perProvider) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broadcast requires at least two eligible providers").
			WithDetails(map[string]any{"filterReasons": filtered.FilterReasons()})
	}

	effectiveMode := input.Mode
	if input.Mode == enums.AssignmentModeOffer && policy.ProviderAutoAccept {
		// country policy overrides the requested mode
		effectiveMode = enums.AssignmentModeAutoAccept
		perProvider = perProvider[:1]
	}

	now := s.now().UTC()
	proposedDate := order.RequestedDate
	if input.ProposedDate != nil {
		proposedDate = input.ProposedDate.UTC()
	}
	result := &CreateResult{AutoAccepted: effectiveMode.AutoAccepts()}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for rank, candidate := range perProvider {
			assignment := s.buildAssignment(*order, candidate, effectiveMode, policy, proposedDate, now)
			if rank > 0 {
				assignment.FilterReasons = filtered.FilterReasons()
			}
			created, err := repo.CreateAssignment(ctx, assignment)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist assignment")
			}

			funnelInput := funnelRecordInput{
				AssignmentID:   created.ID,
				ServiceOrderID: order.ID,
				Stages:         filtered.Stages,
				TotalScore:     created.Score,
			}
			if rank == 0 {
				details := candidate.Details
				funnelInput.Breakdown = &details
				funnelInput.Rationale = matching.Rationale(candidate)
			} else {
				funnelInput.FilterReasons = filtered.FilterReasons()
			}
			if err := s.funnel.Record(ctx, tx, funnelInput); err != nil {
				return err
			}

			if err := s.emitCreated(ctx, tx, created, input.Actor); err != nil {
				return err
			}
			if created.Status == enums.AssignmentStatusAccepted {
				if err := s.emitAccepted(ctx, tx, created, input.Actor); err != nil {
					return err
				}
			}
			result.Assignments = append(result.Assignments, *created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithServiceOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"mode":        effectiveMode,
			"assignments": len(result.Assignments),
		})
		s.logg.Info(logCtx, "matching run completed")
	}
	return result, nil
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*models.Assignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadAssignment(ctx, repo, input.AssignmentID)
		if err != nil {
			return err
		}
		if err := acceptableFrom(assignment.Status); err != nil {
			return err
		}

		now := s.now().UTC()
		acceptedDate := assignment.ProposedDate
		if input.AcceptedDate != nil {
			d := input.AcceptedDate.UTC()
			acceptedDate = &d
		}
		rows, err := repo.UpdateStatusIf(ctx, assignment.ID, enums.AssignmentStatusPending, map[string]any{
			"status":        enums.AssignmentStatusAccepted,
			"accepted_at":   now,
			"accepted_date": acceptedDate,
		})
		if err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_assignments_accepted_order") {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "already accepted")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept assignment")
		}
		if rows == 0 {
			// lost the race; report the state the winner left behind
			return pkgerrors.New(pkgerrors.CodeStateConflict, "already accepted")
		}

		if assignment.Mode == enums.AssignmentModeBroadcast {
			if err := s.settleBroadcast(ctx, tx, repo, assignment, now, input.Actor); err != nil {
				return err
			}
		}

		assignment.Status = enums.AssignmentStatusAccepted
		assignment.AcceptedAt = &now
		assignment.AcceptedDate = acceptedDate
		if err := s.emitAccepted(ctx, tx, assignment, input.Actor); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Decline(ctx context.Context, input DeclineInput) (*models.Assignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decline reason required")
	}

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadAssignment(ctx, repo, input.AssignmentID)
		if err != nil {
			return err
		}
		if assignment.Status == enums.AssignmentStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot decline")
		}
		if assignment.Status != enums.AssignmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot decline")
		}

		now := s.now().UTC()
		rows, err := repo.UpdateStatusIf(ctx, assignment.ID, enums.AssignmentStatusPending, map[string]any{
			"status":         enums.AssignmentStatusDeclined,
			"declined_at":    now,
			"decline_reason": input.Reason,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline assignment")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot decline")
		}

		assignment.Status = enums.AssignmentStatusDeclined
		assignment.DeclinedAt = &now
		assignment.DeclineReason = &input.Reason

		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentDeclined,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.AssignmentDeclinedEvent{
				AssignmentID:   assignment.ID,
				ServiceOrderID: assignment.ServiceOrderID,
				ProviderID:     assignment.ProviderID,
				Reason:         input.Reason,
				DeclinedAt:     now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Assignment, error) {
	if input.AssignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadAssignment(ctx, repo, input.AssignmentID)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending assignments can be cancelled")
		}

		rows, err := repo.UpdateStatusIf(ctx, assignment.ID, enums.AssignmentStatusPending, map[string]any{
			"status": enums.AssignmentStatusCancelled,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending assignments can be cancelled")
		}

		assignment.Status = enums.AssignmentStatusCancelled

		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentCancelled,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.AssignmentCancelledEvent{
				AssignmentID:   assignment.ID,
				ServiceOrderID: assignment.ServiceOrderID,
				ProviderID:     assignment.ProviderID,
				Reason:         input.Reason,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}
	return s.loadAssignment(ctx, s.repo, id)
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*AssignmentList, error) {
	list, err := s.repo.ListAssignments(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return list, nil
}

func (s *service) settleBroadcast(ctx context.Context, tx *gorm.DB, repo Repository, winner *models.Assignment, now time.Time, actor *outbox.ActorRef) error {
	siblings, err := repo.FindPendingSiblings(ctx, winner.ServiceOrderID, winner.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load broadcast siblings")
	}
	if len(siblings) == 0 {
		return nil
	}

	rows, err := repo.DeclinePendingSiblings(ctx, winner.ServiceOrderID, winner.ID, broadcastSettlementReason, now)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decline broadcast siblings")
	}
	if rows != int64(len(siblings)) {
		// a sibling changed state between the read and the update; the
		// conditional update still only touched pending rows, so this is safe
		// to continue from
		if s.logg != nil {
			s.logg.Warn(ctx, "broadcast settlement count mismatch")
		}
	}

	for _, sibling := range siblings {
		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentAutoDeclined,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   sibling.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AssignmentAutoDeclinedEvent{
				AssignmentID:        sibling.ID,
				ServiceOrderID:      sibling.ServiceOrderID,
				ProviderID:          sibling.ProviderID,
				WinningAssignmentID: winner.ID,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) buildAssignment(order models.ServiceOrder, candidate matching.ScoredCandidate, mode enums.AssignmentMode, policy tenant.Policy, proposedDate, now time.Time) *models.Assignment {
	teamID := candidate.Team.ID
	requested := proposedDate
	assignment := &models.Assignment{
		ID:             uuid.New(),
		ServiceOrderID: order.ID,
		ProviderID:     candidate.Provider.ID,
		WorkTeamID:     &teamID,
		Mode:           mode,
		Score:          candidate.Score,
		ScoringDetails: candidate.Details,
		ProposedDate:   &requested,
		OriginalDate:   &requested,
	}

	if mode.AutoAccepts() {
		acceptedAt := now
		assignment.Status = enums.AssignmentStatusAccepted
		assignment.AcceptedAt = &acceptedAt
		assignment.AcceptedDate = &requested
		return assignment
	}

	expiresAt := now.Add(time.Duration(policy.OfferTimeoutHours) * time.Hour)
	assignment.Status = enums.AssignmentStatusPending
	assignment.OfferExpiresAt = &expiresAt
	return assignment
}

func (s *service) emitCreated(ctx context.Context, tx *gorm.DB, assignment *models.Assignment, actor *outbox.ActorRef) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventAssignmentCreated,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.AssignmentCreatedEvent{
			AssignmentID:   assignment.ID,
			ServiceOrderID: assignment.ServiceOrderID,
			ProviderID:     assignment.ProviderID,
			WorkTeamID:     assignment.WorkTeamID,
			Mode:           assignment.Mode,
			Status:         assignment.Status,
			Score:          assignment.Score,
			OfferExpiresAt: assignment.OfferExpiresAt,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) emitAccepted(ctx context.Context, tx *gorm.DB, assignment *models.Assignment, actor *outbox.ActorRef) error {
	acceptedAt := s.now().UTC()
	if assignment.AcceptedAt != nil {
		acceptedAt = *assignment.AcceptedAt
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventAssignmentAccepted,
		AggregateType: enums.AggregateAssignment,
		AggregateID:   assignment.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.AssignmentAcceptedEvent{
			AssignmentID:   assignment.ID,
			ServiceOrderID: assignment.ServiceOrderID,
			ProviderID:     assignment.ProviderID,
			AcceptedAt:     acceptedAt,
			AcceptedDate:   assignment.AcceptedDate,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) loadServiceOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	order, err := s.repo.FindServiceOrder(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order")
	}
	return order, nil
}

func (s *service) loadAssignment(ctx context.Context, repo Repository, id uuid.UUID) (*models.Assignment, error) {
	assignment, err := repo.FindAssignment(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return assignment, nil
}

func acceptableFrom(status enums.AssignmentStatus) error {
	switch status {
	case enums.AssignmentStatusPending:
		return nil
	case enums.AssignmentStatusAccepted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "already accepted")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Cannot accept")
	}
}

func buildCandidatePool(providers []models.Provider) []matching.Candidate {
	pool := []matching.Candidate{}
	for _, provider := range providers {
		for _, team := range provider.WorkTeams {
			pool = append(pool, matching.Candidate{Provider: provider, Team: team})
		}
	}
	return pool
}

// bestTeamPerProvider keeps each provider's highest-ranked team, preserving
// overall rank order.
func bestTeamPerProvider(ranked []matching.ScoredCandidate) []matching.ScoredCandidate {
	seen := make(map[uuid.UUID]struct{}, len(ranked))
	out := make([]matching.ScoredCandidate, 0, len(ranked))
	for _, candidate := range ranked {
		if _, ok := seen[candidate.Provider.ID]; ok {
			continue
		}
		seen[candidate.Provider.ID] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

func hasDuplicateIDs(ids []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
