package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/internal/assignments"
	"github.com/omaldonado/crewdispatch-backend/internal/escalation"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/metrics"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox/payloads"
)

const offerExpiryBatchSize = 200

// OfferExpiryJobParams configure the pending offer sweep.
type OfferExpiryJobParams struct {
	Logger            *logger.Logger
	DB                txRunner
	ExpiredReader     expiredOfferReader
	Escalations       escalationRaiser
	Outbox            outboxEmitter
	Metrics           *metrics.CronJobMetrics
	AssignmentFactory assignmentRepoFactory
}

type expiredOfferReader interface {
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error)
}

type transactionalAssignmentRepo interface {
	UpdateStatusIf(ctx context.Context, id uuid.UUID, expected enums.AssignmentStatus, updates map[string]any) (int64, error)
}

type assignmentRepoFactory func(tx *gorm.DB) transactionalAssignmentRepo

func defaultAssignmentRepo(tx *gorm.DB) transactionalAssignmentRepo {
	return assignments.NewRepository(tx)
}

type escalationRaiser interface {
	Raise(ctx context.Context, tx *gorm.DB, input escalation.RaiseInput) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// NewOfferExpiryJob builds the cron job that times out unanswered offers.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.ExpiredReader == nil {
		return nil, fmt.Errorf("expired offers reader required")
	}
	if params.Escalations == nil {
		return nil, fmt.Errorf("escalation service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	repoFactory := params.AssignmentFactory
	if repoFactory == nil {
		repoFactory = defaultAssignmentRepo
	}
	return &offerExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		reader:      params.ExpiredReader,
		escalations: params.Escalations,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type offerExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	reader      expiredOfferReader
	escalations escalationRaiser
	outbox      outboxEmitter
	metrics     *metrics.CronJobMetrics
	repoFactory assignmentRepoFactory
	now         func() time.Time
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	expired, err := j.reader.FindPendingExpiredBefore(ctx, cutoff, offerExpiryBatchSize)
	if err != nil {
		return fmt.Errorf("query expired offers: %w", err)
	}
	var errs []error
	count := 0
	for _, assignment := range expired {
		timedOut, err := j.expireOffer(ctx, assignment)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire assignment %s: %w", assignment.ID, err))
			continue
		}
		if timedOut {
			count++
		}
	}
	j.metrics.AddExpiredOffers(j.Name(), count)
	logCtx := j.logg.WithFields(ctx, map[string]any{"count": count, "cutoff": cutoff})
	j.logg.Info(logCtx, "offer expiry sweep complete")
	return multierr.Combine(errs...)
}

// expireOffer flips one pending offer to timeout. The guarded update loses
// against a concurrent accept or decline, in which case the offer is left
// alone and no escalation is raised.
func (j *offerExpiryJob) expireOffer(ctx context.Context, assignment models.Assignment) (bool, error) {
	timedOut := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		rows, err := repo.UpdateStatusIf(ctx, assignment.ID, enums.AssignmentStatusPending, map[string]any{
			"status": enums.AssignmentStatusTimeout,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return nil
		}
		timedOut = true
		expiredAt := j.now().UTC()
		if assignment.OfferExpiresAt != nil {
			expiredAt = assignment.OfferExpiresAt.UTC()
		}
		if err := j.raiseTimeoutEscalation(ctx, tx, assignment); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventAssignmentTimedOut,
			AggregateType: enums.AggregateAssignment,
			AggregateID:   assignment.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.AssignmentTimedOutEvent{
				AssignmentID:   assignment.ID,
				ServiceOrderID: assignment.ServiceOrderID,
				ProviderID:     assignment.ProviderID,
				ExpiredAt:      expiredAt,
			},
		}
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	return timedOut, nil
}

func (j *offerExpiryJob) raiseTimeoutEscalation(ctx context.Context, tx *gorm.DB, assignment models.Assignment) error {
	assignmentID := assignment.ID
	input := escalation.RaiseInput{
		AlertType:    enums.AlertTypeOfferTimeout,
		Severity:     enums.AlertSeverityCritical,
		Message:      fmt.Sprintf("Offer to provider %s expired without a response", assignment.ProviderID),
		TaskType:     enums.TaskTypeManualReassignment,
		TaskPriority: enums.TaskPriorityUrgent,
		AssignmentID: &assignmentID,
		Metadata: map[string]any{
			"service_order_id": assignment.ServiceOrderID,
			"provider_id":      assignment.ProviderID,
		},
	}
	return j.escalations.Raise(ctx, tx, input)
}
