package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/internal/escalation"
	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox/payloads"
)

func TestOfferExpiryJobTimesOutUnansweredOffer(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	expiresAt := created.Add(4 * time.Hour)
	now := created.Add(5 * time.Hour)
	assignment := models.Assignment{
		ID:             uuid.New(),
		ServiceOrderID: uuid.New(),
		ProviderID:     uuid.New(),
		Mode:           enums.AssignmentModeOffer,
		Status:         enums.AssignmentStatusPending,
		OfferExpiresAt: &expiresAt,
		CreatedAt:      created,
	}
	helper := newOfferExpiryJobTest(t, &fakeExpiredReader{assignments: []models.Assignment{assignment}})
	helper.job.now = func() time.Time { return now }

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !helper.reader.lastCutoff.Equal(now) {
		t.Fatalf("expected cutoff %s, got %s", now, helper.reader.lastCutoff)
	}
	if len(helper.repo.updates) != 1 {
		t.Fatalf("expected 1 status update, got %d", len(helper.repo.updates))
	}
	update := helper.repo.updates[0]
	if update.id != assignment.ID {
		t.Fatalf("unexpected assignment id: %s", update.id)
	}
	if update.expected != enums.AssignmentStatusPending {
		t.Fatalf("expected guard on pending, got %s", update.expected)
	}
	if status, _ := update.updates["status"].(enums.AssignmentStatus); status != enums.AssignmentStatusTimeout {
		t.Fatalf("expected timeout status, got %v", update.updates["status"])
	}
	if len(helper.escalations.inputs) != 1 {
		t.Fatalf("expected 1 escalation, got %d", len(helper.escalations.inputs))
	}
	raised := helper.escalations.inputs[0]
	if raised.AlertType != enums.AlertTypeOfferTimeout || raised.Severity != enums.AlertSeverityCritical {
		t.Fatalf("unexpected alert: %s/%s", raised.AlertType, raised.Severity)
	}
	if raised.TaskType != enums.TaskTypeManualReassignment || raised.TaskPriority != enums.TaskPriorityUrgent {
		t.Fatalf("unexpected task: %s/%s", raised.TaskType, raised.TaskPriority)
	}
	if raised.AssignmentID == nil || *raised.AssignmentID != assignment.ID {
		t.Fatal("expected escalation bound to the assignment")
	}
	if len(helper.outbox.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(helper.outbox.events))
	}
	event := helper.outbox.events[0]
	if event.EventType != enums.EventAssignmentTimedOut {
		t.Fatalf("unexpected event type: %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.AssignmentTimedOutEvent)
	if !ok {
		t.Fatal("expected timed out event payload")
	}
	if payload.AssignmentID != assignment.ID || payload.ProviderID != assignment.ProviderID {
		t.Fatal("payload identifies the wrong assignment")
	}
	if !payload.ExpiredAt.Equal(expiresAt) {
		t.Fatalf("expected expiry %s, got %s", expiresAt, payload.ExpiredAt)
	}
}

func TestOfferExpiryJobSkipsOfferAnsweredDuringSweep(t *testing.T) {
	expiresAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	assignment := models.Assignment{
		ID:             uuid.New(),
		ServiceOrderID: uuid.New(),
		ProviderID:     uuid.New(),
		Status:         enums.AssignmentStatusPending,
		OfferExpiresAt: &expiresAt,
	}
	helper := newOfferExpiryJobTest(t, &fakeExpiredReader{assignments: []models.Assignment{assignment}})
	helper.repo.rows = 0

	if err := helper.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(helper.escalations.inputs) != 0 {
		t.Fatalf("expected no escalations, got %d", len(helper.escalations.inputs))
	}
	if len(helper.outbox.events) != 0 {
		t.Fatalf("expected no events, got %d", len(helper.outbox.events))
	}
}

func TestOfferExpiryJobPropagatesReaderError(t *testing.T) {
	helper := newOfferExpiryJobTest(t, &fakeExpiredReader{err: errors.New("boom")})
	if err := helper.job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestOfferExpiryJobContinuesPastFailedOffer(t *testing.T) {
	expiresAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	first := models.Assignment{ID: uuid.New(), ServiceOrderID: uuid.New(), ProviderID: uuid.New(), OfferExpiresAt: &expiresAt}
	second := models.Assignment{ID: uuid.New(), ServiceOrderID: uuid.New(), ProviderID: uuid.New(), OfferExpiresAt: &expiresAt}
	helper := newOfferExpiryJobTest(t, &fakeExpiredReader{assignments: []models.Assignment{first, second}})
	helper.repo.failFor = first.ID

	if err := helper.job.Run(context.Background()); err == nil {
		t.Fatal("expected combined error")
	}
	if len(helper.repo.updates) != 1 {
		t.Fatalf("expected the second offer to still be processed, got %d updates", len(helper.repo.updates))
	}
	if helper.repo.updates[0].id != second.ID {
		t.Fatalf("expected update for %s, got %s", second.ID, helper.repo.updates[0].id)
	}
}

type offerExpiryJobTestHelper struct {
	job         *offerExpiryJob
	reader      *fakeExpiredReader
	repo        *fakeAssignmentStatusRepo
	escalations *fakeEscalationRaiser
	outbox      *fakeOutboxEmitter
}

func newOfferExpiryJobTest(t *testing.T, reader *fakeExpiredReader) *offerExpiryJobTestHelper {
	t.Helper()
	repo := &fakeAssignmentStatusRepo{rows: 1}
	escalations := &fakeEscalationRaiser{}
	emitter := &fakeOutboxEmitter{}
	jobIface, err := NewOfferExpiryJob(OfferExpiryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		DB:            fakeTxRunner{},
		ExpiredReader: reader,
		Escalations:   escalations,
		Outbox:        emitter,
		AssignmentFactory: func(tx *gorm.DB) transactionalAssignmentRepo {
			return repo
		},
	})
	if err != nil {
		t.Fatalf("NewOfferExpiryJob: %v", err)
	}
	job, ok := jobIface.(*offerExpiryJob)
	if !ok {
		t.Fatalf("expected offerExpiryJob, got %T", jobIface)
	}
	return &offerExpiryJobTestHelper{
		job:         job,
		reader:      reader,
		repo:        repo,
		escalations: escalations,
		outbox:      emitter,
	}
}

type fakeExpiredReader struct {
	assignments []models.Assignment
	err         error
	lastCutoff  time.Time
	lastLimit   int
}

func (f *fakeExpiredReader) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error) {
	f.lastCutoff = cutoff
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.assignments, nil
}

type statusUpdateCall struct {
	id       uuid.UUID
	expected enums.AssignmentStatus
	updates  map[string]any
}

type fakeAssignmentStatusRepo struct {
	rows    int64
	failFor uuid.UUID
	updates []statusUpdateCall
}

func (f *fakeAssignmentStatusRepo) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected enums.AssignmentStatus, updates map[string]any) (int64, error) {
	if f.failFor != uuid.Nil && f.failFor == id {
		return 0, errors.New("db unavailable")
	}
	f.updates = append(f.updates, statusUpdateCall{id: id, expected: expected, updates: updates})
	return f.rows, nil
}

type fakeEscalationRaiser struct {
	inputs []escalation.RaiseInput
}

func (f *fakeEscalationRaiser) Raise(ctx context.Context, tx *gorm.DB, input escalation.RaiseInput) error {
	f.inputs = append(f.inputs, input)
	return nil
}

type fakeOutboxEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeOutboxEmitter) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
