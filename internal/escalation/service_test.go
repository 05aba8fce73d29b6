package escalation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
)

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		return assert.AnError
	}
	s.events = append(s.events, event)
	return nil
}

func setupEscalationTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	alerts := `
CREATE TABLE IF NOT EXISTS alerts (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  severity TEXT NOT NULL,
  message TEXT NOT NULL,
  assignment_id TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	tasks := `
CREATE TABLE IF NOT EXISTS operator_tasks (
  id TEXT PRIMARY KEY,
  type TEXT NOT NULL,
  priority TEXT NOT NULL DEFAULT 'normal',
  assignee TEXT,
  due_at DATETIME,
  assignment_id TEXT,
  metadata TEXT,
  status TEXT NOT NULL DEFAULT 'open',
  created_at DATETIME
);`
	require.NoError(t, db.Exec(alerts).Error)
	require.NoError(t, db.Exec(tasks).Error)
	return db
}

func TestRaisePersistsAlertTaskAndEvent(t *testing.T) {
	db := setupEscalationTestDB(t)
	sink := &stubOutbox{}
	svc, err := NewService(sink, nil)
	require.NoError(t, err)

	assignmentID := uuid.New()
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Raise(context.Background(), tx, RaiseInput{
			AlertType:    enums.AlertTypeOfferTimeout,
			Severity:     enums.AlertSeverityCritical,
			Message:      "Offer expired without response",
			TaskType:     enums.TaskTypeManualReassignment,
			TaskPriority: enums.TaskPriorityUrgent,
			AssignmentID: &assignmentID,
			Metadata:     map[string]any{"service_order_id": uuid.NewString()},
		})
	})
	require.NoError(t, err)

	var alert models.Alert
	require.NoError(t, db.First(&alert).Error)
	assert.Equal(t, enums.AlertTypeOfferTimeout, alert.Type)
	assert.Equal(t, enums.AlertSeverityCritical, alert.Severity)
	require.NotNil(t, alert.AssignmentID)
	assert.Equal(t, assignmentID, *alert.AssignmentID)

	var task models.OperatorTask
	require.NoError(t, db.First(&task).Error)
	assert.Equal(t, enums.TaskTypeManualReassignment, task.Type)
	assert.Equal(t, enums.TaskPriorityUrgent, task.Priority)
	assert.Equal(t, enums.TaskStatusOpen, task.Status)

	require.Len(t, sink.events, 1)
	assert.Equal(t, enums.EventEscalationRaised, sink.events[0].EventType)
	assert.Equal(t, enums.AggregateEscalation, sink.events[0].AggregateType)
}

func TestRaiseRejectsInvalidInput(t *testing.T) {
	db := setupEscalationTestDB(t)
	svc, err := NewService(&stubOutbox{}, nil)
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Raise(context.Background(), tx, RaiseInput{
			AlertType:    enums.AlertType("unknown"),
			Severity:     enums.AlertSeverityCritical,
			Message:      "msg",
			TaskType:     enums.TaskTypeManualReassignment,
			TaskPriority: enums.TaskPriorityUrgent,
		})
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestRaiseRequiresMessage(t *testing.T) {
	db := setupEscalationTestDB(t)
	svc, err := NewService(&stubOutbox{}, nil)
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.Raise(context.Background(), tx, RaiseInput{
			AlertType:    enums.AlertTypeNegotiationLimit,
			Severity:     enums.AlertSeverityWarning,
			TaskType:     enums.TaskTypeNegotiationReview,
			TaskPriority: enums.TaskPriorityHigh,
		})
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}
