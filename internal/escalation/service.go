package escalation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox"
	"github.com/omaldonado/crewdispatch-backend/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RaiseInput describes one escalation: the alert shown to operators and the
// follow-up task it opens.
type RaiseInput struct {
	AlertType    enums.AlertType
	Severity     enums.AlertSeverity
	Message      string
	TaskType     enums.TaskType
	TaskPriority enums.TaskPriority
	AssignmentID *uuid.UUID
	Metadata     map[string]any
}

// Service persists alerts and operator tasks inside the caller's transaction
// so escalations commit together with the state change that triggered them.
type Service interface {
	Raise(ctx context.Context, tx *gorm.DB, input RaiseInput) error
}

type service struct {
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds an escalation service.
func NewService(outboxSvc outboxPublisher, logg *logger.Logger) (Service, error) {
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{outbox: outboxSvc, logg: logg}, nil
}

func (s *service) Raise(ctx context.Context, tx *gorm.DB, input RaiseInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !input.AlertType.IsValid() || !input.Severity.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid alert type or severity")
	}
	if !input.TaskType.IsValid() || !input.TaskPriority.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid task type or priority")
	}
	if input.Message == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert message required")
	}

	alert := models.Alert{
		ID:           uuid.New(),
		Type:         input.AlertType,
		Severity:     input.Severity,
		Message:      input.Message,
		AssignmentID: input.AssignmentID,
		Metadata:     input.Metadata,
	}
	if err := tx.Create(&alert).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist alert")
	}

	task := models.OperatorTask{
		ID:           uuid.New(),
		Type:         input.TaskType,
		Priority:     input.TaskPriority,
		AssignmentID: input.AssignmentID,
		Metadata:     input.Metadata,
		Status:       enums.TaskStatusOpen,
	}
	if err := tx.Create(&task).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist operator task")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventEscalationRaised,
		AggregateType: enums.AggregateEscalation,
		AggregateID:   alert.ID,
		Version:       1,
		Data: payloads.EscalationRaisedEvent{
			AlertID:      alert.ID,
			TaskID:       task.ID,
			AlertType:    alert.Type,
			Severity:     alert.Severity,
			TaskType:     task.Type,
			TaskPriority: task.Priority,
			AssignmentID: input.AssignmentID,
			Message:      alert.Message,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	if s.logg != nil {
		fields := map[string]any{
			"alert_id":   alert.ID.String(),
			"alert_type": alert.Type,
			"severity":   alert.Severity,
			"task_id":    task.ID.String(),
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "escalation raised")
	}
	return nil
}
