package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
)

// Alert is an operator-facing notification produced by an escalation.
type Alert struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type         enums.AlertType     `gorm:"column:type;type:text;not null"`
	Severity     enums.AlertSeverity `gorm:"column:severity;type:text;not null"`
	Message      string              `gorm:"column:message;type:text;not null"`
	AssignmentID *uuid.UUID          `gorm:"column:assignment_id;type:uuid"`
	Metadata     map[string]any      `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// OperatorTask is a unit of manual follow-up work raised by an escalation,
// e.g. reassigning a timed-out offer.
type OperatorTask struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Type         enums.TaskType     `gorm:"column:type;type:text;not null"`
	Priority     enums.TaskPriority `gorm:"column:priority;type:text;not null;default:'normal'"`
	Assignee     *string            `gorm:"column:assignee"`
	DueAt        *time.Time         `gorm:"column:due_at"`
	AssignmentID *uuid.UUID         `gorm:"column:assignment_id;type:uuid"`
	Metadata     map[string]any     `gorm:"column:metadata;type:jsonb;serializer:json"`
	Status       enums.TaskStatus   `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}
