package funnel

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// RecordInput is the immutable snapshot persisted for one assignment at
// creation time.
type RecordInput struct {
	AssignmentID   uuid.UUID
	ServiceOrderID uuid.UUID
	Stages         []types.FunnelStage
	Breakdown      *types.ScoringDetails
	TotalScore     float64
	Rationale      string
	FilterReasons  []string
}

// View is the read model returned by the funnel query. Winners expose a
// scoring breakdown; excluded candidates expose filter reasons instead.
type View struct {
	AssignmentID  uuid.UUID             `json:"assignmentId"`
	FunnelStages  []types.FunnelStage   `json:"funnelStages"`
	Breakdown     *types.ScoringDetails `json:"scoringBreakdown,omitempty"`
	TotalScore    float64               `json:"totalScore"`
	Rationale     string                `json:"rationale,omitempty"`
	FilterReasons []string              `json:"filterReasons,omitempty"`
}

// Service persists and serves transparency funnel records. Records are
// write-once: nothing here updates an existing row.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) error
	Query(ctx context.Context, assignmentID uuid.UUID) (*View, error)
}

type service struct {
	db *gorm.DB
}

// NewService builds a funnel service bound to the provided DB.
func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.AssignmentID == uuid.Nil || input.ServiceOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "assignment and service order ids required")
	}
	for i, stage := range input.Stages {
		if stage.Surviving > stage.Entering {
			return pkgerrors.New(pkgerrors.CodeValidation, "funnel stage counts must be non-increasing")
		}
		if i > 0 && stage.Entering > input.Stages[i-1].Surviving {
			return pkgerrors.New(pkgerrors.CodeValidation, "funnel stage counts must be non-increasing")
		}
	}

	record := models.FunnelRecord{
		ID:             uuid.New(),
		AssignmentID:   input.AssignmentID,
		ServiceOrderID: input.ServiceOrderID,
		Stages:         input.Stages,
		Breakdown:      input.Breakdown,
		TotalScore:     input.TotalScore,
		Rationale:      input.Rationale,
		FilterReasons:  input.FilterReasons,
	}
	if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist funnel record")
	}
	return nil
}

func (s *service) Query(ctx context.Context, assignmentID uuid.UUID) (*View, error) {
	if assignmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id required")
	}

	var record models.FunnelRecord
	err := s.db.WithContext(ctx).Where("assignment_id = ?", assignmentID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "funnel record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load funnel record")
	}

	view := &View{
		AssignmentID: record.AssignmentID,
		FunnelStages: record.Stages,
		TotalScore:   record.TotalScore,
		Rationale:    record.Rationale,
	}
	if record.Breakdown != nil {
		view.Breakdown = record.Breakdown
	} else {
		view.FilterReasons = record.FilterReasons
	}
	return view, nil
}
