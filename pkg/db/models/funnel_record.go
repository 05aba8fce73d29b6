package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// FunnelRecord is the immutable audit trail of one matching decision: the
// stage-by-stage candidate counts, the winner's scoring breakdown, and the
// operator-facing rationale. Written once with its assignment, never updated.
type FunnelRecord struct {
	ID             uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssignmentID   uuid.UUID             `gorm:"column:assignment_id;type:uuid;not null;uniqueIndex:ux_funnel_records_assignment"`
	ServiceOrderID uuid.UUID             `gorm:"column:service_order_id;type:uuid;not null"`
	Stages         []types.FunnelStage   `gorm:"column:stages;type:jsonb;serializer:json"`
	Breakdown      *types.ScoringDetails `gorm:"column:breakdown;type:jsonb;serializer:json"`
	TotalScore     float64               `gorm:"column:total_score;not null;default:0"`
	Rationale      string                `gorm:"column:rationale;type:text"`
	FilterReasons  []string              `gorm:"column:filter_reasons;type:jsonb;serializer:json"`
	CreatedAt      time.Time             `gorm:"column:created_at;autoCreateTime"`
}
