package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// Assignment pairs one service order with one provider and tracks the
// offer/acceptance lifecycle. Rows are never deleted; a new matching run
// creates new rows instead of mutating historical scoring.
type Assignment struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ServiceOrderID       uuid.UUID              `gorm:"column:service_order_id;type:uuid;not null"`
	ProviderID           uuid.UUID              `gorm:"column:provider_id;type:uuid;not null"`
	WorkTeamID           *uuid.UUID             `gorm:"column:work_team_id;type:uuid"`
	Mode                 enums.AssignmentMode   `gorm:"column:mode;type:text;not null"`
	Status               enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Score                float64                `gorm:"column:score;not null;default:0"`
	ScoringDetails       types.ScoringDetails   `gorm:"column:scoring_details;type:jsonb;serializer:json"`
	ProposedDate         *time.Time             `gorm:"column:proposed_date"`
	OriginalDate         *time.Time             `gorm:"column:original_date"`
	DateNegotiationRound int                    `gorm:"column:date_negotiation_round;not null;default:0"`
	OfferExpiresAt       *time.Time             `gorm:"column:offer_expires_at"`
	AcceptedAt           *time.Time             `gorm:"column:accepted_at"`
	AcceptedDate         *time.Time             `gorm:"column:accepted_date"`
	DeclinedAt           *time.Time             `gorm:"column:declined_at"`
	DeclineReason        *string                `gorm:"column:decline_reason"`
	FilterReasons        []string               `gorm:"column:filter_reasons;type:jsonb;serializer:json"`
	Negotiations         []DateNegotiation      `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// DateNegotiation is one append-only round of date re-negotiation attached to
// a pending assignment. The parent's proposed_date and round counter mirror
// the latest row.
type DateNegotiation struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssignmentID uuid.UUID              `gorm:"column:assignment_id;type:uuid;not null"`
	Round        int                    `gorm:"column:round;not null"`
	ProposedDate time.Time              `gorm:"column:proposed_date;not null"`
	ProposedBy   enums.NegotiationParty `gorm:"column:proposed_by;type:text;not null"`
	Notes        *string                `gorm:"column:notes"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
