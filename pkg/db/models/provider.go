package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// Provider is an external organization fulfilling service orders through its
// work teams. Onboarding owns writes; this engine reads.
type Provider struct {
	ID               uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name             string                   `gorm:"column:name;type:text;not null"`
	CountryCode      string                   `gorm:"column:country_code;type:text;not null"`
	BusinessUnit     string                   `gorm:"column:business_unit;type:text;not null"`
	Tier             int                      `gorm:"column:tier;not null;default:3"`
	RiskStatus       enums.ProviderRiskStatus `gorm:"column:risk_status;type:text;not null;default:'active'"`
	PerformanceScore float64                  `gorm:"column:performance_score;not null;default:0"`
	OnboardedAt      time.Time                `gorm:"column:onboarded_at;not null"`
	WorkTeams        []WorkTeam               `gorm:"foreignKey:ProviderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// WorkTeam is the crew-level unit scored and assigned against service orders.
type WorkTeam struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderID      uuid.UUID      `gorm:"column:provider_id;type:uuid;not null"`
	Name            string         `gorm:"column:name;type:text;not null"`
	Skills          []string       `gorm:"column:skills;type:jsonb;serializer:json"`
	BaseLocation    types.GeoPoint `gorm:"column:base_location;type:jsonb;serializer:json"`
	WindowCapacity  int            `gorm:"column:window_capacity;not null;default:1"`
	OpenAssignments int            `gorm:"column:open_assignments;not null;default:0"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
