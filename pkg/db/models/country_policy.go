package models

import (
	"time"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
)

// CountryPolicy is the country/business-unit-scoped configuration this engine
// consumes read-only: auto-accept behavior, offer timeout, and the negotiation
// round cap. Country configuration management owns writes.
type CountryPolicy struct {
	CountryCode           string                      `gorm:"column:country_code;type:text;primaryKey"`
	BusinessUnit          string                      `gorm:"column:business_unit;type:text;not null"`
	ProviderAutoAccept    bool                        `gorm:"column:provider_auto_accept;not null;default:false"`
	OfferTimeoutHours     int                         `gorm:"column:offer_timeout_hours;not null;default:24"`
	MaxNegotiationRounds  int                         `gorm:"column:max_negotiation_rounds;not null;default:3"`
	ProjectAssignmentMode enums.ProjectAssignmentMode `gorm:"column:project_assignment_mode;type:text;not null;default:'manual'"`
	UpdatedAt             time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
