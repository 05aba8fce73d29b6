package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/types"
)

// ServiceOrder is a unit of field work to be performed at a customer site.
// Matching reads it; the ordering subsystem owns its lifecycle.
type ServiceOrder struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    int64                    `gorm:"column:order_number;not null"`
	CountryCode    string                   `gorm:"column:country_code;type:text;not null"`
	BusinessUnit   string                   `gorm:"column:business_unit;type:text;not null"`
	RequiredSkills []string                 `gorm:"column:required_skills;type:jsonb;serializer:json"`
	ServiceAddress types.ServiceAddress     `gorm:"column:service_address;type:jsonb;serializer:json"`
	RequestedDate  time.Time                `gorm:"column:requested_date;not null"`
	Status         enums.ServiceOrderStatus `gorm:"column:status;type:text;not null;default:'open'"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
