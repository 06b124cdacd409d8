package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

// Agency is the tenant that owns staff, clients and shifts.
type Agency struct {
	ID                 uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name               string                   `gorm:"column:name;not null"`
	ContactEmail       *string                  `gorm:"column:contact_email"`
	ContactPhone       *string                  `gorm:"column:contact_phone"`
	AutomationSettings types.AutomationSettings `gorm:"column:automation_settings;type:jsonb;not null"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
