package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// Staff is a worker who can be assigned to shifts.
type Staff struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID    uuid.UUID         `gorm:"column:agency_id;type:uuid;not null"`
	FirstName   string            `gorm:"column:first_name;not null"`
	LastName    string            `gorm:"column:last_name;not null"`
	Role        string            `gorm:"column:role;not null"`
	Status      enums.StaffStatus `gorm:"column:status;not null;default:'active'"`
	Email       *string           `gorm:"column:email"`
	Phone       *string           `gorm:"column:phone"`
	WhatsApp    *string           `gorm:"column:whatsapp"`
	Postcode    *string           `gorm:"column:postcode"`
	Rating      *float64          `gorm:"column:rating"`
	GPSConsent  bool              `gorm:"column:gps_consent;not null;default:false"`
	DBSChecked  bool              `gorm:"column:dbs_checked;not null;default:false"`
	RightToWork bool              `gorm:"column:right_to_work;not null;default:false"`
	NMCPin      *string           `gorm:"column:nmc_pin"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Staff) TableName() string { return "staff" }

func (s Staff) FullName() string {
	return s.FirstName + " " + s.LastName
}
