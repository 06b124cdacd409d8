package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an agency operator who can be alerted and can call the engines.
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID    *uuid.UUID `gorm:"column:agency_id;type:uuid"`
	Email       string     `gorm:"type:text;not null;uniqueIndex"`
	FirstName   string     `gorm:"column:first_name;not null"`
	LastName    string     `gorm:"column:last_name;not null"`
	Phone       *string    `gorm:"column:phone"`
	UserType    string     `gorm:"column:user_type;not null"`
	SlackUserID *string    `gorm:"column:slack_user_id"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

const (
	UserTypeAgencyAdmin = "agency_admin"
	UserTypeSystem      = "system"
)

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}
