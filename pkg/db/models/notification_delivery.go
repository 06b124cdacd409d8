package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// NotificationDelivery tracks one message to one recipient over one channel.
type NotificationDelivery struct {
	ID            uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID       uuid.UUID                 `gorm:"column:event_id;type:uuid;not null"`
	AgencyID      uuid.UUID                 `gorm:"column:agency_id;type:uuid;not null"`
	Template      string                    `gorm:"column:template;not null"`
	Channel       enums.NotificationChannel `gorm:"column:channel;not null"`
	Recipient     string                    `gorm:"column:recipient;not null"`
	Subject       *string                   `gorm:"column:subject"`
	Body          string                    `gorm:"column:body;not null"`
	Status        enums.DeliveryStatus      `gorm:"column:status;not null;default:'pending'"`
	Attempts      int                       `gorm:"column:attempts;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
	NextAttemptAt *time.Time                `gorm:"column:next_attempt_at"`
	SentAt        *time.Time                `gorm:"column:sent_at"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
