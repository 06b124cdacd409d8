package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

// DefaultShiftHours is assumed when a shift has no recorded duration.
const DefaultShiftHours = 12.0

// Shift is a scheduled work period at a client site.
type Shift struct {
	ID                  uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID            uuid.UUID          `gorm:"column:agency_id;type:uuid;not null"`
	ClientID            uuid.UUID          `gorm:"column:client_id;type:uuid;not null"`
	AssignedStaffID     *uuid.UUID         `gorm:"column:assigned_staff_id;type:uuid"`
	StartsAt            time.Time          `gorm:"column:starts_at;not null"`
	EndsAt              time.Time          `gorm:"column:ends_at;not null"`
	DurationHours       *float64           `gorm:"column:duration_hours"`
	RoleRequired        string             `gorm:"column:role_required;not null"`
	Urgency             enums.ShiftUrgency `gorm:"column:urgency;not null;default:'normal'"`
	WorkLocation        *string            `gorm:"column:work_location_within_site"`
	PayRate             decimal.Decimal    `gorm:"column:pay_rate;type:numeric(10,2);not null"`
	ChargeRate          decimal.Decimal    `gorm:"column:charge_rate;type:numeric(10,2);not null"`
	Status              enums.ShiftStatus  `gorm:"column:status;not null;default:'open'"`
	CancelledBy         *string            `gorm:"column:cancelled_by"`
	CancelledAt         *time.Time         `gorm:"column:cancelled_at"`
	CancellationReason  *string            `gorm:"column:cancellation_reason"`
	ShiftStartedAt      *time.Time         `gorm:"column:shift_started_at"`
	ShiftEndedAt        *time.Time         `gorm:"column:shift_ended_at"`
	AdminClosedAt       *time.Time         `gorm:"column:admin_closed_at"`
	AdminClosureOutcome *string            `gorm:"column:admin_closure_outcome"`
	TimesheetReceived   bool               `gorm:"column:timesheet_received;not null;default:false"`
	TimesheetReceivedAt *time.Time         `gorm:"column:timesheet_received_at"`
	Journal             types.Journal      `gorm:"column:journal;type:jsonb;not null"`
	ReminderSent        bool               `gorm:"column:reminder_sent;not null;default:false"`
	ReminderSentAt      *time.Time         `gorm:"column:reminder_sent_at"`
	Reminder24hSent     bool               `gorm:"column:reminder_24h_sent;not null;default:false"`
	Reminder24hSentAt   *time.Time         `gorm:"column:reminder_24h_sent_at"`
	Reminder2hSent      bool               `gorm:"column:reminder_2h_sent;not null;default:false"`
	Reminder2hSentAt    *time.Time         `gorm:"column:reminder_2h_sent_at"`
	BroadcastSentAt     *time.Time         `gorm:"column:broadcast_sent_at"`
	EscalationDeadline  *time.Time         `gorm:"column:escalation_deadline"`
	EscalatedAt         *time.Time         `gorm:"column:escalated_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ScheduledHours returns the recorded duration or the 12h default.
func (s Shift) ScheduledHours() float64 {
	if s.DurationHours != nil && *s.DurationHours > 0 {
		return *s.DurationHours
	}
	return DefaultShiftHours
}

// Window renders the shift times as HH:MM-HH:MM in loc.
func (s Shift) Window(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return s.StartsAt.In(loc).Format("15:04") + "-" + s.EndsAt.In(loc).Format("15:04")
}
