package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

// Timesheet records the hours worked for one (shift, staff) pair.
type Timesheet struct {
	ID                      uuid.UUID                 `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AgencyID                uuid.UUID                 `gorm:"column:agency_id;type:uuid;not null"`
	ShiftID                 uuid.UUID                 `gorm:"column:shift_id;type:uuid;not null"`
	StaffID                 uuid.UUID                 `gorm:"column:staff_id;type:uuid;not null"`
	ClientID                uuid.UUID                 `gorm:"column:client_id;type:uuid;not null"`
	Status                  enums.TimesheetStatus     `gorm:"column:status;not null;default:'draft'"`
	TotalHours              float64                   `gorm:"column:total_hours;not null;default:0"`
	BreakMinutes            int                       `gorm:"column:break_minutes;not null;default:0"`
	ClockInTime             *time.Time                `gorm:"column:clock_in_time"`
	ClockOutTime            *time.Time                `gorm:"column:clock_out_time"`
	ClockInLatitude         *float64                  `gorm:"column:clock_in_latitude"`
	ClockInLongitude        *float64                  `gorm:"column:clock_in_longitude"`
	ClockOutLatitude        *float64                  `gorm:"column:clock_out_latitude"`
	ClockOutLongitude       *float64                  `gorm:"column:clock_out_longitude"`
	GeofenceValidated       *bool                     `gorm:"column:geofence_validated"`
	GeofenceDistanceMeters  *float64                  `gorm:"column:geofence_distance_meters"`
	GeofenceViolationReason *string                   `gorm:"column:geofence_violation_reason"`
	LocationVerified        *bool                     `gorm:"column:location_verified"`
	StaffSignature          *string                   `gorm:"column:staff_signature"`
	ClientSignature         *string                   `gorm:"column:client_signature"`
	PayAmount               decimal.NullDecimal       `gorm:"column:pay_amount;type:numeric(12,2)"`
	ChargeAmount            decimal.NullDecimal       `gorm:"column:charge_amount;type:numeric(12,2)"`
	ValidationCompletedAt   *time.Time                `gorm:"column:validation_completed_at"`
	ValidationDecision      *enums.ValidationDecision `gorm:"column:validation_decision"`
	ValidationScore         *int                      `gorm:"column:validation_score"`
	ValidationIssues        types.ValidationIssues    `gorm:"column:validation_issues;type:jsonb"`
	ValidationWarnings      types.ValidationIssues    `gorm:"column:validation_warnings;type:jsonb"`
	AutoApproved            bool                      `gorm:"column:auto_approved;not null;default:false"`
	ClientApprovedAt        *time.Time                `gorm:"column:client_approved_at"`
	ApprovalNotes           *string                   `gorm:"column:approval_notes"`
	CreatedAt               time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// HasClockInLocation reports whether GPS coordinates were captured at clock-in.
func (t Timesheet) HasClockInLocation() bool {
	return t.ClockInLatitude != nil && t.ClockInLongitude != nil
}

// HasClockOutLocation reports whether GPS coordinates were captured at clock-out.
func (t Timesheet) HasClockOutLocation() bool {
	return t.ClockOutLatitude != nil && t.ClockOutLongitude != nil
}
