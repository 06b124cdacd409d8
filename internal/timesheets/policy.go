package timesheets

import (
	"time"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// Issue and warning codes recorded on timesheets and admin workflows.
const (
	CodeGeofenceViolation        = "geofence_violation"
	CodeGPSUnavailable           = "gps_unavailable"
	CodeMinorHoursVariance       = "minor_hours_variance"
	CodeHoursVariance            = "hours_variance"
	CodeSignificantHoursMismatch = "significant_hours_mismatch"
	CodePossibleNoShow           = "possible_no_show"
	CodeMissingSignature         = "missing_signature"
	CodeClockOutGeofenceFail     = "clock_out_geofence_fail"
	CodeExistingReview           = "existing_review"
)

// Rule is the severity and score penalty attached to one finding.
type Rule struct {
	Severity enums.Severity
	Penalty  int
}

// Policy holds every threshold the validator applies.
type Policy struct {
	// ExactTolerance is the largest hours difference that still counts as a match.
	ExactTolerance time.Duration
	// MinorTolerance is the largest difference reported as a low warning.
	MinorTolerance time.Duration
	// CriticalVariancePercent is the share of scheduled hours at which a mismatch becomes critical.
	CriticalVariancePercent float64
	ShortShiftReportedHours float64
	ShortShiftScheduledOver float64
	// NotesMinScore gates auto_approve_with_notes.
	NotesMinScore  int
	ReviewDeadline time.Duration

	GeofenceViolation        Rule
	GPSUnavailable           Rule
	MinorHoursVariance       Rule
	HoursVariance            Rule
	SignificantHoursMismatch Rule
	PossibleNoShow           Rule
	MissingSignature         Rule
	ClockOutGeofenceFail     Rule
	ExistingReview           Rule
}

// DefaultPolicy returns the canonical thresholds.
func DefaultPolicy() Policy {
	return Policy{
		ExactTolerance:          5 * time.Minute,
		MinorTolerance:          30 * time.Minute,
		CriticalVariancePercent: 20,
		ShortShiftReportedHours: 0.5,
		ShortShiftScheduledOver: 4,
		NotesMinScore:           85,
		ReviewDeadline:          24 * time.Hour,

		GeofenceViolation:        Rule{Severity: enums.SeverityHigh, Penalty: 50},
		GPSUnavailable:           Rule{Severity: enums.SeverityMedium, Penalty: 40},
		MinorHoursVariance:       Rule{Severity: enums.SeverityLow, Penalty: 5},
		HoursVariance:            Rule{Severity: enums.SeverityMedium, Penalty: 30},
		SignificantHoursMismatch: Rule{Severity: enums.SeverityCritical, Penalty: 50},
		PossibleNoShow:           Rule{Severity: enums.SeverityCritical, Penalty: 60},
		MissingSignature:         Rule{Severity: enums.SeverityHigh, Penalty: 20},
		ClockOutGeofenceFail:     Rule{Severity: enums.SeverityLow, Penalty: 10},
		ExistingReview:           Rule{Severity: enums.SeverityCritical, Penalty: 0},
	}
}
