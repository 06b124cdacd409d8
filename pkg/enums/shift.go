package enums

import "slices"

// ShiftStatus maps to the shifts.status check constraint.
type ShiftStatus string

const (
	ShiftStatusOpen                 ShiftStatus = "open"
	ShiftStatusAssigned             ShiftStatus = "assigned"
	ShiftStatusConfirmed            ShiftStatus = "confirmed"
	ShiftStatusInProgress           ShiftStatus = "in_progress"
	ShiftStatusAwaitingAdminClosure ShiftStatus = "awaiting_admin_closure"
	ShiftStatusCompleted            ShiftStatus = "completed"
	ShiftStatusCancelled            ShiftStatus = "cancelled"
	ShiftStatusNoShow               ShiftStatus = "no_show"
	ShiftStatusDisputed             ShiftStatus = "disputed"
	ShiftStatusUnfilledEscalated    ShiftStatus = "unfilled_escalated"
)

var validShiftStatuses = []ShiftStatus{
	ShiftStatusOpen,
	ShiftStatusAssigned,
	ShiftStatusConfirmed,
	ShiftStatusInProgress,
	ShiftStatusAwaitingAdminClosure,
	ShiftStatusCompleted,
	ShiftStatusCancelled,
	ShiftStatusNoShow,
	ShiftStatusDisputed,
	ShiftStatusUnfilledEscalated,
}

// IsValid reports whether the value matches a known shift status.
func (s ShiftStatus) IsValid() bool {
	return slices.Contains(validShiftStatuses, s)
}

// IsTerminal reports whether automation must leave the shift alone.
func (s ShiftStatus) IsTerminal() bool {
	switch s {
	case ShiftStatusCompleted, ShiftStatusCancelled, ShiftStatusNoShow:
		return true
	}
	return false
}

// ParseShiftStatus converts raw strings into ShiftStatus.
func ParseShiftStatus(value string) (ShiftStatus, error) {
	return parse("shift status", value, validShiftStatuses)
}

// ShiftUrgency drives the escalation scan.
type ShiftUrgency string

const (
	ShiftUrgencyNormal   ShiftUrgency = "normal"
	ShiftUrgencyUrgent   ShiftUrgency = "urgent"
	ShiftUrgencyCritical ShiftUrgency = "critical"
)

func (u ShiftUrgency) IsValid() bool {
	switch u {
	case ShiftUrgencyNormal, ShiftUrgencyUrgent, ShiftUrgencyCritical:
		return true
	}
	return false
}

// ShiftJournalMethod labels how a journal entry was produced.
type ShiftJournalMethod string

const (
	JournalMethodAutomated       ShiftJournalMethod = "automated"
	JournalMethodAutoApproval    ShiftJournalMethod = "auto_approval"
	JournalMethodGPSAutoComplete ShiftJournalMethod = "gps_auto_completion"
	JournalMethodNoShowDetection ShiftJournalMethod = "no_show_detection"
	JournalMethodSmartEscalation ShiftJournalMethod = "smart_escalation"
	JournalMethodAdmin           ShiftJournalMethod = "admin"
)

// AdminClosureOutcomeAutoCompletedGPS marks shifts closed without admin review.
const AdminClosureOutcomeAutoCompletedGPS = "auto_completed_gps"
