package enums

import "slices"

// TimesheetStatus follows draft -> submitted/pending_confirmation -> approved/pending_review -> paid.
type TimesheetStatus string

const (
	TimesheetStatusDraft               TimesheetStatus = "draft"
	TimesheetStatusSubmitted           TimesheetStatus = "submitted"
	TimesheetStatusPendingConfirmation TimesheetStatus = "pending_confirmation"
	TimesheetStatusApproved            TimesheetStatus = "approved"
	TimesheetStatusPendingReview       TimesheetStatus = "pending_review"
	TimesheetStatusPaid                TimesheetStatus = "paid"
)

var validTimesheetStatuses = []TimesheetStatus{
	TimesheetStatusDraft,
	TimesheetStatusSubmitted,
	TimesheetStatusPendingConfirmation,
	TimesheetStatusApproved,
	TimesheetStatusPendingReview,
	TimesheetStatusPaid,
}

func (s TimesheetStatus) IsValid() bool {
	return slices.Contains(validTimesheetStatuses, s)
}

// IsFinalized reports whether automation may no longer rewrite the timesheet.
func (s TimesheetStatus) IsFinalized() bool {
	return s == TimesheetStatusApproved || s == TimesheetStatusPaid
}

func ParseTimesheetStatus(value string) (TimesheetStatus, error) {
	return parse("timesheet status", value, validTimesheetStatuses)
}

// ValidationDecision is the outcome of scoring a timesheet.
type ValidationDecision string

const (
	DecisionAutoApprove          ValidationDecision = "auto_approve"
	DecisionAutoApproveWithNotes ValidationDecision = "auto_approve_with_notes"
	DecisionFlagForReview        ValidationDecision = "flag_for_review"
	DecisionEscalateToAdmin      ValidationDecision = "escalate_to_admin"
)

// Approves reports whether the decision moves the timesheet to approved.
func (d ValidationDecision) Approves() bool {
	return d == DecisionAutoApprove || d == DecisionAutoApproveWithNotes
}

// Severity ranks validation issues and workflow priorities.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// IsBlocking reports whether the severity forces admin escalation.
func (s Severity) IsBlocking() bool {
	return s.Rank() >= SeverityHigh.Rank()
}
