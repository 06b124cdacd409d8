package enums

// WorkflowType names the review-queue category.
type WorkflowType string

const (
	WorkflowTypeTimesheetDiscrepancy WorkflowType = "timesheet_discrepancy"
	WorkflowTypeStaffNoShow          WorkflowType = "staff_no_show"
	WorkflowTypeUnfilledUrgentShift  WorkflowType = "unfilled_urgent_shift"
)

func (t WorkflowType) IsValid() bool {
	switch t {
	case WorkflowTypeTimesheetDiscrepancy, WorkflowTypeStaffNoShow, WorkflowTypeUnfilledUrgentShift:
		return true
	}
	return false
}

// WorkflowStatus is owned by admins once the row is created.
type WorkflowStatus string

const (
	WorkflowStatusPending    WorkflowStatus = "pending"
	WorkflowStatusInProgress WorkflowStatus = "in_progress"
	WorkflowStatusResolved   WorkflowStatus = "resolved"
	WorkflowStatusDismissed  WorkflowStatus = "dismissed"
)

var validWorkflowStatuses = []WorkflowStatus{
	WorkflowStatusPending,
	WorkflowStatusInProgress,
	WorkflowStatusResolved,
	WorkflowStatusDismissed,
}

// IsOpen reports whether the workflow still awaits an admin.
func (s WorkflowStatus) IsOpen() bool {
	return s == WorkflowStatusPending || s == WorkflowStatusInProgress
}

// ParseWorkflowStatus converts query input into WorkflowStatus.
func ParseWorkflowStatus(value string) (WorkflowStatus, error) {
	return parse("workflow status", value, validWorkflowStatuses)
}

// RelatedEntity names the row a workflow points at.
type RelatedEntity string

const (
	RelatedEntityTimesheet RelatedEntity = "timesheet"
	RelatedEntityShift     RelatedEntity = "shift"
)
