package enums

import "slices"

// OutboxAggregateType names the row an outbox event is about.
type OutboxAggregateType string

const (
	AggregateTimesheet     OutboxAggregateType = "timesheet"
	AggregateShift         OutboxAggregateType = "shift"
	AggregateAdminWorkflow OutboxAggregateType = "admin_workflow"
	AggregateNotification  OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateTimesheet,
	AggregateShift,
	AggregateAdminWorkflow,
	AggregateNotification,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse("aggregate type", value, validAggregateTypes)
}

// OutboxEventType names a domain event written to the outbox.
type OutboxEventType string

const (
	EventTimesheetValidated    OutboxEventType = "timesheet.validated"
	EventNotificationRequested OutboxEventType = "notification.requested"
	EventShiftNoShow           OutboxEventType = "shift.no_show"
	EventShiftEscalated        OutboxEventType = "shift.escalated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventTimesheetValidated,
	EventNotificationRequested,
	EventShiftNoShow,
	EventShiftEscalated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse("event type", value, validOutboxEventTypes)
}
