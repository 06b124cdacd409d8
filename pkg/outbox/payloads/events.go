package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// TimesheetValidatedEvent records the outcome of one validation pass.
type TimesheetValidatedEvent struct {
	TimesheetID   uuid.UUID                `json:"timesheet_id"`
	ShiftID       uuid.UUID                `json:"shift_id"`
	AgencyID      uuid.UUID                `json:"agency_id"`
	StaffID       uuid.UUID                `json:"staff_id"`
	Decision      enums.ValidationDecision `json:"decision"`
	Score         int                      `json:"score"`
	IssueCodes    []string                 `json:"issue_codes,omitempty"`
	WarningCodes  []string                 `json:"warning_codes,omitempty"`
	WorkflowID    *uuid.UUID               `json:"workflow_id,omitempty"`
	ManualTrigger bool                     `json:"manual_trigger"`
	ValidatedAt   time.Time                `json:"validated_at"`
}

// Recipient is one addressed destination for a notification.
type Recipient struct {
	Channel enums.NotificationChannel `json:"channel"`
	Address string                    `json:"address"`
	Name    string                    `json:"name,omitempty"`
}

// NotificationRequestedEvent asks the notification worker to render and send a template.
type NotificationRequestedEvent struct {
	AgencyID   uuid.UUID                  `json:"agency_id"`
	Template   enums.NotificationTemplate `json:"template"`
	Recipients []Recipient                `json:"recipients"`
	Vars       map[string]string          `json:"vars,omitempty"`
	Reason     string                     `json:"reason,omitempty"`
}

// ShiftNoShowEvent is emitted once per shift when a no-show is escalated.
type ShiftNoShowEvent struct {
	ShiftID    uuid.UUID  `json:"shift_id"`
	AgencyID   uuid.UUID  `json:"agency_id"`
	StaffID    *uuid.UUID `json:"staff_id,omitempty"`
	WorkflowID uuid.UUID  `json:"workflow_id"`
	DetectedAt time.Time  `json:"detected_at"`
}

// ShiftEscalationStage distinguishes the broadcast step from the admin escalation.
type ShiftEscalationStage string

const (
	EscalationStageBroadcast ShiftEscalationStage = "broadcast"
	EscalationStageAdmin     ShiftEscalationStage = "admin"
)

// ShiftEscalatedEvent is emitted when an unfilled shift moves up the escalation ladder.
type ShiftEscalatedEvent struct {
	ShiftID        uuid.UUID            `json:"shift_id"`
	AgencyID       uuid.UUID            `json:"agency_id"`
	Stage          ShiftEscalationStage `json:"stage"`
	WorkflowID     *uuid.UUID           `json:"workflow_id,omitempty"`
	RecipientCount int                  `json:"recipient_count"`
	EscalatedAt    time.Time            `json:"escalated_at"`
}

// New returns a pointer to the zero payload for eventType, ready to unmarshal into.
func New(eventType enums.OutboxEventType) (any, bool) {
	switch eventType {
	case enums.EventTimesheetValidated:
		return &TimesheetValidatedEvent{}, true
	case enums.EventNotificationRequested:
		return &NotificationRequestedEvent{}, true
	case enums.EventShiftNoShow:
		return &ShiftNoShowEvent{}, true
	case enums.EventShiftEscalated:
		return &ShiftEscalatedEvent{}, true
	}
	return nil, false
}
