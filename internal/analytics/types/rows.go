package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// DecisionRow mirrors the engine_decisions BigQuery schema.
type DecisionRow struct {
	EventID       string             `bigquery:"event_id"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	AgencyID      string             `bigquery:"agency_id"`
	TimesheetID   string             `bigquery:"timesheet_id"`
	ShiftID       string             `bigquery:"shift_id"`
	StaffID       string             `bigquery:"staff_id"`
	Decision      string             `bigquery:"decision"`
	Score         int64              `bigquery:"score"`
	Approved      bool               `bigquery:"approved"`
	IssueCodes    []string           `bigquery:"issue_codes"`
	WarningCodes  []string           `bigquery:"warning_codes"`
	WorkflowID    *string            `bigquery:"workflow_id"`
	ManualTrigger bool               `bigquery:"manual_trigger"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}

// ShiftEventRow mirrors the shift_events BigQuery schema.
type ShiftEventRow struct {
	EventID        string             `bigquery:"event_id"`
	EventType      string             `bigquery:"event_type"`
	OccurredAt     time.Time          `bigquery:"occurred_at"`
	AgencyID       string             `bigquery:"agency_id"`
	ShiftID        string             `bigquery:"shift_id"`
	StaffID        *string            `bigquery:"staff_id"`
	Stage          *string            `bigquery:"stage"`
	WorkflowID     *string            `bigquery:"workflow_id"`
	RecipientCount *int64             `bigquery:"recipient_count"`
	Payload        cbigquery.NullJSON `bigquery:"payload"`
}
