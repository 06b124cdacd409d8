package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/writer"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

type timesheetValidatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newTimesheetValidatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &timesheetValidatedHandler{writer: writer, logg: logg}
}

func (h *timesheetValidatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.TimesheetValidatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for timesheet.validated")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"timesheet_id": event.TimesheetID.String(),
		"decision":     event.Decision,
		"score":        event.Score,
	})

	raw, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode decision payload", err)
		return err
	}
	row := types.DecisionRow{
		EventID:       envelope.EventID,
		OccurredAt:    occurredAt(envelope, event.ValidatedAt),
		AgencyID:      event.AgencyID.String(),
		TimesheetID:   event.TimesheetID.String(),
		ShiftID:       event.ShiftID.String(),
		StaffID:       event.StaffID.String(),
		Decision:      string(event.Decision),
		Score:         int64(event.Score),
		Approved:      event.Decision.Approves(),
		IssueCodes:    nonNil(event.IssueCodes),
		WarningCodes:  nonNil(event.WarningCodes),
		WorkflowID:    uuidString(event.WorkflowID),
		ManualTrigger: event.ManualTrigger,
		Payload:       raw,
	}
	if err := h.writer.InsertDecision(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert decision row", err)
		return err
	}

	h.logg.Info(logCtx, "timesheet decision recorded")
	return nil
}
