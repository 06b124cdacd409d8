package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

type shiftNoShowHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newShiftNoShowHandler(writer Writer, logg *logger.Logger) Handler {
	return &shiftNoShowHandler{writer: writer, logg: logg}
}

func (h *shiftNoShowHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ShiftNoShowEvent)
	if !ok {
		return fmt.Errorf("invalid payload for shift.no_show")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"shift_id":   event.ShiftID.String(),
	})

	workflowID := event.WorkflowID.String()
	row, err := buildShiftRow(envelope, event.AgencyID.String(), event.ShiftID.String(), occurredAt(envelope, event.DetectedAt))
	if err != nil {
		h.logg.Error(logCtx, "failed to build shift row", err)
		return err
	}
	row.StaffID = uuidString(event.StaffID)
	row.WorkflowID = &workflowID

	if err := h.writer.InsertShiftEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert shift row", err)
		return err
	}
	h.logg.Info(logCtx, "no-show recorded")
	return nil
}

type shiftEscalatedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newShiftEscalatedHandler(writer Writer, logg *logger.Logger) Handler {
	return &shiftEscalatedHandler{writer: writer, logg: logg}
}

func (h *shiftEscalatedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.ShiftEscalatedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for shift.escalated")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"shift_id":   event.ShiftID.String(),
		"stage":      event.Stage,
	})

	row, err := buildShiftRow(envelope, event.AgencyID.String(), event.ShiftID.String(), occurredAt(envelope, event.EscalatedAt))
	if err != nil {
		h.logg.Error(logCtx, "failed to build shift row", err)
		return err
	}
	stage := string(event.Stage)
	recipients := int64(event.RecipientCount)
	row.Stage = &stage
	row.WorkflowID = uuidString(event.WorkflowID)
	row.RecipientCount = &recipients

	if err := h.writer.InsertShiftEvent(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert shift row", err)
		return err
	}
	h.logg.Info(logCtx, "shift escalation recorded")
	return nil
}
