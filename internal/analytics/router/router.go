package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertDecision(ctx context.Context, row types.DecisionRow) error
	InsertShiftEvent(ctx context.Context, row types.ShiftEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// Router dispatches analytics envelopes to the handler registered for their event type.
type Router struct {
	handlers map[enums.OutboxEventType]Handler
	logg     *logger.Logger
}

// NewRouter wires the default handlers. Overrides replace a default but never add
// an event type the router does not already record.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventTimesheetValidated: newTimesheetValidatedHandler(writer, logg),
		enums.EventShiftNoShow:        newShiftNoShowHandler(writer, logg),
		enums.EventShiftEscalated:     newShiftEscalatedHandler(writer, logg),
	}
	for event, custom := range overrides {
		if _, known := handlers[event]; known && custom != nil {
			handlers[event] = custom
		}
	}
	return &Router{handlers: handlers, logg: logg}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload, err := envelope.Decode()
	if err != nil {
		return err
	}
	return handler.Handle(ctx, envelope, payload)
}
