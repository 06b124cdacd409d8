package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

func TestRouterUnsupportedEvent(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	env := types.Envelope{
		EventType: enums.EventNotificationRequested,
		Payload:   []byte(`{"foo":"bar"}`),
	}
	err := router.Handle(context.Background(), env)
	if !errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}

func TestRouterRoutesToOverride(t *testing.T) {
	handler := &stubHandler{}
	router := newTestRouter(t, &fakeWriter{}, map[enums.OutboxEventType]Handler{
		enums.EventShiftNoShow: handler,
	})
	env := types.Envelope{
		EventType: enums.EventShiftNoShow,
		Payload:   mustJSON(t, payloads.ShiftNoShowEvent{ShiftID: uuid.New()}),
	}
	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handler.called {
		t.Fatalf("handler not invoked")
	}
	if _, ok := handler.payload.(*payloads.ShiftNoShowEvent); !ok {
		t.Fatalf("unexpected payload type %T", handler.payload)
	}
}

func TestRouterRejectsEmptyPayload(t *testing.T) {
	router := newTestRouter(t, &fakeWriter{}, nil)
	err := router.Handle(context.Background(), types.Envelope{EventType: enums.EventShiftEscalated})
	if err == nil || errors.Is(err, ErrUnsupportedEventType) {
		t.Fatalf("expected empty payload error, got %v", err)
	}
}

func TestTimesheetValidatedWritesDecisionRow(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)
	workflowID := uuid.New()
	validatedAt := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	event := payloads.TimesheetValidatedEvent{
		TimesheetID:  uuid.New(),
		ShiftID:      uuid.New(),
		AgencyID:     uuid.New(),
		StaffID:      uuid.New(),
		Decision:     enums.DecisionAutoApproveWithNotes,
		Score:        90,
		WarningCodes: []string{"minor_hours_variance"},
		WorkflowID:   &workflowID,
		ValidatedAt:  validatedAt,
	}
	env := types.Envelope{
		EventID:    "evt-1",
		EventType:  enums.EventTimesheetValidated,
		OccurredAt: validatedAt.Add(time.Second),
		Payload:    mustJSON(t, event),
	}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.decisions) != 1 {
		t.Fatalf("expected one decision row, got %d", len(writer.decisions))
	}
	row := writer.decisions[0]
	if row.EventID != "evt-1" || row.TimesheetID != event.TimesheetID.String() {
		t.Fatalf("unexpected identifiers %+v", row)
	}
	if !row.Approved || row.Score != 90 || row.Decision != "auto_approve_with_notes" {
		t.Fatalf("unexpected decision columns %+v", row)
	}
	if !row.OccurredAt.Equal(validatedAt) {
		t.Fatalf("expected validated_at timestamp, got %v", row.OccurredAt)
	}
	if row.IssueCodes == nil || len(row.IssueCodes) != 0 {
		t.Fatalf("expected empty issue codes, got %v", row.IssueCodes)
	}
	if row.WorkflowID == nil || *row.WorkflowID != workflowID.String() {
		t.Fatalf("unexpected workflow id %v", row.WorkflowID)
	}
	if !row.Payload.Valid {
		t.Fatalf("expected payload json")
	}
}

func TestShiftEscalatedWritesStage(t *testing.T) {
	writer := &fakeWriter{}
	router := newTestRouter(t, writer, nil)
	event := payloads.ShiftEscalatedEvent{
		ShiftID:        uuid.New(),
		AgencyID:       uuid.New(),
		Stage:          payloads.EscalationStageBroadcast,
		RecipientCount: 4,
	}
	occurred := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	env := types.Envelope{
		EventID:    "evt-2",
		EventType:  enums.EventShiftEscalated,
		OccurredAt: occurred,
		Payload:    mustJSON(t, event),
	}

	if err := router.Handle(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(writer.shifts) != 1 {
		t.Fatalf("expected one shift row, got %d", len(writer.shifts))
	}
	row := writer.shifts[0]
	if row.EventType != "shift.escalated" || row.Stage == nil || *row.Stage != "broadcast" {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.RecipientCount == nil || *row.RecipientCount != 4 {
		t.Fatalf("unexpected recipient count %v", row.RecipientCount)
	}
	if row.WorkflowID != nil {
		t.Fatalf("broadcast stage has no workflow")
	}
	if !row.OccurredAt.Equal(occurred) {
		t.Fatalf("expected envelope timestamp fallback, got %v", row.OccurredAt)
	}
}

func TestShiftNoShowPropagatesWriterError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("bigquery down")}
	router := newTestRouter(t, writer, nil)
	staffID := uuid.New()
	env := types.Envelope{
		EventID:   "evt-3",
		EventType: enums.EventShiftNoShow,
		Payload: mustJSON(t, payloads.ShiftNoShowEvent{
			ShiftID:    uuid.New(),
			AgencyID:   uuid.New(),
			StaffID:    &staffID,
			WorkflowID: uuid.New(),
			DetectedAt: time.Now().UTC(),
		}),
	}
	if err := router.Handle(context.Background(), env); err == nil {
		t.Fatal("expected writer error")
	}
}

func newTestRouter(t *testing.T, writer Writer, overrides map[enums.OutboxEventType]Handler) *Router {
	t.Helper()
	router, err := NewRouter(writer, logger.New(logger.Options{ServiceName: "router-test"}), overrides)
	if err != nil {
		t.Fatalf("construct router: %v", err)
	}
	return router
}

func mustJSON(t *testing.T, value any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

type stubHandler struct {
	called  bool
	payload any
}

func (s *stubHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	s.called = true
	s.payload = payload
	return nil
}

type fakeWriter struct {
	decisions []types.DecisionRow
	shifts    []types.ShiftEventRow
	err       error
}

func (f *fakeWriter) InsertDecision(_ context.Context, row types.DecisionRow) error {
	if f.err != nil {
		return f.err
	}
	f.decisions = append(f.decisions, row)
	return nil
}

func (f *fakeWriter) InsertShiftEvent(_ context.Context, row types.ShiftEventRow) error {
	if f.err != nil {
		return f.err
	}
	f.shifts = append(f.shifts, row)
	return nil
}
