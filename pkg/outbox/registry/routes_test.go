package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		NotificationTopic: "cs-notifications",
		DecisionTopic:     "cs-decisions",
	})
	require.NoError(t, err)
	return reg
}

func row(t *testing.T, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, data any) models.OutboxEvent {
	t.Helper()
	raw, ok := data.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(data)
		require.NoError(t, err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Data:       raw,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}
}

func TestResolveDecodesDecisionEvent(t *testing.T) {
	reg := newTestRegistry(t)
	timesheetID := uuid.New()
	event := row(t, enums.EventTimesheetValidated, enums.AggregateTimesheet, payloads.TimesheetValidatedEvent{
		TimesheetID: timesheetID,
		Decision:    enums.DecisionFlagForReview,
		Score:       65,
		IssueCodes:  []string{"hours_mismatch"},
	})

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "cs-decisions", resolved.Route.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.TimesheetValidatedEvent)
	require.True(t, ok)
	assert.Equal(t, timesheetID, payload.TimesheetID)
	assert.Equal(t, 65, payload.Score)
}

func TestResolveRoutesNotificationsSeparately(t *testing.T) {
	reg := newTestRegistry(t)
	event := row(t, enums.EventNotificationRequested, enums.AggregateNotification, payloads.NotificationRequestedEvent{
		AgencyID:   uuid.New(),
		Template:   enums.TemplateShiftReminder24h,
		Recipients: []payloads.Recipient{{Channel: enums.ChannelSMS, Address: "+447700900123"}},
	})

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "cs-notifications", resolved.Route.Topic)
	payload := resolved.Payload.(*payloads.NotificationRequestedEvent)
	require.Len(t, payload.Recipients, 1)
	assert.Equal(t, enums.ChannelSMS, payload.Recipients[0].Channel)
}

func TestResolveFailuresArePermanent(t *testing.T) {
	reg := newTestRegistry(t)
	noAggregate := row(t, enums.EventShiftNoShow, enums.AggregateShift, payloads.ShiftNoShowEvent{ShiftID: uuid.New()})
	noAggregate.AggregateID = uuid.Nil
	badEnvelope := row(t, enums.EventShiftNoShow, enums.AggregateShift, payloads.ShiftNoShowEvent{})
	badEnvelope.Payload = json.RawMessage(`"not an envelope"`)

	cases := map[string]models.OutboxEvent{
		"unknown type":       row(t, enums.OutboxEventType("shift.deleted"), enums.AggregateShift, map[string]string{"reason": "none"}),
		"aggregate mismatch": row(t, enums.EventShiftNoShow, enums.AggregateTimesheet, payloads.ShiftNoShowEvent{}),
		"missing aggregate":  noAggregate,
		"null data":          row(t, enums.EventShiftEscalated, enums.AggregateShift, json.RawMessage("null")),
		"bad envelope":       badEnvelope,
		"bad payload":        row(t, enums.EventShiftEscalated, enums.AggregateShift, json.RawMessage(`{"recipient_count":"many"}`)),
	}
	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			assert.ErrorIs(t, err, ErrNonRetryable)
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{DecisionTopic: "d"})
	assert.ErrorContains(t, err, "notification topic")
	_, err = NewEventRegistry(config.PubSubConfig{NotificationTopic: "n"})
	assert.ErrorContains(t, err, "decision topic")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{"cs-decisions", "cs-notifications"}, newTestRegistry(t).Topics())
}
