package router

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/writer"
)

func buildShiftRow(envelope types.Envelope, agencyID, shiftID string, at time.Time) (types.ShiftEventRow, error) {
	raw, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		return types.ShiftEventRow{}, err
	}
	return types.ShiftEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: at,
		AgencyID:   agencyID,
		ShiftID:    shiftID,
		Payload:    raw,
	}, nil
}

// occurredAt prefers the timestamp carried by the event over the envelope's.
func occurredAt(envelope types.Envelope, eventTime time.Time) time.Time {
	if !eventTime.IsZero() {
		return eventTime.UTC()
	}
	return envelope.OccurredAt.UTC()
}

func uuidString(id *uuid.UUID) *string {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	value := id.String()
	return &value
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
