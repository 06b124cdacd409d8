package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const envelopeVersion = 1

// ActorRef says who caused an event. Scans and the scheduler use the system role.
type ActorRef struct {
	UserID   *uuid.UUID `json:"userId,omitempty"`
	AgencyID *uuid.UUID `json:"agencyId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

func SystemActor(agencyID uuid.UUID) *ActorRef {
	return &ActorRef{AgencyID: &agencyID, Role: "system"}
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// unchanged. EventID is the outbox row id, which consumers dedupe on.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(id uuid.UUID, event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}
	version := event.Version
	if version == 0 {
		version = envelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    id.String(),
		OccurredAt: occurred.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}
