package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

// ErrUnknownPayload is returned by Decode for event types without a payload struct.
var ErrUnknownPayload = errors.New("no payload type for event")

// Envelope is a decision event as the analytics worker sees it: routing
// attributes from the Pub/Sub message plus the event's data block.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// Decode unmarshals Payload into the typed struct for EventType.
func (e Envelope) Decode() (any, error) {
	target, ok := payloads.New(e.EventType)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownPayload, e.EventType)
	}
	trimmed := bytes.TrimSpace(e.Payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("empty payload for %s", e.EventType)
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return target, nil
}
