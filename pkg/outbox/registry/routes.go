// Package registry routes outbox rows to Pub/Sub topics and decodes their payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

// ErrNonRetryable marks rows that will never publish as stored. The publisher
// dead-letters them instead of counting an attempt.
var ErrNonRetryable = errors.New("non-retryable outbox event")

// Permanent tags err as non-retryable.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrNonRetryable, err)
}

// Route says which aggregate owns an event type and where it is published.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is a validated outbox row with its decoded payload.
type ResolvedEvent struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// NewEventRegistry sends notification requests to the notification topic and every
// decision event to the decision topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	case cfg.DecisionTopic == "":
		return nil, errors.New("decision topic is required")
	}

	reg := &EventRegistry{routes: map[enums.OutboxEventType]Route{}}
	reg.add(enums.EventNotificationRequested, enums.AggregateNotification, cfg.NotificationTopic)
	reg.add(enums.EventTimesheetValidated, enums.AggregateTimesheet, cfg.DecisionTopic)
	reg.add(enums.EventShiftNoShow, enums.AggregateShift, cfg.DecisionTopic)
	reg.add(enums.EventShiftEscalated, enums.AggregateShift, cfg.DecisionTopic)
	return reg, nil
}

func (r *EventRegistry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) {
	r.routes[eventType] = Route{EventType: eventType, AggregateType: aggregate, Topic: topic}
}

// Topics lists the distinct topics the registry can route to.
func (r *EventRegistry) Topics() []string {
	seen := map[string]struct{}{}
	for _, route := range r.routes {
		seen[route.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(seen))
	for topic := range seen {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

// Resolve checks the row against its route and decodes the envelope payload.
// Every failure is permanent: retrying the same bytes cannot succeed.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	route, ok := r.routes[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no route for event type %q", event.EventType))
	}
	if route.AggregateType != event.AggregateType {
		return nil, Permanent(fmt.Errorf("%s belongs to %s aggregates, row has %s", event.EventType, route.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("aggregate_id is empty"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, Permanent(fmt.Errorf("envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, Permanent(fmt.Errorf("%s envelope has no data", event.EventType))
	}

	payload, _ := payloads.New(event.EventType)
	if payload == nil {
		return nil, Permanent(fmt.Errorf("no payload type for %s", event.EventType))
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, Permanent(fmt.Errorf("%s payload: %w", event.EventType, err))
	}
	return &ResolvedEvent{Route: route, Envelope: envelope, Payload: payload}, nil
}
