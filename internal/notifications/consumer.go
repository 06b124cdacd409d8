package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notification-dispatch"

type requestHandler interface {
	HandleRequest(ctx context.Context, eventID uuid.UUID, req payloads.NotificationRequestedEvent) (*DispatchReport, error)
}

type eventGuard interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer turns notification.requested events from Pub/Sub into deliveries,
// at most once per event id.
type Consumer struct {
	handler      requestHandler
	subscription *pubsub.Subscriber
	guard        eventGuard
	logg         *logger.Logger
}

func NewConsumer(handler requestHandler, subscription *pubsub.Subscriber, guard eventGuard, logg *logger.Logger) (*Consumer, error) {
	switch {
	case handler == nil:
		return nil, errors.New("notification handler required")
	case subscription == nil:
		return nil, errors.New("notification subscription required")
	case guard == nil:
		return nil, errors.New("idempotency guard required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{handler: handler, subscription: subscription, guard: guard, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		if c.process(msgCtx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Other event types,
// messages that cannot be decoded and requests the handler rejects as invalid
// are acked, since redelivery changes nothing. Claim and other handler
// failures nack so Pub/Sub retries.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) bool {
	eventType := attributes["event_type"]
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Debug(ctx, "ignoring event on notification subscription")
		return true
	}
	eventID, req, err := decodeRequest(data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping malformed notification request")
		return true
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":  eventID.String(),
		"agency_id": req.AgencyID.String(),
		"template":  req.Template,
	})
	ran, err := c.guard.Once(ctx, notificationConsumer, eventID, func(ctx context.Context) error {
		_, err := c.handler.HandleRequest(ctx, eventID, req)
		return err
	})
	switch {
	case errors.Is(err, idempotency.ErrClaim):
		c.logg.Error(ctx, "could not claim notification event", err)
		return false
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping unrenderable notification request")
	case err != nil:
		c.logg.Error(ctx, "notification request failed", err)
		return false
	case !ran:
		c.logg.Info(ctx, "notification event already handled")
	}
	return true
}

func decodeRequest(data []byte) (uuid.UUID, payloads.NotificationRequestedEvent, error) {
	var (
		envelope outbox.PayloadEnvelope
		req      payloads.NotificationRequestedEvent
	)
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, req, fmt.Errorf("decode envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return uuid.Nil, req, fmt.Errorf("event id: %w", err)
	}
	if err := json.Unmarshal(envelope.Data, &req); err != nil {
		return uuid.Nil, req, fmt.Errorf("decode payload: %w", err)
	}
	return eventID, req, nil
}
