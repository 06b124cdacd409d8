package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
)

const (
	defaultMaxAttempts    = 5
	defaultInitialBackoff = 30 * time.Second
	defaultMaxBackoff     = 30 * time.Minute
	sendLease             = 2 * time.Minute
)

var errNoProvider = errors.New("no provider configured for channel")

// RetryPolicy bounds delivery attempts.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	return p
}

// Backoff returns the wait after the given failed attempt: the initial delay doubled per attempt, capped.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	b := retry.WithCappedDuration(p.MaxBackoff, retry.NewExponential(p.InitialBackoff))
	var delay time.Duration
	for i := 0; i < max(attempt, 1); i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		delay = next
	}
	return delay
}

// DispatcherParams wires the delivery dispatcher.
type DispatcherParams struct {
	Repo      Repository
	Providers map[enums.NotificationChannel]Provider
	Policy    RetryPolicy
	Metrics   *metrics.EngineMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Dispatcher sends persisted deliveries and records each attempt.
type Dispatcher struct {
	repo      Repository
	providers map[enums.NotificationChannel]Provider
	policy    RetryPolicy
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewDispatcher validates params and returns a Dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	providers := params.Providers
	if providers == nil {
		providers = map[enums.NotificationChannel]Provider{}
	}
	return &Dispatcher{
		repo:      params.Repo,
		providers: providers,
		policy:    params.Policy.normalized(),
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// Deliver claims and sends one delivery. It returns the resulting status; a delivery claimed
// elsewhere is reported as pending and left alone.
func (d *Dispatcher) Deliver(ctx context.Context, delivery models.NotificationDelivery) (enums.DeliveryStatus, error) {
	now := d.now().UTC()
	claimed, err := d.repo.Claim(ctx, delivery.ID, now, now.Add(sendLease))
	if err != nil {
		return "", fmt.Errorf("claim delivery: %w", err)
	}
	if !claimed {
		return enums.DeliveryStatusPending, nil
	}

	attempts := delivery.Attempts + 1
	sendErr := d.send(ctx, delivery)
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"delivery_id": delivery.ID.String(),
		"event_id":    delivery.EventID.String(),
		"channel":     delivery.Channel,
		"template":    delivery.Template,
		"attempts":    attempts,
	})

	if sendErr == nil {
		if err := d.repo.MarkSent(ctx, delivery.ID, attempts, d.now().UTC()); err != nil {
			return "", fmt.Errorf("mark delivery sent: %w", err)
		}
		d.metrics.IncDelivery(string(delivery.Channel), string(enums.DeliveryStatusSent))
		d.logg.Info(logCtx, "notification delivered")
		return enums.DeliveryStatusSent, nil
	}

	status := enums.DeliveryStatusFailed
	var next *time.Time
	if IsPermanent(sendErr) || attempts >= d.policy.MaxAttempts {
		status = enums.DeliveryStatusDead
	} else {
		at := now.Add(d.policy.Backoff(attempts))
		next = &at
	}
	if err := d.repo.MarkFailed(ctx, delivery.ID, status, attempts, sendErr.Error(), next); err != nil {
		return "", fmt.Errorf("mark delivery failed: %w", err)
	}
	d.metrics.IncDelivery(string(delivery.Channel), string(status))
	d.logg.Error(logCtx, "notification delivery failed", sendErr)
	return status, nil
}

func (d *Dispatcher) send(ctx context.Context, delivery models.NotificationDelivery) error {
	provider, ok := d.providers[delivery.Channel]
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", errNoProvider, delivery.Channel))
	}
	return provider.Send(ctx, Message{
		Channel: delivery.Channel,
		To:      delivery.Recipient,
		Subject: delivery.Subject,
		Body:    delivery.Body,
	})
}
