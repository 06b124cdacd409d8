// Package idempotency lets Pub/Sub consumers process each outbox event at most once
// per consumer, even though Pub/Sub delivers at least once.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// ErrClaim marks failures to reach the claim store. Callers nack so the event returns.
var ErrClaim = errors.New("idempotency claim failed")

// Store is the slice of the Redis client a Guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard claims event ids in Redis. A claim lives for ttl, which should exceed the
// subscription's retention so late redeliveries are still recognised.
type Guard struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewGuard(store Store, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("claim store required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}
	return &Guard{store: store, ttl: ttl, now: time.Now}, nil
}

// Once runs fn the first time consumer sees eventID and reports whether it ran.
// Duplicates return false without calling fn. When fn fails the claim is released
// so the redelivered event is processed again.
func (g *Guard) Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	if consumer == "" || eventID == uuid.Nil {
		return false, fmt.Errorf("%w: consumer and event id required", ErrClaim)
	}
	key := g.store.IdempotencyKey("evt:"+consumer, eventID.String())

	claimed, err := g.store.SetNX(ctx, key, g.now().UTC().Format(time.RFC3339), g.ttl)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrClaim, err)
	}
	if !claimed {
		return false, nil
	}

	if err := fn(ctx); err != nil {
		if delErr := g.store.Del(ctx, key); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("release %s: %w", key, delErr))
		}
		return true, err
	}
	return true, nil
}
