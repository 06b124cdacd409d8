package idempotency_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/outbox/idempotency"
)

type setStore map[string]bool

func (s setStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s[key] {
		return false, nil
	}
	s[key] = true
	return true, nil
}

func (s setStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s, key)
	}
	return nil
}

func (s setStore) IdempotencyKey(scope, id string) string { return scope + ":" + id }

func ExampleGuard_Once() {
	guard, _ := idempotency.NewGuard(setStore{}, 24*time.Hour)
	eventID := uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479")

	for delivery := 1; delivery <= 2; delivery++ {
		ran, _ := guard.Once(context.Background(), "notification-dispatch", eventID, func(context.Context) error {
			return nil
		})
		fmt.Printf("delivery %d handled: %t\n", delivery, ran)
	}
	// Output:
	// delivery 1 handled: true
	// delivery 2 handled: false
}
