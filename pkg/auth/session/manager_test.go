package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/auth"
)

type memoryStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(id string) string { return "sess:" + id }

func newTestManager(store *memoryStore, now time.Time) *Manager {
	return &Manager{store: store, now: func() time.Time { return now }}
}

func TestRegisterHasAndRevoke(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	store := newMemoryStore()
	manager := newTestManager(store, now)
	ctx := context.Background()

	require.NoError(t, manager.Register(ctx, auth.Issued{ID: "jti-1", ExpiresAt: now.Add(2 * time.Hour)}, "ops@northerncare"))
	assert.Equal(t, 2*time.Hour, store.ttls["sess:jti-1"])
	assert.Equal(t, "ops@northerncare", store.data["sess:jti-1"])

	ok, err := manager.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, "jti-1"))
	ok, err = manager.HasSession(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegisterRejectsExpiredOrAnonymous(t *testing.T) {
	now := time.Now()
	manager := newTestManager(newMemoryStore(), now)

	assert.ErrorContains(t, manager.Register(context.Background(), auth.Issued{ID: "jti-1", ExpiresAt: now}, ""), "already expired")
	assert.ErrorIs(t, manager.Register(context.Background(), auth.Issued{ID: " ", ExpiresAt: now.Add(time.Hour)}, ""), errNoAccessID)
	assert.ErrorIs(t, manager.Revoke(context.Background(), ""), errNoAccessID)
	_, err := manager.HasSession(context.Background(), "")
	assert.ErrorIs(t, err, errNoAccessID)
}

func TestHasSessionSurfacesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.getErr = errors.New("i/o timeout")
	_, err := newTestManager(store, time.Now()).HasSession(context.Background(), "jti-1")
	assert.ErrorContains(t, err, "i/o timeout")
}
