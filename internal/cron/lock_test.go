package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryStore) LockKey(name string) string { return "cs:lock:" + name }

func TestRedisLockIsPerJob(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, 0)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "no-show-scan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["cs:lock:no-show-scan"])

	ok, err = lock.Acquire(ctx, "no-show-scan")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = lock.Acquire(ctx, "escalation-scan")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "no-show-scan"))
	assert.NotContains(t, store.values, "cs:lock:no-show-scan")
	assert.Contains(t, store.values, "cs:lock:escalation-scan")
}

func TestRedisLockKeepsForeignOwner(t *testing.T) {
	store := newMemoryStore()
	lock, err := NewRedisLock(store, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "retention")
	require.NoError(t, err)
	require.True(t, ok)

	// the TTL expired and another instance took over
	store.values["cs:lock:retention"] = "someone-else"
	require.NoError(t, lock.Release(ctx, "retention"))
	assert.Equal(t, "someone-else", store.values["cs:lock:retention"])

	require.NoError(t, lock.Release(ctx, "never-acquired"))
}
