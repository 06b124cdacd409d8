package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/instance"
	pkgredis "github.com/angelmondragon/carestaff-backend/pkg/redis"
)

const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive runs of a named job across cron instances.
type Lock interface {
	Acquire(ctx context.Context, name string) (bool, error)
	Release(ctx context.Context, name string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	LockKey(name string) string
}

// RedisLock holds one SET NX key per job. The key's value names the holder
// so a run that outlived its TTL cannot free a lock another replica now owns.
type RedisLock struct {
	client redisStore
	ttl    time.Duration
	held   sync.Map // job name -> owner token
}

func NewRedisLock(client redisStore, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, ttl: ttl}, nil
}

func ownerToken() string {
	return instance.GetID() + "/" + uuid.NewString()
}

func (l *RedisLock) Acquire(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return false, errors.New("lock name is required")
	}
	token := ownerToken()
	won, err := l.client.SetNX(ctx, l.client.LockKey(name), token, l.ttl)
	switch {
	case err != nil:
		return false, fmt.Errorf("claim %s: %w", name, err)
	case won:
		l.held.Store(name, token)
	}
	return won, nil
}

// Release deletes the key when this process still holds it. Releasing a job
// that was never acquired is a no-op.
func (l *RedisLock) Release(ctx context.Context, name string) error {
	token, ok := l.held.LoadAndDelete(name)
	if !ok {
		return nil
	}
	key := l.client.LockKey(name)
	current, err := l.client.Get(ctx, key)
	if pkgredis.IsMissing(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s holder: %w", name, err)
	}
	if current != token.(string) {
		return nil
	}
	if err := l.client.Del(ctx, key); err != nil {
		return fmt.Errorf("free %s: %w", name, err)
	}
	return nil
}
