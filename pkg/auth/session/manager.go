// Package session keeps a Redis allow-list of issued token ids. A token that is
// valid but missing from the list is treated as revoked.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/carestaff-backend/pkg/auth"
	pkgredis "github.com/angelmondragon/carestaff-backend/pkg/redis"
)

// Store is the slice of the Redis client the manager uses.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is the read side used by the auth middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

var errNoAccessID = errors.New("access id is required")

type Manager struct {
	store Store
	now   func() time.Time
}

func NewManager(store Store) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	return &Manager{store: store, now: time.Now}, nil
}

// Register allow-lists an issued token until it expires. subject is stored as
// the value so operators can see who a jti belongs to.
func (m *Manager) Register(ctx context.Context, issued auth.Issued, subject string) error {
	id := strings.TrimSpace(issued.ID)
	if id == "" {
		return errNoAccessID
	}
	ttl := issued.ExpiresAt.Sub(m.now())
	if ttl <= 0 {
		return fmt.Errorf("token %s already expired", id)
	}
	if subject == "" {
		subject = "-"
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(id), subject, ttl)
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	id := strings.TrimSpace(accessID)
	if id == "" {
		return errNoAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(id))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	id := strings.TrimSpace(accessID)
	if id == "" {
		return false, errNoAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(id))
	switch {
	case err == nil:
		return true, nil
	case pkgredis.IsMissing(err):
		return false, nil
	default:
		return false, fmt.Errorf("lookup session %s: %w", id, err)
	}
}
