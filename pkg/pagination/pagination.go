// Package pagination implements keyset paging over (created_at, id), newest
// first. Cursors travel as opaque URL-safe tokens.
package pagination

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

const tokenLen = 8 + 16

// Cursor is the position of the last row on a page. The next page holds rows
// strictly older than it.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Token packs the cursor as base64url(unix nanos | uuid bytes).
func (c Cursor) Token() string {
	buf := make([]byte, tokenLen)
	binary.BigEndian.PutUint64(buf, uint64(c.CreatedAt.UnixNano()))
	copy(buf[8:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// ParseToken reverses Token. A blank token means the first page and yields nil.
func ParseToken(token string) (*Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if len(raw) != tokenLen {
		return nil, errors.New("malformed cursor")
	}
	id, err := uuid.FromBytes(raw[8:])
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}
	nanos := int64(binary.BigEndian.Uint64(raw[:8]))
	return &Cursor{CreatedAt: time.Unix(0, nanos).UTC(), ID: id}, nil
}

// Limit clamps a requested page size into [1, MaxLimit], defaulting blanks.
func Limit(requested int) int {
	switch {
	case requested <= 0:
		return DefaultLimit
	case requested > MaxLimit:
		return MaxLimit
	}
	return requested
}

// Fetch loads the page of T after the cursor. It reads one row past the page
// to learn whether there is a next one, and returns its cursor if so.
func Fetch[T any](query *gorm.DB, after *Cursor, limit int, key func(T) Cursor) ([]T, *Cursor, error) {
	size := Limit(limit)
	if after != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []T
	if err := query.Order("created_at DESC").Order("id DESC").Limit(size + 1).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	if len(rows) <= size {
		return rows, nil, nil
	}
	rows = rows[:size]
	next := key(rows[size-1])
	return rows, &next, nil
}
