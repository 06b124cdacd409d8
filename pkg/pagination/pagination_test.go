package pagination

import (
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, Limit(0))
	assert.Equal(t, DefaultLimit, Limit(-4))
	assert.Equal(t, 10, Limit(10))
	assert.Equal(t, MaxLimit, Limit(500))
}

func TestTokenRoundTrip(t *testing.T) {
	cursor := Cursor{
		CreatedAt: time.Date(2026, 3, 2, 9, 15, 0, 123456789, time.FixedZone("BST", 3600)),
		ID:        uuid.New(),
	}
	token := cursor.Token()
	assert.NotContains(t, token, "=")

	decoded, err := ParseToken(" " + token + " ")
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, time.UTC, decoded.CreatedAt.Location())
	assert.Equal(t, cursor.ID, decoded.ID)
}

func TestParseTokenErrors(t *testing.T) {
	decoded, err := ParseToken("")
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = ParseToken("%%%")
	assert.ErrorContains(t, err, "decode cursor")

	_, err = ParseToken(base64.RawURLEncoding.EncodeToString([]byte("short")))
	assert.EqualError(t, err, "malformed cursor")
}

type entry struct {
	ID        uuid.UUID `gorm:"primaryKey"`
	CreatedAt time.Time
}

func TestFetchWalksPagesNewestFirst(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&entry{}))

	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var seeded []entry
	for i := range 5 {
		e := entry{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, conn.Create(&e).Error)
		seeded = append(seeded, e)
	}
	key := func(e entry) Cursor { return Cursor{CreatedAt: e.CreatedAt, ID: e.ID} }

	var seen []uuid.UUID
	var after *Cursor
	for pages := 0; ; pages++ {
		require.Less(t, pages, 5)
		rows, next, err := Fetch(conn.Model(&entry{}), after, 2, key)
		require.NoError(t, err)
		for _, r := range rows {
			seen = append(seen, r.ID)
		}
		if next == nil {
			break
		}
		after, err = ParseToken(next.Token())
		require.NoError(t, err)
	}

	want := []uuid.UUID{seeded[4].ID, seeded[3].ID, seeded[2].ID, seeded[1].ID, seeded[0].ID}
	assert.Equal(t, want, seen)
}
