package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type note struct {
	ID     uuid.UUID `gorm:"column:id;primaryKey"`
	Body   string    `gorm:"column:body"`
	Status string    `gorm:"column:status"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&note{}))
	return conn
}

func TestBaseDBBindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, db, base.DB(nil))
}

func TestBaseWithTx(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	assert.Equal(t, base, base.WithTx(nil))

	id := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		bound := base.WithTx(tx)
		require.NoError(t, bound.DB(context.Background()).Create(&note{ID: id, Body: "inside"}).Error)
		found, err := FindByID[note](context.Background(), bound, id)
		require.NoError(t, err)
		assert.Equal(t, "inside", found.Body)
		return errors.New("rollback")
	})
	require.Error(t, err)

	_, err = FindByID[note](context.Background(), base, id)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindForUpdateOnSQLite(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	id := uuid.New()
	require.NoError(t, db.Create(&note{ID: id, Body: "locked"}).Error)

	found, err := FindForUpdate[note](context.Background(), base, id)
	require.NoError(t, err)
	assert.Equal(t, "locked", found.Body)

	_, err = FindForUpdate[note](context.Background(), base, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTransitionOnlyMovesGuardedRows(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, db.Create(&note{ID: id, Status: "open"}).Error)

	moved, err := Transition[note](ctx, base, map[string]any{"status": "closed"}, "id = ? AND status = ?", id, "open")
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	moved, err = Transition[note](ctx, base, map[string]any{"status": "closed"}, "id = ? AND status = ?", id, "open")
	require.NoError(t, err)
	assert.Zero(t, moved, "second writer loses the race")

	found, err := FindByID[note](ctx, base, id)
	require.NoError(t, err)
	assert.Equal(t, "closed", found.Status)
}
