package engines

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Logger: logger.New(logger.Options{ServiceName: "engines-test", Output: io.Discard})})
	assert.ErrorContains(t, err, "db client required")

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	_, err = New(Params{DB: db.Wrap(conn)})
	assert.ErrorContains(t, err, "logger required")
}

func TestNewBuildsEveryService(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)

	built, err := New(Params{
		DB:     db.Wrap(conn),
		Logger: logger.New(logger.Options{ServiceName: "engines-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	assert.NotNil(t, built.Outbox)
	assert.NotNil(t, built.OutboxRepo)
	assert.NotNil(t, built.Timesheets)
	assert.NotNil(t, built.Shifts)
	assert.NotNil(t, built.Matcher)
	assert.NotNil(t, built.Geofence)
	assert.NotNil(t, built.Workflows)
}
