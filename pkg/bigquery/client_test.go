package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
)

func TestTableSetTrimsAndDedupes(t *testing.T) {
	c := &Client{tables: tableSet(config.BigQueryConfig{
		DecisionsTable:   " engine_decisions ",
		ShiftEventsTable: "engine_decisions",
	})}
	assert.Equal(t, []string{"engine_decisions"}, c.Tables())

	assert.Empty(t, tableSet(config.BigQueryConfig{DecisionsTable: "  "}))
}

func TestDescribe(t *testing.T) {
	assert.NoError(t, describe("table", "shift_events", nil))
	assert.EqualError(t,
		describe("table", "shift_events", &googleapi.Error{Code: http.StatusNotFound}),
		`table "shift_events" does not exist`)

	err := describe("dataset", "carestaff", errors.New("permission denied"))
	assert.ErrorContains(t, err, `checking dataset "carestaff"`)
	assert.ErrorContains(t, err, "permission denied")
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())

	empty := &Client{}
	assert.ErrorIs(t, empty.InsertRows(context.Background(), "shift_events", []any{1}), errNotInitialized)
	_, err := empty.Query(context.Background(), "SELECT 1", nil)
	assert.ErrorIs(t, err, errNotInitialized)
}
