package query

import (
	"context"
	"testing"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

type unusedQuerier struct{ calls int }

func (u *unusedQuerier) Query(context.Context, string, []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error) {
	u.calls++
	return nil, nil
}

func TestNewDecisionServiceRequiresTables(t *testing.T) {
	_, err := NewDecisionService(nil, "proj", "ds", "engine_decisions", "shift_events")
	assert.ErrorContains(t, err, "bigquery client required")

	_, err = NewDecisionService(&unusedQuerier{}, "proj", "ds", "engine_decisions", "")
	assert.ErrorContains(t, err, "tables are required")

	svc, err := NewDecisionService(&unusedQuerier{}, "proj", "ds", "engine_decisions", "shift_events")
	require.NoError(t, err)
	impl := svc.(*decisionService)
	assert.Equal(t, "`proj.ds.engine_decisions`", impl.decisionsRef)
	assert.Equal(t, "`proj.ds.shift_events`", impl.shiftEventsRef)
}

func TestQueryValidatesBeforeHittingBigQuery(t *testing.T) {
	client := &unusedQuerier{}
	svc, err := NewDecisionService(client, "proj", "ds", "engine_decisions", "shift_events")
	require.NoError(t, err)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  types.DecisionQueryRequest
		msg  string
	}{
		{"missing agency", types.DecisionQueryRequest{Start: start, End: start.Add(time.Hour)}, "agency id required"},
		{"missing window", types.DecisionQueryRequest{AgencyID: "agency-1"}, "start and end are required"},
		{"inverted window", types.DecisionQueryRequest{AgencyID: "agency-1", Start: start, End: start.Add(-time.Hour)}, "end must be after start"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Query(context.Background(), tc.req)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
	assert.Zero(t, client.calls)
}

func TestApprovalRate(t *testing.T) {
	assert.Equal(t, 0.0, ApprovalRate(0, 0))
	assert.Equal(t, 0.75, ApprovalRate(3, 4))
	assert.Equal(t, 0.6666, ApprovalRate(2, 3))
	assert.Equal(t, 1.0, ApprovalRate(5, 5))
}
