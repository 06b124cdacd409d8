package query

import (
	"context"
	"errors"
	"fmt"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

const (
	dailyDecisionsSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  decision,
  COUNT(*) AS value
FROM %s
WHERE agency_id = @agencyID
  AND occurred_at BETWEEN @start AND @end
GROUP BY day, decision
ORDER BY day ASC, decision ASC
`

	topIssuesSQL = `
SELECT code AS label, COUNT(*) AS value
FROM %s, UNNEST(issue_codes) AS code
WHERE agency_id = @agencyID
  AND occurred_at BETWEEN @start AND @end
GROUP BY code
ORDER BY value DESC, label ASC
LIMIT 10
`

	decisionTotalsSQL = `
SELECT
  COUNT(*) AS total,
  COUNTIF(approved) AS approved,
  AVG(score) AS average_score
FROM %s
WHERE agency_id = @agencyID
  AND occurred_at BETWEEN @start AND @end
`

	shiftEventTotalsSQL = `
SELECT
  COUNTIF(event_type = 'shift.no_show') AS no_shows,
  COUNTIF(event_type = 'shift.escalated') AS escalations
FROM %s
WHERE agency_id = @agencyID
  AND occurred_at BETWEEN @start AND @end
`
)

// DecisionService summarizes timesheet decisions and shift incidents from BigQuery.
type DecisionService interface {
	Query(ctx context.Context, req types.DecisionQueryRequest) (*types.DecisionQueryResponse, error)
}

type querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (*cloudbigquery.RowIterator, error)
}

type decisionService struct {
	client         querier
	decisionsRef   string
	shiftEventsRef string
}

// NewDecisionService builds a service reading the decisions and shift_events tables.
func NewDecisionService(client querier, project, dataset, decisionsTable, shiftEventsTable string) (DecisionService, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if project == "" || dataset == "" || decisionsTable == "" || shiftEventsTable == "" {
		return nil, fmt.Errorf("project, dataset, and tables are required")
	}
	return &decisionService{
		client:         client,
		decisionsRef:   tableRef(project, dataset, decisionsTable),
		shiftEventsRef: tableRef(project, dataset, shiftEventsTable),
	}, nil
}

func tableRef(project, dataset, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
}

func (s *decisionService) Query(ctx context.Context, req types.DecisionQueryRequest) (*types.DecisionQueryResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	params := baseParams(req)

	daily, err := s.queryDaily(ctx, fmt.Sprintf(dailyDecisionsSQL, s.decisionsRef), params)
	if err != nil {
		return nil, err
	}
	topIssues, err := s.queryTopLabels(ctx, fmt.Sprintf(topIssuesSQL, s.decisionsRef), params)
	if err != nil {
		return nil, err
	}

	resp := &types.DecisionQueryResponse{Daily: daily, TopIssues: topIssues}
	if err := s.queryTotals(ctx, fmt.Sprintf(decisionTotalsSQL, s.decisionsRef), params, resp); err != nil {
		return nil, err
	}
	if err := s.queryShiftEvents(ctx, fmt.Sprintf(shiftEventTotalsSQL, s.shiftEventsRef), params, resp); err != nil {
		return nil, err
	}
	resp.ApprovalRate = ApprovalRate(resp.Approved, resp.Total)
	return resp, nil
}

// ValidateRequest checks the agency and time window of a dashboard query.
func ValidateRequest(req types.DecisionQueryRequest) error {
	if req.AgencyID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "agency id required")
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if req.End.Before(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	return nil
}

// ApprovalRate is approved/total rounded to four decimals, zero when empty.
func ApprovalRate(approved, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(approved*10000/total) / 10000
}

func baseParams(req types.DecisionQueryRequest) []cloudbigquery.QueryParameter {
	return []cloudbigquery.QueryParameter{
		{Name: "agencyID", Value: req.AgencyID},
		{Name: "start", Value: req.Start.UTC()},
		{Name: "end", Value: req.End.UTC()},
	}
}

func (s *decisionService) queryDaily(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.DecisionCount, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query daily decisions: %w", err)
	}

	var counts []types.DecisionCount
	for {
		var row struct {
			Day      string `bigquery:"day"`
			Decision string `bigquery:"decision"`
			Value    int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading daily decision row: %w", err)
		}
		counts = append(counts, types.DecisionCount{Date: row.Day, Decision: row.Decision, Count: row.Value})
	}
	return counts, nil
}

func (s *decisionService) queryTopLabels(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return nil, fmt.Errorf("query top issues: %w", err)
	}

	var result []types.LabelValue
	for {
		var row struct {
			Label string `bigquery:"label"`
			Value int64  `bigquery:"value"`
		}
		if err := iter.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("reading top issue row: %w", err)
		}
		result = append(result, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return result, nil
}

func (s *decisionService) queryTotals(ctx context.Context, sql string, params []cloudbigquery.QueryParameter, resp *types.DecisionQueryResponse) error {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("query decision totals: %w", err)
	}
	var row struct {
		Total        int64                     `bigquery:"total"`
		Approved     int64                     `bigquery:"approved"`
		AverageScore cloudbigquery.NullFloat64 `bigquery:"average_score"`
	}
	if err := iter.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return fmt.Errorf("reading decision totals row: %w", err)
	}
	resp.Total = row.Total
	resp.Approved = row.Approved
	if row.AverageScore.Valid {
		resp.AverageScore = row.AverageScore.Float64
	}
	return nil
}

func (s *decisionService) queryShiftEvents(ctx context.Context, sql string, params []cloudbigquery.QueryParameter, resp *types.DecisionQueryResponse) error {
	iter, err := s.client.Query(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("query shift events: %w", err)
	}
	var row struct {
		NoShows     int64 `bigquery:"no_shows"`
		Escalations int64 `bigquery:"escalations"`
	}
	if err := iter.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return nil
		}
		return fmt.Errorf("reading shift events row: %w", err)
	}
	resp.NoShows = row.NoShows
	resp.Escalations = row.Escalations
	return nil
}
