package analytics

import (
	"context"
	"errors"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/query"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/pkg/bigquery"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

// Service answers the decision dashboard.
type Service interface {
	Query(ctx context.Context, req types.DecisionQueryRequest) (*types.DecisionQueryResponse, error)
}

type service struct {
	decisions query.DecisionService
}

func NewService(client *bigquery.Client, project string, cfg config.BigQueryConfig) (Service, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	decisions, err := query.NewDecisionService(client, project, cfg.Dataset, cfg.DecisionsTable, cfg.ShiftEventsTable)
	if err != nil {
		return nil, err
	}
	return &service{decisions: decisions}, nil
}

// Query forwards to BigQuery. Typed errors pass through; anything else is a
// warehouse failure and surfaces as a dependency error.
func (s *service) Query(ctx context.Context, req types.DecisionQueryRequest) (*types.DecisionQueryResponse, error) {
	resp, err := s.decisions.Query(ctx, req)
	switch {
	case err == nil:
		return resp, nil
	case pkgerrors.As(err) != nil, errors.Is(err, context.Canceled):
		return nil, err
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "analytics query failed")
	}
}
