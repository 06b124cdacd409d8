package workflows

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/pagination"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// Service lists the review queue for agency operators.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, scope visibility.Scope, id uuid.UUID) (*models.AdminWorkflow, error)
}

type service struct {
	repo Repository
}

// ListParams configures filtering and pagination for workflows.
type ListParams struct {
	Scope  visibility.Scope
	Status string
	Type   string
	Limit  int
	Cursor string
}

// ListResult wraps returned workflows and the cursor for the next page.
type ListResult struct {
	Items  []models.AdminWorkflow `json:"items"`
	Cursor string                 `json:"cursor"`
}

// NewService wires workflow dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "workflows repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	agencyID, err := visibility.AgencyFilter(params.Scope)
	if err != nil {
		return nil, err
	}

	query := listWorkflowsParams{
		AgencyID: agencyID,
		Limit:    params.Limit,
	}
	if status := strings.TrimSpace(params.Status); status != "" {
		parsed, err := enums.ParseWorkflowStatus(status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &parsed
	}
	if kind := strings.TrimSpace(params.Type); kind != "" {
		parsed := enums.WorkflowType(kind)
		if !parsed.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid type filter %q", kind)
		}
		query.Type = &parsed
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseToken(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admin workflows")
	}

	cursor := ""
	if next != nil {
		cursor = next.Token()
	}
	if rows == nil {
		rows = []models.AdminWorkflow{}
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) Get(ctx context.Context, scope visibility.Scope, id uuid.UUID) (*models.AdminWorkflow, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "workflow id required")
	}
	workflow, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "workflow not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin workflow")
	}
	if err := visibility.EnsureAgencyVisible(scope, workflow.AgencyID); err != nil {
		return nil, err
	}
	return workflow, nil
}
