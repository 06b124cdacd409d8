package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	paginationpkg "github.com/angelmondragon/carestaff-backend/pkg/pagination"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

type fakeRepository struct {
	listFn func(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *paginationpkg.Cursor, error)
	findFn func(ctx context.Context, id uuid.UUID) (*models.AdminWorkflow, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, workflow *models.AdminWorkflow) error {
	return nil
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.AdminWorkflow, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListOpenForEntity(ctx context.Context, entity enums.RelatedEntity, entityID uuid.UUID) ([]models.AdminWorkflow, error) {
	return nil, nil
}

func (f *fakeRepository) List(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func adminScope(agencyID uuid.UUID) visibility.Scope {
	return visibility.Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &agencyID}
}

func TestService_ListScopesToCallerAgency(t *testing.T) {
	agencyID := uuid.New()
	next := models.AdminWorkflow{ID: uuid.New(), CreatedAt: time.Now().UTC()}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *paginationpkg.Cursor, error) {
			if params.AgencyID == nil || *params.AgencyID != agencyID {
				t.Fatalf("expected agency filter %s", agencyID)
			}
			if params.Status == nil || *params.Status != enums.WorkflowStatusPending {
				t.Fatalf("expected pending status filter, got %v", params.Status)
			}
			return []models.AdminWorkflow{{ID: uuid.New(), AgencyID: agencyID}}, &paginationpkg.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
		},
	}

	result, err := newServiceWithRepo(repo).List(context.Background(), ListParams{
		Scope:  adminScope(agencyID),
		Status: "pending",
		Limit:  1,
	})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 workflow, got %d", len(result.Items))
	}
	decoded, err := paginationpkg.ParseToken(result.Cursor)
	if err != nil {
		t.Fatalf("decode cursor: %v", err)
	}
	if decoded.ID != next.ID {
		t.Fatalf("unexpected cursor id %s", decoded.ID)
	}
}

func TestService_ListSystemCallerIsUnfiltered(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *paginationpkg.Cursor, error) {
			if params.AgencyID != nil {
				t.Fatalf("expected no agency filter for system caller")
			}
			return nil, nil, nil
		},
	}

	result, err := newServiceWithRepo(repo).List(context.Background(), ListParams{
		Scope: visibility.Scope{Role: enums.ActorRoleSystem},
	})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if result.Items == nil || len(result.Items) != 0 {
		t.Fatalf("expected empty slice, got %#v", result.Items)
	}
	if result.Cursor != "" {
		t.Fatalf("expected empty cursor, got %q", result.Cursor)
	}
}

func TestService_ListRejectsBadFilters(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	scope := adminScope(uuid.New())

	cases := []ListParams{
		{Scope: scope, Status: "closed"},
		{Scope: scope, Type: "unknown"},
		{Scope: scope, Cursor: "%%%"},
	}
	for _, params := range cases {
		_, err := svc.List(context.Background(), params)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", params, err)
		}
	}
}

func TestService_GetUnknownWorkflow(t *testing.T) {
	_, err := newServiceWithRepo(&fakeRepository{}).Get(context.Background(), adminScope(uuid.New()), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestService_ListWrapsRepositoryFailure(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *paginationpkg.Cursor, error) {
			return nil, nil, errors.New("db down")
		},
	}
	_, err := newServiceWithRepo(repo).List(context.Background(), ListParams{Scope: adminScope(uuid.New())})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestService_GetHidesOtherAgencies(t *testing.T) {
	workflow := &models.AdminWorkflow{ID: uuid.New(), AgencyID: uuid.New()}
	repo := &fakeRepository{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.AdminWorkflow, error) {
			return workflow, nil
		},
	}
	svc := newServiceWithRepo(repo)

	if _, err := svc.Get(context.Background(), adminScope(uuid.New()), workflow.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign agency, got %v", err)
	}
	got, err := svc.Get(context.Background(), adminScope(workflow.AgencyID), workflow.ID)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if got.ID != workflow.ID {
		t.Fatalf("unexpected workflow %s", got.ID)
	}
}
