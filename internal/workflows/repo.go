package workflows

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/repo"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/pagination"
)

// Repository exposes persistence helpers for admin workflows.
// Rows are append-only from the engines; admins own status changes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, workflow *models.AdminWorkflow) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.AdminWorkflow, error)
	ListOpenForEntity(ctx context.Context, entity enums.RelatedEntity, entityID uuid.UUID) ([]models.AdminWorkflow, error)
	List(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *pagination.Cursor, error)
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a workflow repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

type listWorkflowsParams struct {
	AgencyID *uuid.UUID
	Status   *enums.WorkflowStatus
	Type     *enums.WorkflowType
	Limit    int
	Cursor   *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{Base: r.Base.WithTx(tx)}
}

func (r *repositoryImpl) Create(ctx context.Context, workflow *models.AdminWorkflow) error {
	if workflow.ID == uuid.Nil {
		workflow.ID = uuid.New()
	}
	return r.DB(ctx).Create(workflow).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.AdminWorkflow, error) {
	return repo.FindByID[models.AdminWorkflow](ctx, r.Base, id)
}

func (r *repositoryImpl) ListOpenForEntity(ctx context.Context, entity enums.RelatedEntity, entityID uuid.UUID) ([]models.AdminWorkflow, error) {
	var rows []models.AdminWorkflow
	err := r.DB(ctx).
		Where("related_entity_type = ? AND related_entity_id = ?", entity, entityID).
		Where("status IN ?", []enums.WorkflowStatus{enums.WorkflowStatusPending, enums.WorkflowStatusInProgress}).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repositoryImpl) List(ctx context.Context, params listWorkflowsParams) ([]models.AdminWorkflow, *pagination.Cursor, error) {
	query := r.DB(ctx).Model(&models.AdminWorkflow{})
	if params.AgencyID != nil {
		query = query.Where("agency_id = ?", *params.AgencyID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}

	return pagination.Fetch(query, params.Cursor, params.Limit, func(w models.AdminWorkflow) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
}
