package geofence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/repo"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// Repository reads client sites and records geofence checks on timesheets.
type Repository interface {
	FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	FindTimesheet(ctx context.Context, id uuid.UUID) (*models.Timesheet, error)
	RecordResult(ctx context.Context, timesheetID uuid.UUID, updates map[string]any) error
}

type repositoryImpl struct {
	repo.Base
}

// NewRepository returns a geofence repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{Base: repo.NewBase(db)}
}

func (r *repositoryImpl) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return repo.FindByID[models.Client](ctx, r.Base, id)
}

func (r *repositoryImpl) FindTimesheet(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	return repo.FindByID[models.Timesheet](ctx, r.Base, id)
}

// RecordResult leaves approved and paid timesheets untouched.
func (r *repositoryImpl) RecordResult(ctx context.Context, timesheetID uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).
		Model(&models.Timesheet{}).
		Where("id = ? AND status NOT IN ?", timesheetID, []enums.TimesheetStatus{enums.TimesheetStatusApproved, enums.TimesheetStatusPaid}).
		Updates(updates).Error
}
