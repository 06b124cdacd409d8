package matching

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// Repository loads the rows the matcher scores against.
type Repository interface {
	FindShift(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	FindAgency(ctx context.Context, id uuid.UUID) (*models.Agency, error)
	FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error)
	ListCandidates(ctx context.Context, agencyID uuid.UUID, role string) ([]models.Staff, error)
	ListHistory(ctx context.Context, agencyID uuid.UUID) ([]models.Shift, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a matching repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) FindShift(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	var shift models.Shift
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shift).Error; err != nil {
		return nil, err
	}
	return &shift, nil
}

func (r *repositoryImpl) FindAgency(ctx context.Context, id uuid.UUID) (*models.Agency, error) {
	var agency models.Agency
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&agency).Error; err != nil {
		return nil, err
	}
	return &agency, nil
}

func (r *repositoryImpl) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// ListCandidates returns active staff holding the role, in a stable name order.
func (r *repositoryImpl) ListCandidates(ctx context.Context, agencyID uuid.UUID, role string) ([]models.Staff, error) {
	var rows []models.Staff
	err := r.db.WithContext(ctx).
		Where("agency_id = ? AND status = ? AND role = ?", agencyID, enums.StaffStatusActive, role).
		Order("last_name ASC, first_name ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ListHistory returns the agency's closed shifts.
func (r *repositoryImpl) ListHistory(ctx context.Context, agencyID uuid.UUID) ([]models.Shift, error) {
	var rows []models.Shift
	err := r.db.WithContext(ctx).
		Where("agency_id = ? AND assigned_staff_id IS NOT NULL", agencyID).
		Where("status IN ?", []enums.ShiftStatus{enums.ShiftStatusCompleted, enums.ShiftStatusCancelled, enums.ShiftStatusNoShow}).
		Find(&rows).Error
	return rows, err
}
