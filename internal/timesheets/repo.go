package timesheets

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/repo"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

var (
	finalizedTimesheetStatuses = []enums.TimesheetStatus{enums.TimesheetStatusApproved, enums.TimesheetStatusPaid}
	reviewableTimesheetStatus  = []enums.TimesheetStatus{enums.TimesheetStatusSubmitted, enums.TimesheetStatusPendingConfirmation}
	terminalShiftStatuses      = []enums.ShiftStatus{enums.ShiftStatusCompleted, enums.ShiftStatusCancelled, enums.ShiftStatusNoShow}
	openWorkflowStatuses       = []enums.WorkflowStatus{enums.WorkflowStatusPending, enums.WorkflowStatusInProgress}
)

// Repository exposes timesheet persistence operations.
type Repository struct {
	repo.Base
}

// NewRepository constructs a timesheet repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{Base: r.Base.WithTx(tx)}
}

func (r *Repository) FindTimesheet(ctx context.Context, id uuid.UUID) (*models.Timesheet, error) {
	return repo.FindByID[models.Timesheet](ctx, r.Base, id)
}

func (r *Repository) FindShift(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return repo.FindByID[models.Shift](ctx, r.Base, id)
}

// FindShiftForUpdate re-reads the shift under a row lock so journal appends do not interleave.
func (r *Repository) FindShiftForUpdate(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return repo.FindForUpdate[models.Shift](ctx, r.Base, id)
}

func (r *Repository) FindAgency(ctx context.Context, id uuid.UUID) (*models.Agency, error) {
	return repo.FindByID[models.Agency](ctx, r.Base, id)
}

func (r *Repository) FindStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	return repo.FindByID[models.Staff](ctx, r.Base, id)
}

func (r *Repository) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return repo.FindByID[models.Client](ctx, r.Base, id)
}

// ListOpenReviews returns pending or in-progress workflows pointing at the timesheet.
func (r *Repository) ListOpenReviews(ctx context.Context, timesheetID uuid.UUID) ([]models.AdminWorkflow, error) {
	var rows []models.AdminWorkflow
	err := r.DB(ctx).
		Where("related_entity_type = ? AND related_entity_id = ?", enums.RelatedEntityTimesheet, timesheetID).
		Where("status IN ?", openWorkflowStatuses).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// ListAgencyAdmins returns the active operators alerted on escalations.
func (r *Repository) ListAgencyAdmins(ctx context.Context, agencyID uuid.UUID) ([]models.User, error) {
	var rows []models.User
	err := r.DB(ctx).
		Where("agency_id = ? AND user_type = ? AND is_active = ?", agencyID, models.UserTypeAgencyAdmin, true).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// RecordValidation writes the validation columns unless the timesheet is already approved or paid.
// It returns the number of rows touched so callers can detect a lost race.
func (r *Repository) RecordValidation(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	return repo.Transition[models.Timesheet](ctx, r.Base, updates,
		"id = ? AND status NOT IN ?", id, finalizedTimesheetStatuses)
}

// MoveToPendingReview only advances submitted or pending_confirmation rows.
func (r *Repository) MoveToPendingReview(ctx context.Context, id uuid.UUID) (int64, error) {
	return repo.Transition[models.Timesheet](ctx, r.Base, map[string]any{"status": enums.TimesheetStatusPendingReview},
		"id = ? AND status IN ?", id, reviewableTimesheetStatus)
}

// UpdateShiftUnlessTerminal applies updates to a shift that has not reached a terminal status.
func (r *Repository) UpdateShiftUnlessTerminal(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	return repo.Transition[models.Shift](ctx, r.Base, updates,
		"id = ? AND status NOT IN ?", id, terminalShiftStatuses)
}

// ListAgencies returns every agency, or just the one named.
func (r *Repository) ListAgencies(ctx context.Context, agencyID *uuid.UUID) ([]models.Agency, error) {
	var rows []models.Agency
	query := r.DB(ctx).Order("created_at ASC").Order("id ASC")
	if agencyID != nil {
		query = query.Where("id = ?", *agencyID)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// ListSubmittedIDs returns submitted timesheets of the given agencies, oldest first.
func (r *Repository) ListSubmittedIDs(ctx context.Context, agencyIDs []uuid.UUID, limit int) ([]uuid.UUID, error) {
	if len(agencyIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	query := r.DB(ctx).
		Model(&models.Timesheet{}).
		Where("status = ? AND agency_id IN ?", enums.TimesheetStatusSubmitted, agencyIDs).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Pluck("id", &ids).Error
	return ids, err
}
