package shifts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/repo"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

const scanBatchLimit = 500

var (
	staffedStatuses  = []enums.ShiftStatus{enums.ShiftStatusAssigned, enums.ShiftStatusConfirmed}
	escalatedUrgency = []enums.ShiftUrgency{enums.ShiftUrgencyUrgent, enums.ShiftUrgencyCritical}
	openWorkflows    = []enums.WorkflowStatus{enums.WorkflowStatusPending, enums.WorkflowStatusInProgress}
)

// Repository exposes the shift reads and guarded transitions used by the scans.
type Repository struct {
	repo.Base
}

// NewRepository constructs a shift repository tied to the provided GORM DB.
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

// clockedIn matches shifts with a timesheet that recorded a clock-in.
const clockedIn = "EXISTS (SELECT 1 FROM timesheets WHERE timesheets.shift_id = shifts.id AND timesheets.clock_in_time IS NOT NULL)"

// ListStartedStaffed returns assigned or confirmed shifts of the agency that
// started before cutoff and have no clock-in. Attended shifts stay staffed
// until their timesheet closes them, so they are filtered here rather than
// crowding the batch.
func (r *Repository) ListStartedStaffed(ctx context.Context, agencyID uuid.UUID, cutoff time.Time) ([]models.Shift, error) {
	var rows []models.Shift
	err := r.DB(ctx).
		Where("agency_id = ? AND status IN ? AND starts_at < ?", agencyID, staffedStatuses, cutoff).
		Where("NOT " + clockedIn).
		Order("starts_at ASC").
		Order("id ASC").
		Limit(scanBatchLimit).
		Find(&rows).Error
	return rows, err
}

// ListUpcomingStaffed returns assigned or confirmed shifts starting in (from, to].
func (r *Repository) ListUpcomingStaffed(ctx context.Context, agencyID *uuid.UUID, from, to time.Time) ([]models.Shift, error) {
	var rows []models.Shift
	query := r.DB(ctx).
		Where("status IN ? AND starts_at > ? AND starts_at <= ?", staffedStatuses, from, to)
	if agencyID != nil {
		query = query.Where("agency_id = ?", *agencyID)
	}
	err := query.Order("starts_at ASC").Order("id ASC").Limit(scanBatchLimit).Find(&rows).Error
	return rows, err
}

// ListUrgentOpen returns open urgent or critical shifts of one agency.
func (r *Repository) ListUrgentOpen(ctx context.Context, agencyID uuid.UUID) ([]models.Shift, error) {
	var rows []models.Shift
	err := r.DB(ctx).
		Where("agency_id = ? AND status = ? AND urgency IN ?", agencyID, enums.ShiftStatusOpen, escalatedUrgency).
		Order("created_at ASC").
		Order("id ASC").
		Limit(scanBatchLimit).
		Find(&rows).Error
	return rows, err
}

// HasClockIn reports whether any timesheet of the shift recorded a clock-in.
func (r *Repository) HasClockIn(ctx context.Context, shiftID uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Timesheet{}).
		Where("shift_id = ? AND clock_in_time IS NOT NULL", shiftID).
		Count(&count).Error
	return count > 0, err
}

// FindShiftForUpdate re-reads the shift under a row lock so journal appends do not interleave.
func (r *Repository) FindShiftForUpdate(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	return repo.FindForUpdate[models.Shift](ctx, r.Base, id)
}

func (r *Repository) FindStaff(ctx context.Context, id uuid.UUID) (*models.Staff, error) {
	return repo.FindByID[models.Staff](ctx, r.Base, id)
}

func (r *Repository) FindClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	return repo.FindByID[models.Client](ctx, r.Base, id)
}

func (r *Repository) FindAgency(ctx context.Context, id uuid.UUID) (*models.Agency, error) {
	return repo.FindByID[models.Agency](ctx, r.Base, id)
}

// ListActiveStaffByRole returns the active staff of an agency who hold role.
func (r *Repository) ListActiveStaffByRole(ctx context.Context, agencyID uuid.UUID, role string) ([]models.Staff, error) {
	var rows []models.Staff
	err := r.DB(ctx).
		Where("agency_id = ? AND status = ? AND role = ?", agencyID, enums.StaffStatusActive, role).
		Order("last_name ASC").
		Order("first_name ASC").
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

// HasOpenWorkflow reports whether a pending or in-progress workflow of kind already points at the shift.
func (r *Repository) HasOpenWorkflow(ctx context.Context, shiftID uuid.UUID, kind enums.WorkflowType) (bool, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.AdminWorkflow{}).
		Where("related_entity_type = ? AND related_entity_id = ? AND type = ?", enums.RelatedEntityShift, shiftID, kind).
		Where("status IN ?", openWorkflows).
		Count(&count).Error
	return count > 0, err
}

// MarkNoShowReminder flips reminder_sent once. Only the caller that sees one row affected may send the reminder.
func (r *Repository) MarkNoShowReminder(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	return repo.Transition[models.Shift](ctx, r.Base, map[string]any{"reminder_sent": true, "reminder_sent_at": now},
		"id = ? AND reminder_sent = ? AND status IN ?", id, false, staffedStatuses)
}

// MarkStartReminder flips the 24h or 2h reminder flag once.
func (r *Repository) MarkStartReminder(ctx context.Context, id uuid.UUID, window ReminderWindow, now time.Time) (int64, error) {
	flag, stamp := "reminder_24h_sent", "reminder_24h_sent_at"
	if window == Reminder2h {
		flag, stamp = "reminder_2h_sent", "reminder_2h_sent_at"
	}
	return repo.Transition[models.Shift](ctx, r.Base, map[string]any{flag: true, stamp: now},
		"id = ? AND "+flag+" = ? AND status IN ?", id, false, staffedStatuses)
}

// MarkNoShow moves a still-staffed shift to no_show.
func (r *Repository) MarkNoShow(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	return repo.Transition[models.Shift](ctx, r.Base, updates, "id = ? AND status IN ?", id, staffedStatuses)
}

// MarkBroadcast stamps the first urgent broadcast and its escalation deadline.
func (r *Repository) MarkBroadcast(ctx context.Context, id uuid.UUID, now, deadline time.Time) (int64, error) {
	return repo.Transition[models.Shift](ctx, r.Base, map[string]any{"broadcast_sent_at": now, "escalation_deadline": deadline},
		"id = ? AND status = ? AND broadcast_sent_at IS NULL", id, enums.ShiftStatusOpen)
}

// MarkUnfilledEscalated moves an open shift to unfilled_escalated.
func (r *Repository) MarkUnfilledEscalated(ctx context.Context, id uuid.UUID, updates map[string]any) (int64, error) {
	return repo.Transition[models.Shift](ctx, r.Base, updates, "id = ? AND status = ?", id, enums.ShiftStatusOpen)
}
