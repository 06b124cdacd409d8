package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

var retryableStatuses = []enums.DeliveryStatus{enums.DeliveryStatusPending, enums.DeliveryStatusFailed}

// Repository exposes persistence helpers for notification deliveries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIgnoreDuplicates(ctx context.Context, rows []models.NotificationDelivery) error
	ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.NotificationDelivery, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.NotificationDelivery, error)
	Claim(ctx context.Context, id uuid.UUID, now, leaseUntil time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, attempts int, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus, attempts int, lastError string, next *time.Time) error
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a delivery repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

// CreateIgnoreDuplicates inserts rows, skipping any (event, channel, recipient) already recorded.
func (r *repositoryImpl) CreateIgnoreDuplicates(ctx context.Context, rows []models.NotificationDelivery) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "channel"}, {Name: "recipient"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *repositoryImpl) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]models.NotificationDelivery, error) {
	var rows []models.NotificationDelivery
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListDue returns pending or failed deliveries whose next attempt time has passed.
func (r *repositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]models.NotificationDelivery, error) {
	var rows []models.NotificationDelivery
	query := r.db.WithContext(ctx).
		Where("status IN ?", retryableStatuses).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}

// Claim pushes next_attempt_at forward so a concurrent worker skips the row while it is being sent.
func (r *repositoryImpl) Claim(ctx context.Context, id uuid.UUID, now, leaseUntil time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.NotificationDelivery{}).
		Where("id = ? AND status IN ?", id, retryableStatuses).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Update("next_attempt_at", leaseUntil)
	return res.RowsAffected == 1, res.Error
}

func (r *repositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, attempts int, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          enums.DeliveryStatusSent,
			"attempts":        attempts,
			"sent_at":         now,
			"next_attempt_at": nil,
			"last_error":      nil,
		}).Error
}

func (r *repositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, status enums.DeliveryStatus, attempts int, lastError string, next *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.NotificationDelivery{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":          status,
			"attempts":        attempts,
			"last_error":      lastError,
			"next_attempt_at": next,
		}).Error
}

// DeleteSentBefore removes delivered rows older than cutoff.
func (r *repositoryImpl) DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND sent_at < ?", enums.DeliveryStatusSent, cutoff).
		Delete(&models.NotificationDelivery{})
	return res.RowsAffected, res.Error
}
