package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

const defaultRetentionDays = 30

type RetentionJobParams struct {
	Logger        *logger.Logger
	Outbox        outboxPurger
	Notifications deliveryPurger
	// DeadLetters is optional; dead letters are kept for three retention windows.
	DeadLetters   deadLetterPurger
	Retention     int
}

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deliveryPurger interface {
	PurgeSent(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewRetentionJob deletes published outbox rows and sent deliveries past the retention window.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRetentionDays
	}
	return &retentionJob{
		logg:          params.Logger,
		outbox:        params.Outbox,
		notifications: params.Notifications,
		deadLetters:   params.DeadLetters,
		retention:     retention,
		now:           time.Now,
	}, nil
}

type retentionJob struct {
	logg          *logger.Logger
	outbox        outboxPurger
	notifications deliveryPurger
	deadLetters   deadLetterPurger
	retention     int
	now           func() time.Time
}

func (j *retentionJob) Name() string { return "retention" }

// Run purges every table; a failure on one does not skip the others.
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var errs error
	outboxDeleted, err := j.outbox.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("outbox retention: %w", err))
	}
	deliveriesDeleted, err := j.notifications.PurgeSent(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("delivery retention: %w", err))
	}

	fields := map[string]any{
		"cutoff":             cutoff,
		"retention_days":     j.retention,
		"outbox_deleted":     outboxDeleted,
		"deliveries_deleted": deliveriesDeleted,
	}
	if j.deadLetters != nil {
		dlqDeleted, err := j.deadLetters.DeleteFailedBefore(ctx, cutoff.Add(-2*time.Duration(j.retention)*24*time.Hour))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dead letter retention: %w", err))
		}
		fields["dead_letters_deleted"] = dlqDeleted
	}

	logCtx := j.logg.WithFields(ctx, fields)
	j.logg.Info(logCtx, "retention cleanup complete")
	return errs
}
