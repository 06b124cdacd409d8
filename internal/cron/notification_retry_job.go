package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

type deliveryRetrier interface {
	RetryDue(ctx context.Context) (*notifications.DispatchReport, error)
}

// NewNotificationRetryJob re-attempts failed deliveries whose backoff elapsed.
func NewNotificationRetryJob(retrier deliveryRetrier, logg *logger.Logger) (Job, error) {
	if retrier == nil {
		return nil, fmt.Errorf("delivery retrier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &notificationRetryJob{retrier: retrier, logg: logg}, nil
}

type notificationRetryJob struct {
	retrier deliveryRetrier
	logg    *logger.Logger
}

func (j *notificationRetryJob) Name() string { return "notification-retry" }

func (j *notificationRetryJob) Run(ctx context.Context) error {
	report, err := j.retrier.RetryDue(ctx)
	if err != nil {
		return fmt.Errorf("notification retry: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"deliveries": report.Deliveries,
		"sent":       report.Sent,
		"failed":     report.Failed,
		"dead":       report.Dead,
	})
	j.logg.Info(logCtx, "notification retry complete")
	return nil
}
