package cron

import (
	"fmt"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

// JobDeps are the services the scheduled jobs drive.
type JobDeps struct {
	Shifts interface {
		noShowScanner
		escalationScanner
		reminderSender
	}
	Timesheets    batchApprover
	Notifications interface {
		deliveryRetrier
		deliveryPurger
	}
	Outbox      outboxPurger
	DeadLetters deadLetterPurger
}

// DefaultRegistry registers every job on its configured schedule. An empty schedule disables the job.
func DefaultRegistry(cfg config.SchedulerConfig, deps JobDeps, logg *logger.Logger) (*Registry, error) {
	noShow, err := NewNoShowScanJob(deps.Shifts, logg)
	if err != nil {
		return nil, fmt.Errorf("no-show job: %w", err)
	}
	escalation, err := NewEscalationScanJob(deps.Shifts, logg)
	if err != nil {
		return nil, fmt.Errorf("escalation job: %w", err)
	}
	reminders, err := NewShiftRemindersJob(deps.Shifts, logg)
	if err != nil {
		return nil, fmt.Errorf("reminders job: %w", err)
	}
	approval, err := NewAutoApprovalJob(deps.Timesheets, logg)
	if err != nil {
		return nil, fmt.Errorf("auto-approval job: %w", err)
	}
	retry, err := NewNotificationRetryJob(deps.Notifications, logg)
	if err != nil {
		return nil, fmt.Errorf("notification retry job: %w", err)
	}
	retention, err := NewRetentionJob(RetentionJobParams{
		Logger:        logg,
		Outbox:        deps.Outbox,
		DeadLetters:   deps.DeadLetters,
		Notifications: deps.Notifications,
		Retention:     cfg.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("retention job: %w", err)
	}

	registry := NewRegistry()
	registry.Register(cfg.NoShowScan, noShow)
	registry.Register(cfg.EscalationScan, escalation)
	registry.Register(cfg.ShiftReminders, reminders)
	registry.Register(cfg.AutoApproval, approval)
	registry.Register(cfg.NotificationRetry, retry)
	registry.Register(cfg.Retention, retention)
	return registry, nil
}
