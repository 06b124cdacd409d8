package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// Scheduled scans act for every agency.
var systemScope = visibility.Scope{Role: enums.ActorRoleSystem}

type noShowScanner interface {
	ScanNoShows(ctx context.Context, scope visibility.Scope) (*shifts.NoShowReport, error)
}

type escalationScanner interface {
	ScanEscalations(ctx context.Context, scope visibility.Scope) (*shifts.EscalationReport, error)
}

type reminderSender interface {
	SendReminders(ctx context.Context, scope visibility.Scope) (*shifts.ReminderReport, error)
}

type batchApprover interface {
	AutoApproveSubmitted(ctx context.Context, scope visibility.Scope) (*timesheets.BatchReport, error)
}

// NewNoShowScanJob reminds and escalates staff who have not clocked in.
func NewNoShowScanJob(scanner noShowScanner, logg *logger.Logger) (Job, error) {
	if scanner == nil {
		return nil, fmt.Errorf("no-show scanner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &noShowScanJob{scanner: scanner, logg: logg}, nil
}

type noShowScanJob struct {
	scanner noShowScanner
	logg    *logger.Logger
}

func (j *noShowScanJob) Name() string { return "no-show-scan" }

func (j *noShowScanJob) Run(ctx context.Context) error {
	report, err := j.scanner.ScanNoShows(ctx, systemScope)
	if err != nil {
		return fmt.Errorf("no-show scan: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":  report.Checked,
		"no_shows": len(report.NoShows),
		"reminded": len(report.Reminded),
		"errors":   len(report.Errors),
	})
	logShiftErrors(logCtx, j.logg, report.Errors)
	j.logg.Info(logCtx, "no-show scan complete")
	return nil
}

// NewEscalationScanJob broadcasts and escalates urgent open shifts.
func NewEscalationScanJob(scanner escalationScanner, logg *logger.Logger) (Job, error) {
	if scanner == nil {
		return nil, fmt.Errorf("escalation scanner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &escalationScanJob{scanner: scanner, logg: logg}, nil
}

type escalationScanJob struct {
	scanner escalationScanner
	logg    *logger.Logger
}

func (j *escalationScanJob) Name() string { return "escalation-scan" }

func (j *escalationScanJob) Run(ctx context.Context) error {
	report, err := j.scanner.ScanEscalations(ctx, systemScope)
	if err != nil {
		return fmt.Errorf("escalation scan: %w", err)
	}
	results := report.Results
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"shifts_checked":        results.ShiftsChecked,
		"escalations_triggered": results.EscalationsTriggered,
		"broadcasts_sent":       results.BroadcastsSent,
		"workflows_created":     results.WorkflowsCreated,
		"errors":                len(results.Errors),
	})
	logShiftErrors(logCtx, j.logg, results.Errors)
	j.logg.Info(logCtx, "escalation scan complete")
	return nil
}

// NewShiftRemindersJob queues the 24h and 2h pre-shift reminders.
func NewShiftRemindersJob(sender reminderSender, logg *logger.Logger) (Job, error) {
	if sender == nil {
		return nil, fmt.Errorf("reminder sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &shiftRemindersJob{sender: sender, logg: logg}, nil
}

type shiftRemindersJob struct {
	sender reminderSender
	logg   *logger.Logger
}

func (j *shiftRemindersJob) Name() string { return "shift-reminders" }

func (j *shiftRemindersJob) Run(ctx context.Context) error {
	report, err := j.sender.SendReminders(ctx, systemScope)
	if err != nil {
		return fmt.Errorf("shift reminders: %w", err)
	}
	results := report.Results
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":              results.Checked,
		"reminders_24h_sent":   results.Reminders24hSent,
		"reminders_2h_sent":    results.Reminders2hSent,
		"skipped_already_sent": results.SkippedAlreadySent,
		"errors":               len(results.Errors),
	})
	logShiftErrors(logCtx, j.logg, results.Errors)
	j.logg.Info(logCtx, "shift reminders complete")
	return nil
}

// NewAutoApprovalJob validates every submitted timesheet.
func NewAutoApprovalJob(approver batchApprover, logg *logger.Logger) (Job, error) {
	if approver == nil {
		return nil, fmt.Errorf("batch approver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &autoApprovalJob{approver: approver, logg: logg}, nil
}

type autoApprovalJob struct {
	approver batchApprover
	logg     *logger.Logger
}

func (j *autoApprovalJob) Name() string { return "auto-approval" }

func (j *autoApprovalJob) Run(ctx context.Context) error {
	report, err := j.approver.AutoApproveSubmitted(ctx, systemScope)
	if err != nil {
		return fmt.Errorf("auto approval: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":       report.Checked,
		"auto_approved": len(report.AutoApproved),
		"flagged":       len(report.Flagged),
		"errors":        len(report.Errors),
		"approval_rate": report.ApprovalRate,
	})
	if len(report.Errors) > 0 {
		j.logg.Warn(logCtx, "some timesheets failed validation")
	}
	j.logg.Info(logCtx, "auto approval complete")
	return nil
}

func logShiftErrors(ctx context.Context, logg *logger.Logger, errs []shifts.ShiftError) {
	for _, shiftErr := range errs {
		errCtx := logg.WithFields(ctx, map[string]any{
			"shift_id": shiftErr.ShiftID.String(),
			"error":    shiftErr.Error,
		})
		logg.Warn(errCtx, "shift scan error")
	}
}
