package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

type fakeShiftScans struct {
	scopes []visibility.Scope
	err    error
}

func (f *fakeShiftScans) ScanNoShows(_ context.Context, scope visibility.Scope) (*shifts.NoShowReport, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return &shifts.NoShowReport{
		Success: true,
		Checked: 3,
		Errors:  []shifts.ShiftError{{ShiftID: uuid.New(), Error: "client missing"}},
	}, nil
}

func (f *fakeShiftScans) ScanEscalations(_ context.Context, scope visibility.Scope) (*shifts.EscalationReport, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return &shifts.EscalationReport{Success: true}, nil
}

func (f *fakeShiftScans) SendReminders(_ context.Context, scope visibility.Scope) (*shifts.ReminderReport, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return &shifts.ReminderReport{Success: true}, nil
}

func (f *fakeShiftScans) AutoApproveSubmitted(_ context.Context, scope visibility.Scope) (*timesheets.BatchReport, error) {
	f.scopes = append(f.scopes, scope)
	if f.err != nil {
		return nil, f.err
	}
	return &timesheets.BatchReport{Success: true, Checked: 2, ApprovalRate: 50}, nil
}

func (f *fakeShiftScans) RetryDue(context.Context) (*notifications.DispatchReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &notifications.DispatchReport{Deliveries: 1, Sent: 1}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test"})
}

func TestScanJobsRunWithSystemScope(t *testing.T) {
	scans := &fakeShiftScans{}
	logg := testLogger()

	noShow, err := NewNoShowScanJob(scans, logg)
	require.NoError(t, err)
	escalation, err := NewEscalationScanJob(scans, logg)
	require.NoError(t, err)
	reminders, err := NewShiftRemindersJob(scans, logg)
	require.NoError(t, err)
	approval, err := NewAutoApprovalJob(scans, logg)
	require.NoError(t, err)
	retry, err := NewNotificationRetryJob(scans, logg)
	require.NoError(t, err)

	names := []string{}
	for _, job := range []Job{noShow, escalation, reminders, approval, retry} {
		require.NoError(t, job.Run(context.Background()))
		names = append(names, job.Name())
	}
	assert.Equal(t, []string{"no-show-scan", "escalation-scan", "shift-reminders", "auto-approval", "notification-retry"}, names)
	require.Len(t, scans.scopes, 4)
	for _, scope := range scans.scopes {
		assert.Equal(t, enums.ActorRoleSystem, scope.Role)
		assert.Nil(t, scope.AgencyID)
	}
}

func TestScanJobsPropagateErrors(t *testing.T) {
	scans := &fakeShiftScans{err: errors.New("db down")}
	logg := testLogger()

	noShow, err := NewNoShowScanJob(scans, logg)
	require.NoError(t, err)
	assert.ErrorContains(t, noShow.Run(context.Background()), "no-show scan: db down")

	retry, err := NewNotificationRetryJob(scans, logg)
	require.NoError(t, err)
	assert.ErrorContains(t, retry.Run(context.Background()), "notification retry: db down")
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	_, err := NewNoShowScanJob(nil, testLogger())
	assert.Error(t, err)
	_, err = NewEscalationScanJob(&fakeShiftScans{}, nil)
	assert.Error(t, err)
	_, err = NewRetentionJob(RetentionJobParams{Logger: testLogger()})
	assert.Error(t, err)
}

type fakePurger struct {
	cutoff time.Time
	calls  int
	err    error
}

func (f *fakePurger) DeletePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 7, f.err
}

func (f *fakePurger) DeleteFailedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 1, f.err
}

func (f *fakePurger) PurgeSent(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return 3, f.err
}

func TestRetentionJobPurgesBothTables(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	outboxRepo := &fakePurger{}
	deliveries := &fakePurger{}
	jobIface, err := NewRetentionJob(RetentionJobParams{
		Logger:        testLogger(),
		Outbox:        outboxRepo,
		Notifications: deliveries,
	})
	require.NoError(t, err)
	job := jobIface.(*retentionJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	expected := now.Add(-defaultRetentionDays * 24 * time.Hour)
	assert.True(t, outboxRepo.cutoff.Equal(expected))
	assert.True(t, deliveries.cutoff.Equal(expected))
}

func TestRetentionJobContinuesAfterFailure(t *testing.T) {
	outboxRepo := &fakePurger{err: errors.New("boom")}
	deliveries := &fakePurger{}
	job, err := NewRetentionJob(RetentionJobParams{
		Logger:        testLogger(),
		Outbox:        outboxRepo,
		Notifications: deliveries,
		Retention:     7,
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	assert.ErrorContains(t, err, "outbox retention: boom")
	assert.Equal(t, 1, deliveries.calls)
}

func TestRetentionJobKeepsDeadLettersLonger(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	dlq := &fakePurger{}
	jobIface, err := NewRetentionJob(RetentionJobParams{
		Logger:        testLogger(),
		Outbox:        &fakePurger{},
		Notifications: &fakePurger{},
		DeadLetters:   dlq,
		Retention:     10,
	})
	require.NoError(t, err)
	job := jobIface.(*retentionJob)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, dlq.calls)
	assert.True(t, dlq.cutoff.Equal(now.Add(-30*24*time.Hour)))
}
