package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
)

type fakeLock struct {
	held     map[string]bool
	acquired []string
	err      error
}

func (f *fakeLock) Acquire(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.held == nil {
		f.held = map[string]bool{}
	}
	if f.held[name] {
		return false, nil
	}
	f.held[name] = true
	f.acquired = append(f.acquired, name)
	return true, nil
}

// Release fails on a done context the way a redis round trip would.
func (f *fakeLock) Release(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	delete(f.held, name)
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, registry *Registry, lock Lock, m *metrics.CronJobMetrics) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Metrics:  m,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func TestRunJobRecordsOutcome(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry := NewRegistry()
	registry.Register("*/5 * * * *", success)
	registry.Register("0 * * * *", failure)
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()
	m := metrics.NewCronJobMetrics(reg)
	service := newTestService(t, registry, lock, m)
	ctx := context.Background()

	if err := service.RunNamed(ctx, "success"); err != nil {
		t.Fatalf("run success: %v", err)
	}
	if err := service.RunNamed(ctx, "fail"); err == nil {
		t.Fatal("expected job failure to surface")
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", success.runs, failure.runs)
	}
	if len(lock.held) != 0 {
		t.Fatalf("locks not released: %v", lock.held)
	}
	if got := runCount(t, reg, "success", metrics.JobSucceeded); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := runCount(t, reg, "fail", metrics.JobFailed); got != 1 {
		t.Fatalf("expected one failure, got %v", got)
	}
}

func runCount(t *testing.T, reg *prometheus.Registry, job, result string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "carestaff_cron_runs_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			if labels["job"] == job && labels["result"] == result {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRunJobSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "no-show-scan"}
	registry := NewRegistry()
	registry.Register("*/5 * * * *", job)
	lock := &fakeLock{held: map[string]bool{"no-show-scan": true}}
	reg := prometheus.NewRegistry()
	service := newTestService(t, registry, lock, metrics.NewCronJobMetrics(reg))

	if err := service.RunNamed(context.Background(), "no-show-scan"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run while another instance holds the lock")
	}
	if !lock.held["no-show-scan"] {
		t.Fatalf("foreign lock must stay in place")
	}
	if got := runCount(t, reg, "no-show-scan", metrics.JobSkipped); got != 1 {
		t.Fatalf("expected one skipped run, got %v", got)
	}
}

// shutdownJob cancels the run context partway through, as SIGTERM does.
type shutdownJob struct {
	cancel context.CancelFunc
}

func (shutdownJob) Name() string { return "escalation-scan" }

func (j shutdownJob) Run(ctx context.Context) error {
	j.cancel()
	return ctx.Err()
}

func TestRunJobReleasesLockAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registry := NewRegistry()
	registry.Register("*/5 * * * *", shutdownJob{cancel: cancel})
	lock := &fakeLock{}
	service := newTestService(t, registry, lock, nil)

	if err := service.RunNamed(ctx, "escalation-scan"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled run, got %v", err)
	}
	if lock.held["escalation-scan"] {
		t.Fatalf("lock must be released even though the run context was canceled")
	}
}

func TestRunJobLockError(t *testing.T) {
	job := &testJob{name: "retention"}
	registry := NewRegistry()
	registry.Register("30 3 * * *", job)
	service := newTestService(t, registry, &fakeLock{err: errors.New("redis down")}, nil)

	if err := service.RunNamed(context.Background(), "retention"); err == nil {
		t.Fatal("expected lock error")
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
}

func TestRunNamedUnknownJob(t *testing.T) {
	service := newTestService(t, NewRegistry(), &fakeLock{}, nil)
	if err := service.RunNamed(context.Background(), "missing"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestNewServiceRejectsInvalidSpec(t *testing.T) {
	registry := NewRegistry()
	registry.Register("every five minutes", &testJob{name: "bad"})
	_, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     &fakeLock{},
	})
	if err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	registry := NewRegistry()
	registry.Register("0 0 1 1 *", &testJob{name: "yearly"})
	service := newTestService(t, registry, &fakeLock{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cron service did not stop")
	}
}
