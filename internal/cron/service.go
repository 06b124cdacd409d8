package cron

import (
	"context"
	"fmt"
	"time"

	robfigcron "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/tracing"
)

const lockReleaseTimeout = 5 * time.Second

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Location *time.Location
}

// Service executes registered jobs on their cron schedules.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	location *time.Location
}

// NewService builds a cron service and rejects unparsable schedules up front.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	for _, entry := range registry.Entries() {
		if _, err := robfigcron.ParseStandard(entry.Spec); err != nil {
			return nil, fmt.Errorf("job %s: invalid schedule %q: %w", entry.Job.Name(), entry.Spec, err)
		}
	}
	location := params.Location
	if location == nil {
		location = time.UTC
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		location: location,
	}, nil
}

// Run schedules every registered job and blocks until the context is canceled.
// In-flight jobs finish before Run returns.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cronLog := cronLogger{ctx: ctx, logg: s.logg}
	scheduler := robfigcron.New(
		robfigcron.WithLocation(s.location),
		robfigcron.WithLogger(cronLog),
		robfigcron.WithChain(robfigcron.Recover(cronLog), robfigcron.SkipIfStillRunning(cronLog)),
	)
	for _, entry := range s.registry.Entries() {
		job := entry.Job
		if _, err := scheduler.AddFunc(entry.Spec, func() { s.RunJob(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "spec": entry.Spec})
		s.logg.Info(logCtx, "job scheduled")
	}

	scheduler.Start()
	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	<-scheduler.Stop().Done()
	return ctx.Err()
}

// RunNamed runs one registered job immediately, honoring the job lock.
func (s *Service) RunNamed(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.RunJob(ctx, job)
}

// RunJob runs a job once if no other instance holds its lock.
func (s *Service) RunJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithJob(ctx, name)
	locked, err := s.lock.Acquire(jobCtx, name)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(jobCtx, "job held by another instance, skipping")
		s.metrics.Observe(name, metrics.JobSkipped, 0, time.Now())
		return nil
	}
	defer func() {
		// Shutdown cancels ctx mid-run; the lock must still be freed.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := s.lock.Release(releaseCtx, name); err != nil {
			s.logg.Error(jobCtx, "release cron lock", err)
		}
	}()
	return s.runJob(jobCtx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	ctx, span := tracing.StartSpan(ctx, "cron."+name)
	defer span.End()
	span.SetAttributes(attribute.String("cron.job", name))

	s.logg.Info(ctx, "job start")
	start := time.Now()
	err := job.Run(ctx)
	finished := time.Now()
	elapsed := finished.Sub(start)

	ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.Observe(name, metrics.JobFailed, elapsed, finished)
		s.logg.Error(ctx, "job failed", err)
		return err
	}
	s.metrics.Observe(name, metrics.JobSucceeded, elapsed, finished)
	s.logg.Info(ctx, "job completed")
	return nil
}

// cronLogger routes robfig/cron scheduler messages into the service logger.
type cronLogger struct {
	ctx  context.Context
	logg *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logg.Debug(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron: "+msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logg.Error(l.logg.WithFields(l.ctx, pairs(keysAndValues)), "cron: "+msg, err)
}

func pairs(keysAndValues []any) map[string]any {
	fields := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
