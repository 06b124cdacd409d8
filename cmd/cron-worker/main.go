package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/carestaff-backend/internal/cron"
	"github.com/angelmondragon/carestaff-backend/internal/engines"
	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/instance"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/migrate"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/redis"
	"github.com/angelmondragon/carestaff-backend/pkg/tracing"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "cron-worker"

	logg := logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "cron worker stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down")
}

// run schedules the automation scans and housekeeping jobs. Every replica
// runs the scheduler; the redis lock decides which one executes a tick.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	closeQuietly := func(name string, closeFn func() error) {
		if cerr := closeFn(); cerr != nil {
			logg.Error(context.WithoutCancel(ctx), "closing "+name, cerr)
		}
	}

	shutdownTracing, err := tracing.Setup(ctx, "carestaff-cron-worker", cfg.Tracing, logg)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer closeQuietly("tracing", func() error { return shutdownTracing(context.WithoutCancel(ctx)) })

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeQuietly("database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly("redis", redisClient.Close)

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)
	built, err := engines.New(engines.Params{
		DB:       dbClient,
		Logger:   logg,
		Metrics:  engineMetrics,
		Location: cfg.App.Location(),
	})
	if err != nil {
		return fmt.Errorf("engines: %w", err)
	}
	delivery, err := notifications.FromConfig(dbClient.DB(), cfg, engineMetrics, logg)
	if err != nil {
		return fmt.Errorf("notification service: %w", err)
	}

	registry, err := cron.DefaultRegistry(cfg.Scheduler, cron.JobDeps{
		Shifts:        built.Shifts,
		Timesheets:    built.Timesheets,
		Notifications: delivery,
		Outbox:        built.OutboxRepo,
		DeadLetters:   outbox.NewDLQRepository(dbClient.DB()),
	}, logg)
	if err != nil {
		return fmt.Errorf("cron registry: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, cfg.Scheduler.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Location: cfg.App.Location(),
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "jobs", len(registry.Entries())), "cron worker scheduling")
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
