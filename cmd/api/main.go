package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/carestaff-backend/api"
	"github.com/angelmondragon/carestaff-backend/api/routes"
	"github.com/angelmondragon/carestaff-backend/internal/analytics"
	"github.com/angelmondragon/carestaff-backend/internal/engines"
	"github.com/angelmondragon/carestaff-backend/pkg/auth/session"
	"github.com/angelmondragon/carestaff-backend/pkg/bigquery"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/env"
	"github.com/angelmondragon/carestaff-backend/pkg/instance"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/migrate"
	"github.com/angelmondragon/carestaff-backend/pkg/redis"
	"github.com/angelmondragon/carestaff-backend/pkg/tracing"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, "carestaff-api", cfg.Tracing, logg)
	if err != nil {
		logg.Error(ctx, "failed to set up tracing", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	built, err := engines.New(engines.Params{
		DB:       dbClient,
		Logger:   logg,
		Metrics:  metrics.NewEngineMetrics(registry),
		Location: cfg.App.Location(),
	})
	if err != nil {
		logg.Error(ctx, "failed to build engines", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		DB:         dbClient,
		Redis:      redisClient,
		Sessions:   sessionManager,
		Store:      redisClient,
		Registry:   registry,
		Timesheets: built.Timesheets,
		Matcher:    built.Matcher,
		Shifts:     built.Shifts,
		Geofence:   built.Geofence,
		Workflows:  built.Workflows,
	}

	// Analytics is optional; the dashboard answers 503 when BigQuery is unreachable at boot.
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "bigquery unavailable, analytics disabled")
	} else {
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()
		analyticsService, err := analytics.NewService(bqClient, cfg.GCP.ProjectID, cfg.BigQuery)
		if err != nil {
			logg.Error(ctx, "failed to create analytics service", err)
			os.Exit(1)
		}
		deps.BigQuery = bqClient
		deps.Analytics = analyticsService
	}

	addr := ":" + env.First(cfg.App.Port, "PORT")
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := api.NewServer(cfg, addr, routes.NewRouter(cfg, logg, deps))
	if err := api.Serve(ctx, server, cfg.API.ShutdownTimeout, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}
