package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/carestaff-backend/internal/analytics/router"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/worker"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/writer"
	"github.com/angelmondragon/carestaff-backend/pkg/bigquery"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/instance"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/carestaff-backend/pkg/pubsub"
	"github.com/angelmondragon/carestaff-backend/pkg/redis"
)

const flushTimeout = 15 * time.Second

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "analytics-worker"}).Error(ctx, "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "analytics-worker"

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
		logg.Error(ctx, "analytics worker stopped", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker shut down")
}

// run wires redis, Pub/Sub and BigQuery and consumes decision events until
// ctx is cancelled. Buffered rows are flushed on the way out.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	closeQuietly := func(name string, closeFn func() error) {
		if cerr := closeFn(); cerr != nil {
			logg.Error(context.WithoutCancel(ctx), "closing "+name, cerr)
		}
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeQuietly("redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer closeQuietly("pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer closeQuietly("bigquery", bqClient.Close)

	subscription := pubsubClient.DecisionSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}

	rows, err := writer.New(bqClient, writer.Config{
		DecisionsTable:   cfg.BigQuery.DecisionsTable,
		ShiftEventsTable: cfg.BigQuery.ShiftEventsTable,
		MaxAttempts:      cfg.BigQuery.InsertAttempts,
	})
	if err != nil {
		return fmt.Errorf("bigquery writer: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
		defer cancel()
		if ferr := rows.Flush(flushCtx); ferr != nil {
			logg.Error(flushCtx, "flushing analytics rows", ferr)
		}
	}()

	handler, err := router.NewRouter(rows, logg, nil)
	if err != nil {
		return fmt.Errorf("analytics router: %w", err)
	}
	consumer, err := worker.NewService(subscription, handler, guard, logg)
	if err != nil {
		return fmt.Errorf("analytics consumer: %w", err)
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.DecisionSubscription), "analytics worker consuming")
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
