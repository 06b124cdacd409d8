package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/carestaff-backend/internal/cron"
	"github.com/angelmondragon/carestaff-backend/internal/engines"
	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/pkg/auth/session"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/redis"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(bootstrap, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// bootstrap connects to the configured database and redis and builds the engines.
// Logs go to stderr so tables and JSON stay clean on stdout.
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = "opsctl"

	logg := logger.New(logger.Options{
		ServiceName: "opsctl",
		Output:      os.Stderr,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	closeAll := func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}

	built, err := engines.New(engines.Params{
		DB:       dbClient,
		Logger:   logg,
		Location: cfg.App.Location(),
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build engines: %w", err)
	}
	notificationService, err := notifications.FromConfig(dbClient.DB(), cfg, nil, logg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build notifications: %w", err)
	}
	deadLetters := outbox.NewDLQRepository(dbClient.DB())
	registry, err := cron.DefaultRegistry(cfg.Scheduler, cron.JobDeps{
		Shifts:        built.Shifts,
		Timesheets:    built.Timesheets,
		Notifications: notificationService,
		Outbox:        built.OutboxRepo,
		DeadLetters:   deadLetters,
	}, logg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("register jobs: %w", err)
	}
	lock, err := cron.NewRedisLock(redisClient, cfg.Scheduler.LockTTL)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("cron lock: %w", err)
	}
	jobs, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Location: cfg.App.Location(),
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("cron service: %w", err)
	}

	sessions, err := session.NewManager(redisClient)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("session manager: %w", err)
	}

	return &app{
		Timesheets: built.Timesheets,
		Matcher:    built.Matcher,
		Shifts:     built.Shifts,
		Jobs:       jobs,
		Tokens:     tokenMinter{cfg: cfg.JWT, sessions: sessions, now: time.Now},
		Dead:       deadLetters,
		Schedule:   registry.Entries(),
		close:      closeAll,
	}, nil
}
