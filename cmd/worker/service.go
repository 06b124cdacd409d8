package main

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

const (
	defaultReadyAttempts = 5
	defaultReadyBackoff  = 500 * time.Millisecond
)

type runner interface {
	Run(ctx context.Context) error
}

type pinger func(context.Context) error

type ServiceParams struct {
	Logger   *logger.Logger
	Consumer runner
	// Pingers are the dependencies that must answer before consuming starts.
	Pingers map[string]pinger
	// ReadyAttempts and ReadyBackoff bound the wait for each dependency.
	ReadyAttempts int
	ReadyBackoff  time.Duration
}

// Service waits for its dependencies, then runs the notification consumer
// until the context ends.
type Service struct {
	logg     *logger.Logger
	consumer runner
	pingers  map[string]pinger
	attempts int
	backoff  time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.Consumer == nil:
		return nil, errors.New("notification consumer is required")
	}
	svc := &Service{
		logg:     params.Logger,
		consumer: params.Consumer,
		pingers:  params.Pingers,
		attempts: params.ReadyAttempts,
		backoff:  params.ReadyBackoff,
	}
	if svc.attempts < 1 {
		svc.attempts = defaultReadyAttempts
	}
	if svc.backoff <= 0 {
		svc.backoff = defaultReadyBackoff
	}
	return svc, nil
}

// waitReady pings each dependency in name order, retrying with backoff so a
// worker started alongside its redis or emulator does not crash-loop.
func (s *Service) waitReady(ctx context.Context) error {
	for _, name := range slices.Sorted(maps.Keys(s.pingers)) {
		ping := s.pingers[name]
		if ping == nil {
			continue
		}
		attempt := 0
		backoff := retry.WithMaxRetries(uint64(s.attempts-1), retry.NewExponential(s.backoff))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			attempt++
			if err := ping(ctx); err != nil {
				s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
					"dependency": name,
					"attempt":    attempt,
					"error":      err.Error(),
				}), "dependency not ready")
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s not ready after %d attempts: %w", name, attempt, err)
		}
	}
	s.logg.Info(ctx, "worker dependencies ready")
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}
	if err := s.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("notification consumer: %w", err)
	}
	s.logg.Info(ctx, "notification consumer stopped")
	return nil
}
