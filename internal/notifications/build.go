package notifications

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
)

// FromConfig builds the notification service with providers and retry policy taken from cfg.
func FromConfig(conn *gorm.DB, cfg *config.Config, m *metrics.EngineMetrics, logg *logger.Logger) (*Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("db required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	providers, err := NewProviders(cfg.Notify, cfg.FeatureFlags.DryRunNotifications, logg)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	repo := NewRepository(conn)
	dispatcher, err := NewDispatcher(DispatcherParams{
		Repo:      repo,
		Providers: providers,
		Policy: RetryPolicy{
			MaxAttempts:    cfg.Notify.MaxAttempts,
			InitialBackoff: cfg.Notify.InitialBackoff,
			MaxBackoff:     cfg.Notify.MaxBackoff,
		},
		Metrics: m,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}
	return NewService(ServiceParams{
		Repo:       repo,
		Catalog:    catalog,
		Dispatcher: dispatcher,
		Logger:     logg,
	})
}
