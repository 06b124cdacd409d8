package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/carestaff-backend/api/controllers"
	analyticscontrollers "github.com/angelmondragon/carestaff-backend/api/controllers/analytics"
	"github.com/angelmondragon/carestaff-backend/api/middleware"
	"github.com/angelmondragon/carestaff-backend/internal/analytics"
	"github.com/angelmondragon/carestaff-backend/internal/workflows"
	"github.com/angelmondragon/carestaff-backend/pkg/auth/session"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/carestaff-backend/pkg/redis"
)

// RequestStore backs idempotent replays and trigger rate limits.
type RequestStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, subject string) string
}

// TimesheetEngine validates single timesheets and submitted batches.
type TimesheetEngine interface {
	controllers.TimesheetValidator
	controllers.BatchApprover
}

// Dependencies carries everything the HTTP surface calls into.
// Nil services answer 503 on their routes; nil pingers are skipped by readiness.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	BigQuery controllers.Pinger

	Sessions session.AccessSessionChecker
	Store    RequestStore
	Registry *prometheus.Registry

	Timesheets TimesheetEngine
	Matcher    controllers.ShiftMatchService
	Shifts     controllers.ShiftScanner
	Geofence   controllers.GeofenceValidator
	Workflows  workflows.Service
	Analytics  analytics.Service
}

// Replay windows for Idempotency-Key. Scans are short since a later scan should
// see newer data; the shift matcher is never replayed.
const (
	decisionReplayTTL = 24 * time.Hour
	scanReplayTTL     = 10 * time.Minute
)

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if cfg.API.MetricsEnabled && deps.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(deps.Registry)
	}

	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":       deps.DB,
			"redis":    deps.Redis,
			"bigquery": deps.BigQuery,
		}))
	})

	if cfg.API.MetricsEnabled && deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{Registry: deps.Registry}))
	}

	triggerPolicy := middleware.NewRateLimitPolicy("engine-trigger", cfg.API.TriggerWindow, cfg.API.TriggerLimit)
	limited := middleware.RateLimit(triggerPolicy, deps.Store, logg)
	replay := func(ttl time.Duration) []func(http.Handler) http.Handler {
		return []func(http.Handler) http.Handler{limited, middleware.Replay(deps.Store, ttl, logg)}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.ActorRoleAgencyAdmin, enums.ActorRoleSystem))

		r.Route("/engines", func(r chi.Router) {
			r.With(replay(decisionReplayTTL)...).Post("/timesheet-validation", controllers.TimesheetValidation(deps.Timesheets, logg))
			r.With(limited).Post("/shift-matcher", controllers.ShiftMatcher(deps.Matcher, logg))
			r.With(replay(scanReplayTTL)...).Post("/no-show-scan", controllers.NoShowScan(deps.Shifts, logg))
			r.With(replay(scanReplayTTL)...).Post("/escalation-scan", controllers.EscalationScan(deps.Shifts, logg))
			r.With(replay(scanReplayTTL)...).Post("/shift-reminders", controllers.ShiftReminders(deps.Shifts, logg))
			r.With(replay(scanReplayTTL)...).Post("/auto-approval", controllers.AutoApproval(deps.Timesheets, logg))
		})

		r.With(replay(decisionReplayTTL)...).Post("/geofence/validate", controllers.GeofenceValidate(deps.Geofence, logg))

		r.Route("/admin-workflows", func(r chi.Router) {
			r.Get("/", controllers.ListAdminWorkflows(deps.Workflows, logg))
			r.Get("/{workflowId}", controllers.GetAdminWorkflow(deps.Workflows, logg))
		})

		r.Get("/analytics/decisions", analyticscontrollers.Decisions(deps.Analytics, logg))
	})

	return r
}
