package engines

import (
	"fmt"
	"time"

	"github.com/angelmondragon/carestaff-backend/internal/geofence"
	"github.com/angelmondragon/carestaff-backend/internal/matching"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/internal/workflows"
	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
)

// Params wires the engine graph shared by the API, the cron worker and opsctl.
type Params struct {
	DB       *db.Client
	Logger   *logger.Logger
	Metrics  *metrics.EngineMetrics
	Location *time.Location
	Policy   timesheets.Policy
	Now      func() time.Time
}

// Engines holds every domain service built over one database.
type Engines struct {
	Outbox     *outbox.Service
	OutboxRepo *outbox.Repository
	Timesheets *timesheets.Service
	Shifts     *shifts.Service
	Matcher    *matching.Service
	Geofence   *geofence.Service
	Workflows  workflows.Service
}

// New builds the engines. Every service shares one outbox so decisions and their
// notification requests commit together.
func New(params Params) (*Engines, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	conn := params.DB.DB()

	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, params.Logger)
	workflowRepo := workflows.NewRepository(conn)

	timesheetRepo := timesheets.NewRepository(conn)
	applier, err := timesheets.NewApplier(timesheets.ApplierParams{
		DB:        params.DB,
		Repo:      timesheetRepo,
		Workflows: workflowRepo,
		Outbox:    outboxSvc,
		Policy:    params.Policy,
		Location:  params.Location,
		Logger:    params.Logger,
		Now:       params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("decision applier: %w", err)
	}
	timesheetSvc, err := timesheets.NewService(timesheets.ServiceParams{
		Repo:    timesheetRepo,
		Applier: applier,
		Policy:  params.Policy,
		Metrics: params.Metrics,
		Logger:  params.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("timesheet service: %w", err)
	}

	shiftSvc, err := shifts.NewService(shifts.ServiceParams{
		DB:        params.DB,
		Repo:      shifts.NewRepository(conn),
		Workflows: workflowRepo,
		Outbox:    outboxSvc,
		Metrics:   params.Metrics,
		Location:  params.Location,
		Logger:    params.Logger,
		Now:       params.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("shift service: %w", err)
	}

	matcher, err := matching.NewService(matching.NewRepository(conn), params.Logger)
	if err != nil {
		return nil, fmt.Errorf("matching service: %w", err)
	}
	geo, err := geofence.NewService(geofence.NewRepository(conn), params.Logger)
	if err != nil {
		return nil, fmt.Errorf("geofence service: %w", err)
	}
	workflowSvc, err := workflows.NewService(workflowRepo)
	if err != nil {
		return nil, fmt.Errorf("workflows service: %w", err)
	}

	return &Engines{
		Outbox:     outboxSvc,
		OutboxRepo: outboxRepo,
		Timesheets: timesheetSvc,
		Shifts:     shiftSvc,
		Matcher:    matcher,
		Geofence:   geo,
		Workflows:  workflowSvc,
	}, nil
}
