package shifts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/workflows"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// errLostRace marks a guarded transition another worker already made.
var errLostRace = errors.New("shift transition already applied")

// ServiceParams wires the shift scans.
type ServiceParams struct {
	DB        txRunner
	Repo      *Repository
	Workflows workflows.Repository
	Outbox    outboxPublisher
	Metrics   *metrics.EngineMetrics
	Location  *time.Location
	Logger    *logger.Logger
	Now       func() time.Time
}

// Service runs the no-show, escalation and reminder scans.
// Each shift is handled in its own transaction; a failing shift is reported and the scan moves on.
type Service struct {
	db        txRunner
	repo      *Repository
	workflows workflows.Repository
	outbox    outboxPublisher
	metrics   *metrics.EngineMetrics
	loc       *time.Location
	logg      *logger.Logger
	now       func() time.Time
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("shift repository required")
	}
	if params.Workflows == nil {
		return nil, fmt.Errorf("workflow repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:        params.DB,
		repo:      params.Repo,
		workflows: params.Workflows,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		loc:       loc,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// ShiftError is one per-shift failure in a scan report.
type ShiftError struct {
	ShiftID uuid.UUID `json:"shift_id"`
	Error   string    `json:"error"`
}

func (s *Service) shiftVars(shift models.Shift, client *models.Client) map[string]string {
	start := shift.StartsAt.In(s.loc)
	vars := map[string]string{
		"shift_ref":    shortRef(shift.ID),
		"shift_date":   start.Format("2006-01-02"),
		"shift_window": shift.Window(s.loc),
		"start_time":   start.Format("15:04"),
		"role":         roleLabel(shift.RoleRequired),
		"pay_rate":     shift.PayRate.StringFixed(2),
		"urgency":      string(shift.Urgency),
		"client_name":  "Client",
	}
	if client != nil {
		vars["client_name"] = client.Name
	}
	return vars
}

// loadContext fetches the staff and client a shift points at; either may be missing.
func (s *Service) loadContext(ctx context.Context, repo *Repository, shift models.Shift) (*models.Staff, *models.Client, error) {
	var staff *models.Staff
	if shift.AssignedStaffID != nil {
		found, err := repo.FindStaff(ctx, *shift.AssignedStaffID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("load staff: %w", err)
		}
		staff = found
	}
	client, err := repo.FindClient(ctx, shift.ClientID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("load client: %w", err)
	}
	return staff, client, nil
}

func (s *Service) emitNotification(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent, ok bool) error {
	if !ok {
		return nil
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return fmt.Errorf("emit notification request: %w", err)
	}
	return nil
}

// roleLabel replaces the first underscore, so "care_assistant" reads "care assistant".
func roleLabel(role string) string {
	return strings.Replace(role, "_", " ", 1)
}

func shortRef(id uuid.UUID) string {
	return id.String()[:8]
}

func staffName(staff *models.Staff) string {
	if staff == nil {
		return "Unknown Staff"
	}
	return staff.FullName()
}
