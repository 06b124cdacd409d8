package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/api/middleware"
	"github.com/angelmondragon/carestaff-backend/api/responses"
	"github.com/angelmondragon/carestaff-backend/api/validators"
	"github.com/angelmondragon/carestaff-backend/internal/matching"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

type TimesheetValidator interface {
	Validate(ctx context.Context, req timesheets.ValidateRequest) (*timesheets.ValidateResponse, error)
}

type BatchApprover interface {
	AutoApproveSubmitted(ctx context.Context, scope visibility.Scope) (*timesheets.BatchReport, error)
}

type ShiftMatchService interface {
	Match(ctx context.Context, req matching.Request) (*matching.Response, error)
}

// ShiftScanner runs the shift state machines on demand.
type ShiftScanner interface {
	ScanNoShows(ctx context.Context, scope visibility.Scope) (*shifts.NoShowReport, error)
	ScanEscalations(ctx context.Context, scope visibility.Scope) (*shifts.EscalationReport, error)
	SendReminders(ctx context.Context, scope visibility.Scope) (*shifts.ReminderReport, error)
}

type timesheetValidationRequest struct {
	TimesheetID   string `json:"timesheet_id" validate:"required,uuid"`
	ManualTrigger *bool  `json:"manual_trigger,omitempty"`
}

type shiftMatcherRequest struct {
	ShiftID string `json:"shift_id" validate:"required,uuid"`
	Limit   int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
}

// TimesheetValidation scores one timesheet and applies the decision.
// HTTP callers are treated as manual triggers unless they say otherwise.
func TimesheetValidation(svc TimesheetValidator, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "timesheet engine unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body timesheetValidationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		timesheetID, err := uuid.Parse(body.TimesheetID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid timesheet_id"))
			return
		}
		manual := true
		if body.ManualTrigger != nil {
			manual = *body.ManualTrigger
		}

		scope := middleware.ScopeFromContext(r.Context())
		resp, err := svc.Validate(r.Context(), timesheets.ValidateRequest{
			TimesheetID:   timesheetID,
			ManualTrigger: manual,
			Actor:         actorFromRequest(r),
			Scope:         scope,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// ShiftMatcher ranks eligible staff for an open shift.
func ShiftMatcher(svc ShiftMatchService, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift matcher unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body shiftMatcherRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		shiftID, err := uuid.Parse(body.ShiftID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shift_id"))
			return
		}

		resp, err := svc.Match(r.Context(), matching.Request{
			ShiftID: shiftID,
			Limit:   body.Limit,
			Scope:   middleware.ScopeFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// NoShowScan runs the no-show state machine for the caller's agency.
func NoShowScan(svc ShiftScanner, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift scanner unavailable")
	}
	return scanHandler(logg, func(ctx context.Context, scope visibility.Scope) (any, error) {
		return svc.ScanNoShows(ctx, scope)
	})
}

// EscalationScan runs the unfilled-shift escalation for the caller's agency.
func EscalationScan(svc ShiftScanner, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift scanner unavailable")
	}
	return scanHandler(logg, func(ctx context.Context, scope visibility.Scope) (any, error) {
		return svc.ScanEscalations(ctx, scope)
	})
}

// ShiftReminders queues pending 24h and 2h reminders.
func ShiftReminders(svc ShiftScanner, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "shift scanner unavailable")
	}
	return scanHandler(logg, func(ctx context.Context, scope visibility.Scope) (any, error) {
		return svc.SendReminders(ctx, scope)
	})
}

// AutoApproval validates every submitted timesheet.
func AutoApproval(svc BatchApprover, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "timesheet engine unavailable")
	}
	return scanHandler(logg, func(ctx context.Context, scope visibility.Scope) (any, error) {
		return svc.AutoApproveSubmitted(ctx, scope)
	})
}

func scanHandler(logg *logger.Logger, run func(ctx context.Context, scope visibility.Scope) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := run(r.Context(), middleware.ScopeFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func unavailable(logg *logger.Logger, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, msg))
	}
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	scope := middleware.ScopeFromContext(r.Context())
	actor := &outbox.ActorRef{AgencyID: scope.AgencyID, Role: string(scope.Role)}
	if raw := middleware.UserIDFromContext(r.Context()); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			actor.UserID = &id
		}
	}
	return actor
}
