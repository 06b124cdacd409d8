package timesheets

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	dbpkg "github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/metrics"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

const (
	ReasonAlreadyProcessed = "already_processed"
	ReasonDisabled         = "disabled"

	defaultBatchLimit = 500
)

// ServiceParams wires the timesheet validation service.
type ServiceParams struct {
	Repo    *Repository
	Applier *Applier
	Policy  Policy
	Metrics *metrics.EngineMetrics
	Logger  *logger.Logger
}

// Service validates timesheets on demand and in batches.
type Service struct {
	repo    *Repository
	applier *Applier
	policy  Policy
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

// NewService validates params and returns a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("timesheet repository required")
	}
	if params.Applier == nil {
		return nil, fmt.Errorf("applier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	policy := params.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	return &Service{
		repo:    params.Repo,
		applier: params.Applier,
		policy:  policy,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// ValidateRequest identifies the timesheet and the caller.
type ValidateRequest struct {
	TimesheetID   uuid.UUID
	ManualTrigger bool
	Actor         *outbox.ActorRef
	Scope         visibility.Scope
}

// ValidateResponse is returned by the timesheet-validation engine.
type ValidateResponse struct {
	Success        bool                     `json:"success"`
	TimesheetID    uuid.UUID                `json:"timesheet_id"`
	Decision       enums.ValidationDecision `json:"decision,omitempty"`
	Action         string                   `json:"action,omitempty"`
	Score          *int                     `json:"score,omitempty"`
	Validations    *Validations             `json:"validations,omitempty"`
	Issues         types.ValidationIssues   `json:"issues,omitempty"`
	Warnings       types.ValidationIssues   `json:"warnings,omitempty"`
	AutoApproved   bool                     `json:"auto_approved"`
	RequiresReview bool                     `json:"requires_review"`
	Message        string                   `json:"message"`
	WorkflowID     *uuid.UUID               `json:"workflow_id,omitempty"`
	Reason         string                   `json:"reason,omitempty"`
}

// Validate scores one timesheet and applies the decision.
// Already approved or paid timesheets and agencies with auto-approval off are refused without writes.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResponse, error) {
	if req.TimesheetID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "timesheet_id is required")
	}
	ctx = s.logg.WithField(ctx, "timesheet_id", req.TimesheetID.String())

	ts, err := s.repo.FindTimesheet(ctx, req.TimesheetID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Timesheet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load timesheet")
	}
	if err := visibility.EnsureAgencyVisible(req.Scope, ts.AgencyID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Timesheet not found")
		}
		return nil, err
	}
	if ts.Status.IsFinalized() {
		return alreadyProcessed(ts.ID), nil
	}

	agency, err := s.repo.FindAgency(ctx, ts.AgencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load agency")
	}
	if !agency.AutomationSettings.AutoTimesheetApproval && !req.ManualTrigger {
		return &ValidateResponse{
			Success:     false,
			TimesheetID: ts.ID,
			Reason:      ReasonDisabled,
			Message:     "Auto-approval disabled for this agency",
		}, nil
	}

	shift, err := s.repo.FindShift(ctx, ts.ShiftID)
	if err != nil && !dbpkg.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shift")
	}
	staff, err := s.repo.FindStaff(ctx, ts.StaffID)
	if err != nil && !dbpkg.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load staff")
	}
	reviews, err := s.repo.ListOpenReviews(ctx, ts.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load open reviews")
	}

	result := s.policy.Evaluate(Input{Timesheet: *ts, Shift: shift, OpenReviews: len(reviews)})

	applied, err := s.applier.Apply(ctx, ApplyInput{
		Timesheet:     *ts,
		Shift:         shift,
		Agency:        *agency,
		Staff:         staff,
		Result:        result,
		ManualTrigger: req.ManualTrigger,
		Actor:         req.Actor,
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return alreadyProcessed(ts.ID), nil
		}
		return nil, err
	}
	s.metrics.IncDecision(string(result.Decision))

	score := result.Score
	validations := result.Validations
	return &ValidateResponse{
		Success:        true,
		TimesheetID:    ts.ID,
		Decision:       result.Decision,
		Action:         applied.Action,
		Score:          &score,
		Validations:    &validations,
		Issues:         result.Issues,
		Warnings:       result.Warnings,
		AutoApproved:   applied.AutoApproved,
		RequiresReview: !applied.AutoApproved,
		Message:        decisionMessage(result.Decision),
		WorkflowID:     applied.WorkflowID,
	}, nil
}

func alreadyProcessed(id uuid.UUID) *ValidateResponse {
	return &ValidateResponse{
		Success:     false,
		TimesheetID: id,
		Reason:      ReasonAlreadyProcessed,
		Message:     "Timesheet already approved or paid",
	}
}

func decisionMessage(decision enums.ValidationDecision) string {
	switch decision {
	case enums.DecisionAutoApprove:
		return "Timesheet auto-approved - all validations passed"
	case enums.DecisionAutoApproveWithNotes:
		return "Timesheet auto-approved with minor warnings"
	case enums.DecisionEscalateToAdmin:
		return "Timesheet escalated to admin - critical issues detected"
	default:
		return "Timesheet flagged for admin review"
	}
}

// ApprovedTimesheet is one auto-approved row in a batch report.
type ApprovedTimesheet struct {
	TimesheetID     uuid.UUID `json:"timesheet_id"`
	StaffID         uuid.UUID `json:"staff_id"`
	TotalHours      float64   `json:"total_hours"`
	ValidationScore int       `json:"validation_score"`
}

// FlaggedTimesheet is one row a batch run sent to review.
type FlaggedTimesheet struct {
	TimesheetID uuid.UUID `json:"timesheet_id"`
	StaffID     uuid.UUID `json:"staff_id"`
	Reason      string    `json:"reason"`
	Issues      []string  `json:"issues"`
}

// BatchError reports a timesheet the batch could not process.
type BatchError struct {
	TimesheetID uuid.UUID `json:"timesheet_id"`
	Error       string    `json:"error"`
}

// BatchReport summarizes one auto-approval run.
type BatchReport struct {
	Success      bool                `json:"success"`
	Checked      int                 `json:"checked"`
	AutoApproved []ApprovedTimesheet `json:"autoApproved"`
	Flagged      []FlaggedTimesheet  `json:"flagged"`
	Errors       []BatchError        `json:"errors"`
	ApprovalRate float64             `json:"approvalRate"`
}

// AutoApproveSubmitted validates every submitted timesheet. A failure on one row never stops the run.
func (s *Service) AutoApproveSubmitted(ctx context.Context, scope visibility.Scope) (*BatchReport, error) {
	agencyID, err := visibility.AgencyFilter(scope)
	if err != nil {
		return nil, err
	}
	agencies, err := s.repo.ListAgencies(ctx, agencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list agencies")
	}
	// Agencies that turned auto-approval off would return their rows as
	// disabled on every run, so they are left out of the batch.
	enabled := make([]uuid.UUID, 0, len(agencies))
	for _, agency := range agencies {
		if agency.AutomationSettings.AutoTimesheetApproval {
			enabled = append(enabled, agency.ID)
		}
	}
	ids, err := s.repo.ListSubmittedIDs(ctx, enabled, defaultBatchLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list submitted timesheets")
	}

	report := &BatchReport{
		Success:      true,
		AutoApproved: []ApprovedTimesheet{},
		Flagged:      []FlaggedTimesheet{},
		Errors:       []BatchError{},
	}
	var errs error
	for _, id := range ids {
		ts, err := s.repo.FindTimesheet(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			report.Errors = append(report.Errors, BatchError{TimesheetID: id, Error: err.Error()})
			continue
		}
		report.Checked++

		resp, err := s.Validate(ctx, ValidateRequest{
			TimesheetID: id,
			Actor:       outbox.SystemActor(ts.AgencyID),
			Scope:       scope,
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			report.Errors = append(report.Errors, BatchError{TimesheetID: id, Error: err.Error()})
			continue
		}
		if !resp.Success {
			continue
		}
		if resp.AutoApproved {
			report.AutoApproved = append(report.AutoApproved, ApprovedTimesheet{
				TimesheetID:     id,
				StaffID:         ts.StaffID,
				TotalHours:      ts.TotalHours,
				ValidationScore: *resp.Score,
			})
			continue
		}
		report.Flagged = append(report.Flagged, FlaggedTimesheet{
			TimesheetID: id,
			StaffID:     ts.StaffID,
			Reason:      string(resp.Decision),
			Issues:      resp.Issues.Messages(),
		})
	}

	if report.Checked > 0 {
		rate := float64(len(report.AutoApproved)) / float64(report.Checked) * 100
		report.ApprovalRate = math.Round(rate*10) / 10
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checked":       report.Checked,
		"auto_approved": len(report.AutoApproved),
		"flagged":       len(report.Flagged),
		"errors":        len(report.Errors),
	})
	if errs != nil {
		s.logg.Error(logCtx, "auto-approval batch finished with errors", errs)
	} else {
		s.logg.Info(logCtx, "auto-approval batch complete")
	}
	return report, nil
}
