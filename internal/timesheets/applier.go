package timesheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/internal/workflows"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

const (
	ActionApproved      = "approved"
	ActionPendingReview = "pending_review"

	notesAllPassed = "Auto-approved - all validations passed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ApplierParams wires the decision applier.
type ApplierParams struct {
	DB        txRunner
	Repo      *Repository
	Workflows workflows.Repository
	Outbox    outboxPublisher
	Policy    Policy
	Location  *time.Location
	Logger    *logger.Logger
	Now       func() time.Time
}

// Applier persists a validation result. Every write of one call shares a transaction.
type Applier struct {
	db        txRunner
	repo      *Repository
	workflows workflows.Repository
	outbox    outboxPublisher
	policy    Policy
	loc       *time.Location
	logg      *logger.Logger
	now       func() time.Time
}

// NewApplier validates params and returns an Applier.
func NewApplier(params ApplierParams) (*Applier, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("db required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("timesheet repository required")
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
	policy := params.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	return &Applier{
		db:        params.DB,
		repo:      params.Repo,
		workflows: params.Workflows,
		outbox:    params.Outbox,
		policy:    policy,
		loc:       loc,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// ApplyInput is the evaluated result plus the rows it was computed from.
type ApplyInput struct {
	Timesheet     models.Timesheet
	Shift         *models.Shift
	Agency        models.Agency
	Staff         *models.Staff
	Result        Result
	ManualTrigger bool
	Actor         *outbox.ActorRef
}

// Applied summarizes the writes made for one decision.
type Applied struct {
	Action       string
	AutoApproved bool
	WorkflowID   *uuid.UUID
	ShiftStatus  enums.ShiftStatus
}

// Apply records the result and moves the timesheet, shift and review queue forward.
// It returns a STATE_CONFLICT error when the timesheet was approved or paid concurrently.
func (a *Applier) Apply(ctx context.Context, in ApplyInput) (*Applied, error) {
	var applied *Applied
	err := a.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		applied, err = a.apply(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	a.logg.Info(a.logg.WithFields(ctx, map[string]any{
		"timesheet_id": in.Timesheet.ID.String(),
		"decision":     string(in.Result.Decision),
		"score":        in.Result.Score,
		"action":       applied.Action,
	}), "timesheet decision applied")
	return applied, nil
}

func (a *Applier) apply(ctx context.Context, tx *gorm.DB, in ApplyInput) (*Applied, error) {
	repo := a.repo.WithTx(tx)
	now := a.now().UTC()
	ts := in.Timesheet
	res := in.Result

	updates := map[string]any{
		"validation_completed_at": now,
		"validation_decision":     res.Decision,
		"validation_score":        res.Score,
		"validation_issues":       res.Issues,
		"validation_warnings":     res.Warnings,
	}
	approves := res.Decision.Approves()
	if approves {
		updates["status"] = enums.TimesheetStatusApproved
		updates["client_approved_at"] = now
		updates["auto_approved"] = true
		updates["approval_notes"] = approvalNotes(res)
		if in.Shift != nil {
			hours := decimal.NewFromFloat(ts.TotalHours)
			updates["pay_amount"] = hours.Mul(in.Shift.PayRate).Round(2)
			updates["charge_amount"] = hours.Mul(in.Shift.ChargeRate).Round(2)
		}
	}

	rows, err := repo.RecordValidation(ctx, ts.ID, updates)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record timesheet validation")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "timesheet already approved or paid")
	}

	applied := &Applied{Action: ActionPendingReview}
	if approves {
		applied.Action = ActionApproved
		applied.AutoApproved = true
		if in.Shift != nil {
			status, err := a.closeShift(ctx, repo, in, now)
			if err != nil {
				return nil, err
			}
			applied.ShiftStatus = status
		}
	} else {
		if _, err := repo.MoveToPendingReview(ctx, ts.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move timesheet to pending review")
		}
		workflowID, err := a.openReview(ctx, tx, in, now)
		if err != nil {
			return nil, err
		}
		applied.WorkflowID = &workflowID
	}

	actor := in.Actor
	if actor == nil {
		actor = outbox.SystemActor(ts.AgencyID)
	}
	if err := a.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventTimesheetValidated,
		AggregateType: enums.AggregateTimesheet,
		AggregateID:   ts.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.TimesheetValidatedEvent{
			TimesheetID:   ts.ID,
			ShiftID:       ts.ShiftID,
			AgencyID:      ts.AgencyID,
			StaffID:       ts.StaffID,
			Decision:      res.Decision,
			Score:         res.Score,
			IssueCodes:    res.Issues.Codes(),
			WarningCodes:  res.Warnings.Codes(),
			WorkflowID:    applied.WorkflowID,
			ManualTrigger: in.ManualTrigger,
			ValidatedAt:   now,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit timesheet validated event")
	}

	event, ok, err := a.notification(ctx, repo, in, applied)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := a.outbox.Emit(ctx, tx, event); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit notification request")
		}
	}
	return applied, nil
}

// closeShift re-reads the shift under lock and closes it, or hands it to an admin when GPS cannot vouch for it.
func (a *Applier) closeShift(ctx context.Context, repo *Repository, in ApplyInput, now time.Time) (enums.ShiftStatus, error) {
	shift, err := repo.FindShiftForUpdate(ctx, in.Shift.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock shift")
	}
	if shift.Status.IsTerminal() {
		return shift.Status, nil
	}

	gpsVerified := in.Result.Validations.GPSVerified
	autoComplete := in.Agency.AutomationSettings.GPSAutoCompleteShifts
	meta := map[string]any{
		"timesheet_id":     in.Timesheet.ID.String(),
		"validation_score": in.Result.Score,
	}
	updates := map[string]any{
		"timesheet_received":    true,
		"timesheet_received_at": now,
	}

	var entry types.JournalEntry
	if gpsVerified && autoComplete {
		endedAt := now
		if in.Timesheet.ClockOutTime != nil {
			endedAt = in.Timesheet.ClockOutTime.UTC()
		}
		updates["status"] = enums.ShiftStatusCompleted
		updates["admin_closure_outcome"] = enums.AdminClosureOutcomeAutoCompletedGPS
		updates["admin_closed_at"] = now
		updates["shift_ended_at"] = endedAt
		entry = types.JournalEntry{
			State:     string(enums.ShiftStatusCompleted),
			Timestamp: now,
			Method:    string(enums.JournalMethodGPSAutoComplete),
			Notes:     fmt.Sprintf("Auto-completed via GPS validation. Timesheet auto-approved (score %d/100).", in.Result.Score),
			Actor:     string(enums.ActorRoleSystem),
			Meta:      meta,
		}
	} else {
		reason := "No GPS validation"
		if gpsVerified {
			reason = "GPS auto-completion disabled in agency settings"
		}
		updates["status"] = enums.ShiftStatusAwaitingAdminClosure
		entry = types.JournalEntry{
			State:     string(enums.ShiftStatusAwaitingAdminClosure),
			Timestamp: now,
			Method:    string(enums.JournalMethodAutomated),
			Notes:     fmt.Sprintf("Timesheet approved but %s - requires manual admin closure", reason),
			Actor:     string(enums.ActorRoleSystem),
			Meta:      meta,
		}
	}
	updates["journal"] = shift.Journal.Append(entry)

	rows, err := repo.UpdateShiftUnlessTerminal(ctx, shift.ID, updates)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shift after approval")
	}
	if rows == 0 {
		return shift.Status, nil
	}
	return updates["status"].(enums.ShiftStatus), nil
}

// openReview creates a timesheet_discrepancy workflow unless one is already open for the timesheet.
func (a *Applier) openReview(ctx context.Context, tx *gorm.DB, in ApplyInput, now time.Time) (uuid.UUID, error) {
	repo := a.workflows.WithTx(tx)
	existing, err := repo.ListOpenForEntity(ctx, enums.RelatedEntityTimesheet, in.Timesheet.ID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load open reviews")
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	res := in.Result
	deadline := now.Add(a.reviewDeadline())
	codes := append(res.Issues.Codes(), res.Warnings.Codes()...)
	workflow := &models.AdminWorkflow{
		ID:              uuid.New(),
		AgencyID:        in.Timesheet.AgencyID,
		Type:            enums.WorkflowTypeTimesheetDiscrepancy,
		Priority:        reviewPriority(res),
		Status:          enums.WorkflowStatusPending,
		Title:           reviewTitle(res),
		Description:     reviewDescription(in.Timesheet.ID, res),
		RelatedEntity:   enums.RelatedEntityTimesheet,
		RelatedEntityID: in.Timesheet.ID,
		IssueCodes:      pq.StringArray(codes),
		AutoCreated:     true,
		Deadline:        &deadline,
		CreatedAt:       now,
	}
	if err := repo.Create(ctx, workflow); err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create review workflow")
	}
	return workflow.ID, nil
}

func (a *Applier) reviewDeadline() time.Duration {
	if a.policy.ReviewDeadline > 0 {
		return a.policy.ReviewDeadline
	}
	return 24 * time.Hour
}

func (a *Applier) notification(ctx context.Context, repo *Repository, in ApplyInput, applied *Applied) (outbox.DomainEvent, bool, error) {
	ts := in.Timesheet
	res := in.Result
	staffName := "Staff member"
	if in.Staff != nil {
		staffName = in.Staff.FullName()
	}
	vars := map[string]string{
		"timesheet_ref": shortRef(ts.ID),
		"staff_name":    staffName,
		"hours":         strconv.FormatFloat(ts.TotalHours, 'f', -1, 64),
		"score":         strconv.Itoa(res.Score),
	}
	if in.Shift != nil {
		vars["shift_date"] = in.Shift.StartsAt.In(a.loc).Format("Mon 02 Jan")
		vars["shift_window"] = in.Shift.Window(a.loc)
	}

	if applied.AutoApproved {
		if in.Staff == nil {
			return outbox.DomainEvent{}, false, nil
		}
		recipients := notifications.StaffRecipients(*in.Staff, enums.ChannelEmail, enums.ChannelSMS)
		event, ok := notifications.NewRequest(ts.AgencyID, enums.TemplateTimesheetApproved, recipients, vars, string(res.Decision))
		return event, ok, nil
	}

	admins, err := repo.ListAgencyAdmins(ctx, ts.AgencyID)
	if err != nil {
		return outbox.DomainEvent{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load agency admins")
	}
	vars["decision"] = string(res.Decision)
	vars["priority"] = string(reviewPriority(res))
	vars["issues"] = strings.Join(append(res.Issues.Messages(), res.Warnings.Messages()...), "; ")
	if applied.WorkflowID != nil {
		vars["workflow_ref"] = shortRef(*applied.WorkflowID)
	}
	recipients := notifications.AdminRecipients(admins, enums.ChannelEmail, enums.ChannelSlack)
	if res.Decision == enums.DecisionEscalateToAdmin {
		recipients = append(recipients, notifications.SlackAlert())
	}
	event, ok := notifications.NewRequest(ts.AgencyID, enums.TemplateTimesheetNeedsReview, recipients, vars, string(res.Decision))
	return event, ok, nil
}

func approvalNotes(res Result) string {
	if len(res.Warnings) == 0 {
		return notesAllPassed
	}
	return "Auto-approved with minor warnings: " + strings.Join(res.Warnings.Messages(), "; ")
}

func reviewPriority(res Result) enums.Severity {
	if severity := res.Issues.HighestSeverity(); severity != "" {
		return severity
	}
	if severity := res.Warnings.HighestSeverity(); severity != "" {
		return severity
	}
	return enums.SeverityMedium
}

func reviewTitle(res Result) string {
	var first string
	switch {
	case len(res.Issues) > 0:
		first = res.Issues[0].Message
	case len(res.Warnings) > 0:
		first = res.Warnings[0].Message
	default:
		return "Timesheet Discrepancy"
	}
	return "Timesheet Discrepancy - " + truncateRunes(first, 60) + "..."
}

func reviewDescription(timesheetID uuid.UUID, res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timesheet #%s requires review:\n\nIssues Detected:\n", shortRef(timesheetID))
	writeBullets(&b, res.Issues)
	b.WriteString("\n\nWarnings:\n")
	writeBullets(&b, res.Warnings)
	return b.String()
}

func writeBullets(b *strings.Builder, findings types.ValidationIssues) {
	if len(findings) == 0 {
		b.WriteString("None")
		return
	}
	for i, finding := range findings {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(finding.Message)
	}
}

func shortRef(id uuid.UUID) string {
	return id.String()[:8]
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	return string([]rune(value)[:limit])
}
