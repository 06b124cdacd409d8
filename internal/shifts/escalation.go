package shifts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

const (
	escalationScan = "escalation"

	smartWorkflowDeadline = 30 * time.Minute
	basicWorkflowDeadline = time.Hour
)

// EscalationReport summarizes one escalation scan.
type EscalationReport struct {
	Success   bool              `json:"success"`
	Timestamp time.Time         `json:"timestamp"`
	Results   EscalationResults `json:"results"`
}

// EscalationResults counts what the scan did.
type EscalationResults struct {
	ShiftsChecked        int          `json:"shifts_checked"`
	EscalationsTriggered int          `json:"escalations_triggered"`
	BroadcastsSent       int          `json:"broadcasts_sent"`
	WorkflowsCreated     int          `json:"workflows_created"`
	Errors               []ShiftError `json:"errors"`
}

// ScanEscalations walks open urgent and critical shifts of each agency.
// With smart escalation on, the first pass broadcasts to matching staff and a later pass escalates once the
// tolerance deadline passes. Otherwise a shift open longer than the agency threshold escalates directly.
func (s *Service) ScanEscalations(ctx context.Context, scope visibility.Scope) (*EscalationReport, error) {
	agencyID, err := visibility.AgencyFilter(scope)
	if err != nil {
		return nil, err
	}
	agencies, err := s.repo.ListAgencies(ctx, agencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list agencies")
	}

	now := s.now().UTC()
	results := EscalationResults{Errors: []ShiftError{}}
	var errs error
	for _, agency := range agencies {
		shifts, err := s.repo.ListUrgentOpen(ctx, agency.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list urgent shifts")
		}
		for _, shift := range shifts {
			results.ShiftsChecked++
			var err error
			if agency.AutomationSettings.SmartEscalationEnabled {
				err = s.smartEscalate(ctx, agency, shift, now, &results)
			} else {
				err = s.basicEscalate(ctx, agency, shift, now, &results)
			}
			if errors.Is(err, errLostRace) {
				continue
			}
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("shift %s: %w", shift.ID, err))
				results.Errors = append(results.Errors, ShiftError{ShiftID: shift.ID, Error: err.Error()})
			}
		}
	}

	s.metrics.AddScanActions(escalationScan, "broadcast", results.BroadcastsSent)
	s.metrics.AddScanActions(escalationScan, "escalated", results.EscalationsTriggered)
	s.metrics.AddScanActions(escalationScan, "error", len(results.Errors))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"shifts_checked":        results.ShiftsChecked,
		"escalations_triggered": results.EscalationsTriggered,
		"broadcasts_sent":       results.BroadcastsSent,
		"workflows_created":     results.WorkflowsCreated,
		"errors":                len(results.Errors),
	})
	if errs != nil {
		s.logg.Error(logCtx, "escalation scan finished with errors", errs)
	} else {
		s.logg.Info(logCtx, "escalation scan complete")
	}
	return &EscalationReport{Success: true, Timestamp: now, Results: results}, nil
}

func (s *Service) smartEscalate(ctx context.Context, agency models.Agency, shift models.Shift, now time.Time, results *EscalationResults) error {
	tolerance := agency.AutomationSettings.EscalationTolerance()
	if shift.BroadcastSentAt == nil {
		sent, err := s.broadcastUrgent(ctx, shift, now, now.Add(tolerance))
		if err != nil {
			return err
		}
		if sent {
			results.BroadcastsSent++
		}
		return nil
	}
	if shift.EscalationDeadline == nil || now.Before(*shift.EscalationDeadline) {
		return nil
	}

	client, err := s.findClient(ctx, shift.ClientID)
	if err != nil {
		return err
	}
	minutes := int(math.Round(now.Sub(shift.CreatedAt).Minutes()))
	workflow := &models.AdminWorkflow{
		Priority: urgencyPriority(shift.Urgency),
		Title:    fmt.Sprintf("🚨 ESCALATION: %s needed at %s", roleLabel(shift.RoleRequired), clientName(client)),
		Description: fmt.Sprintf(
			"Shift has been unfilled for %d minutes despite broadcast to all available staff.\n\nDATE: %s\nTIME: %s\nPAY RATE: £%s/hr\n\nIMMEDIATE ACTION REQUIRED: Call coordinator or reach out to external network.",
			minutes, shift.StartsAt.In(s.loc).Format(time.DateOnly), shift.Window(s.loc), shift.PayRate.StringFixed(2)),
	}
	vars := s.shiftVars(shift, client)
	vars["tolerance_minutes"] = strconv.Itoa(int(tolerance.Minutes()))
	if err := s.escalateUnfilled(ctx, shift, workflow, smartWorkflowDeadline, enums.JournalMethodSmartEscalation, vars, now); err != nil {
		return err
	}
	results.WorkflowsCreated++
	results.EscalationsTriggered++
	return nil
}

func (s *Service) basicEscalate(ctx context.Context, agency models.Agency, shift models.Shift, now time.Time, results *EscalationResults) error {
	threshold := agency.AutomationSettings.EscalateUnfilledAfter()
	open := now.Sub(shift.CreatedAt)
	if open < threshold {
		return nil
	}
	exists, err := s.repo.HasOpenWorkflow(ctx, shift.ID, enums.WorkflowTypeUnfilledUrgentShift)
	if err != nil {
		return fmt.Errorf("check open workflows: %w", err)
	}
	if exists {
		return nil
	}

	client, err := s.findClient(ctx, shift.ClientID)
	if err != nil {
		return err
	}
	workflow := &models.AdminWorkflow{
		Priority: urgencyPriority(shift.Urgency),
		Title:    fmt.Sprintf("🚨 URGENT: %s needed at %s", roleLabel(shift.RoleRequired), clientName(client)),
		Description: fmt.Sprintf("Shift has been unfilled for %d minutes. Date: %s, Time: %s. IMMEDIATE ACTION REQUIRED.",
			int(math.Round(open.Minutes())), shift.StartsAt.In(s.loc).Format(time.DateOnly), shift.Window(s.loc)),
	}
	vars := s.shiftVars(shift, client)
	vars["tolerance_minutes"] = strconv.Itoa(int(threshold.Minutes()))
	if err := s.escalateUnfilled(ctx, shift, workflow, basicWorkflowDeadline, enums.JournalMethodAutomated, vars, now); err != nil {
		return err
	}
	results.WorkflowsCreated++
	results.EscalationsTriggered++
	return nil
}

// broadcastUrgent offers the shift to every active staff member holding the role and starts the tolerance clock.
// Nothing is stamped when nobody can be offered the shift, so the next scan tries again.
func (s *Service) broadcastUrgent(ctx context.Context, shift models.Shift, now, deadline time.Time) (bool, error) {
	pool, err := s.repo.ListActiveStaffByRole(ctx, shift.AgencyID, shift.RoleRequired)
	if err != nil {
		return false, fmt.Errorf("load staff: %w", err)
	}
	if len(pool) == 0 {
		return false, nil
	}
	client, err := s.findClient(ctx, shift.ClientID)
	if err != nil {
		return false, err
	}

	var recipients []payloads.Recipient
	for _, member := range pool {
		recipients = append(recipients, notifications.StaffRecipients(member, enums.ChannelSMS, enums.ChannelWhatsApp)...)
	}
	vars := s.shiftVars(shift, client)

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).MarkBroadcast(ctx, shift.ID, now, deadline)
		if err != nil {
			return fmt.Errorf("mark broadcast: %w", err)
		}
		if rows == 0 {
			return errLostRace
		}
		event, ok := notifications.NewRequest(shift.AgencyID, enums.TemplateUrgentShiftBroadcast, recipients, vars, string(payloads.EscalationStageBroadcast))
		if err := s.emitNotification(ctx, tx, event, ok); err != nil {
			return err
		}
		return s.emitEscalated(ctx, tx, shift, payloads.EscalationStageBroadcast, nil, len(recipients), now)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// escalateUnfilled moves the shift to unfilled_escalated, opens the workflow and alerts the agency admins.
func (s *Service) escalateUnfilled(ctx context.Context, shift models.Shift, workflow *models.AdminWorkflow, within time.Duration, method enums.ShiftJournalMethod, vars map[string]string, now time.Time) error {
	workflow.ID = uuid.New()
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindShiftForUpdate(ctx, shift.ID)
		if err != nil {
			return fmt.Errorf("lock shift: %w", err)
		}
		entry := types.JournalEntry{
			State:     string(enums.ShiftStatusUnfilledEscalated),
			Timestamp: now,
			Method:    string(method),
			Notes:     "Unfilled " + string(shift.Urgency) + " shift escalated to admin",
			Actor:     string(enums.ActorRoleSystem),
			Meta:      map[string]any{"workflow_id": workflow.ID.String()},
		}
		rows, err := repo.MarkUnfilledEscalated(ctx, shift.ID, map[string]any{
			"status":       enums.ShiftStatusUnfilledEscalated,
			"escalated_at": now,
			"journal":      locked.Journal.Append(entry),
		})
		if err != nil {
			return fmt.Errorf("mark escalated: %w", err)
		}
		if rows == 0 {
			return errLostRace
		}

		deadline := now.Add(within)
		workflow.AgencyID = shift.AgencyID
		workflow.Type = enums.WorkflowTypeUnfilledUrgentShift
		workflow.Status = enums.WorkflowStatusPending
		workflow.RelatedEntity = enums.RelatedEntityShift
		workflow.RelatedEntityID = shift.ID
		workflow.AutoCreated = true
		workflow.EscalationCount = 1
		workflow.Deadline = &deadline
		workflow.CreatedAt = now
		if err := s.workflows.WithTx(tx).Create(ctx, workflow); err != nil {
			return fmt.Errorf("create escalation workflow: %w", err)
		}

		admins, err := repo.ListAgencyAdmins(ctx, shift.AgencyID)
		if err != nil {
			return fmt.Errorf("load agency admins: %w", err)
		}
		vars["workflow_ref"] = shortRef(workflow.ID)
		recipients := notifications.AdminRecipients(admins, enums.ChannelSMS)
		if workflow.Priority == enums.SeverityCritical {
			recipients = append(recipients, notifications.SlackAlert())
		}
		event, ok := notifications.NewRequest(shift.AgencyID, enums.TemplateUnfilledShiftEscalated, recipients, vars, string(payloads.EscalationStageAdmin))
		if err := s.emitNotification(ctx, tx, event, ok); err != nil {
			return err
		}
		return s.emitEscalated(ctx, tx, shift, payloads.EscalationStageAdmin, &workflow.ID, len(recipients), now)
	})
}

func (s *Service) emitEscalated(ctx context.Context, tx *gorm.DB, shift models.Shift, stage payloads.ShiftEscalationStage, workflowID *uuid.UUID, recipients int, now time.Time) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventShiftEscalated,
		AggregateType: enums.AggregateShift,
		AggregateID:   shift.ID,
		Actor:         outbox.SystemActor(shift.AgencyID),
		OccurredAt:    now,
		Data: payloads.ShiftEscalatedEvent{
			ShiftID:        shift.ID,
			AgencyID:       shift.AgencyID,
			Stage:          stage,
			WorkflowID:     workflowID,
			RecipientCount: recipients,
			EscalatedAt:    now,
		},
	})
	if err != nil {
		return fmt.Errorf("emit escalation event: %w", err)
	}
	return nil
}

func (s *Service) findClient(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.repo.FindClient(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	return client, nil
}

func urgencyPriority(urgency enums.ShiftUrgency) enums.Severity {
	if urgency == enums.ShiftUrgencyCritical {
		return enums.SeverityCritical
	}
	return enums.SeverityHigh
}

func clientName(client *models.Client) string {
	if client == nil {
		return "Client"
	}
	return client.Name
}
