package shifts

import (
	"context"
	"errors"
	"fmt"
	"strings"
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
	ActionReminderSent          = "reminder_sent"
	ActionEscalatedAndBroadcast = "escalated_and_broadcast"

	noShowScan              = "no_show"
	noShowCancellationNotes = "Staff no-show - failed to clock in"
	noShowWorkflowDeadline  = time.Hour
)

// NoShowReport summarizes one no-show scan.
type NoShowReport struct {
	Success  bool           `json:"success"`
	Checked  int            `json:"checked"`
	NoShows  []NoShowAction `json:"noShows"`
	Reminded []Reminded     `json:"reminded"`
	Errors   []ShiftError   `json:"errors"`
}

// NoShowAction is a shift escalated to a staff_no_show workflow.
type NoShowAction struct {
	ShiftID    uuid.UUID `json:"shift_id"`
	StaffName  string    `json:"staff_name"`
	ClientName string    `json:"client_name,omitempty"`
	WorkflowID uuid.UUID `json:"workflow_id"`
	Action     string    `json:"action"`
}

// Reminded is a staff member nudged to clock in.
type Reminded struct {
	ShiftID   uuid.UUID `json:"shift_id"`
	StaffName string    `json:"staff_name"`
	Action    string    `json:"action"`
}

// ScanNoShows checks every staffed shift past its grace period for a clock-in.
// The first pass reminds the staff member; once the escalation threshold passes the shift becomes a no-show.
func (s *Service) ScanNoShows(ctx context.Context, scope visibility.Scope) (*NoShowReport, error) {
	agencyID, err := visibility.AgencyFilter(scope)
	if err != nil {
		return nil, err
	}
	agencies, err := s.repo.ListAgencies(ctx, agencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list agencies")
	}

	now := s.now().UTC()
	report := &NoShowReport{
		Success:  true,
		NoShows:  []NoShowAction{},
		Reminded: []Reminded{},
		Errors:   []ShiftError{},
	}
	var errs error
	for _, agency := range agencies {
		settings := agency.AutomationSettings
		shifts, err := s.repo.ListStartedStaffed(ctx, agency.ID, now.Add(-settings.NoShowGrace()))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list started shifts")
		}
		report.Checked += len(shifts)
		for _, shift := range shifts {
			if err := s.checkNoShow(ctx, settings, shift, now, report); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("shift %s: %w", shift.ID, err))
				report.Errors = append(report.Errors, ShiftError{ShiftID: shift.ID, Error: err.Error()})
			}
		}
	}

	s.metrics.AddScanActions(noShowScan, "reminded", len(report.Reminded))
	s.metrics.AddScanActions(noShowScan, "escalated", len(report.NoShows))
	s.metrics.AddScanActions(noShowScan, "error", len(report.Errors))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checked":  report.Checked,
		"no_shows": len(report.NoShows),
		"reminded": len(report.Reminded),
		"errors":   len(report.Errors),
	})
	if errs != nil {
		s.logg.Error(logCtx, "no-show scan finished with errors", errs)
	} else {
		s.logg.Info(logCtx, "no-show scan complete")
	}
	return report, nil
}

func (s *Service) checkNoShow(ctx context.Context, settings types.AutomationSettings, shift models.Shift, now time.Time, report *NoShowReport) error {
	clockedIn, err := s.repo.HasClockIn(ctx, shift.ID)
	if err != nil {
		return fmt.Errorf("check clock-in: %w", err)
	}
	if clockedIn {
		return nil
	}
	staff, client, err := s.loadContext(ctx, s.repo, shift)
	if err != nil {
		return err
	}

	if !shift.ReminderSent {
		queued, err := s.remindNoShow(ctx, shift, staff, client, now)
		switch {
		case errors.Is(err, errLostRace):
		case err != nil:
			return err
		case queued:
			report.Reminded = append(report.Reminded, Reminded{
				ShiftID:   shift.ID,
				StaffName: staffName(staff),
				Action:    ActionReminderSent,
			})
		}
	}

	if !s.noShowDue(settings, shift, now) {
		return nil
	}
	workflowID, err := s.escalateNoShow(ctx, shift, staff, client, now)
	if errors.Is(err, errLostRace) {
		return nil
	}
	if err != nil {
		return err
	}
	action := NoShowAction{
		ShiftID:    shift.ID,
		StaffName:  staffName(staff),
		WorkflowID: workflowID,
		Action:     ActionEscalatedAndBroadcast,
	}
	if client != nil {
		action.ClientName = client.Name
	}
	report.NoShows = append(report.NoShows, action)
	return nil
}

// noShowDue is true once the escalation threshold has passed or the shift started on an earlier day.
func (s *Service) noShowDue(settings types.AutomationSettings, shift models.Shift, now time.Time) bool {
	if now.Sub(shift.StartsAt) >= settings.NoShowEscalateAfter() {
		return true
	}
	startDay := shift.StartsAt.In(s.loc).Format(time.DateOnly)
	today := now.In(s.loc).Format(time.DateOnly)
	return startDay < today
}

func (s *Service) remindNoShow(ctx context.Context, shift models.Shift, staff *models.Staff, client *models.Client, now time.Time) (bool, error) {
	var queued bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).MarkNoShowReminder(ctx, shift.ID, now)
		if err != nil {
			return fmt.Errorf("mark reminder: %w", err)
		}
		if rows == 0 {
			return errLostRace
		}
		if staff == nil {
			return nil
		}
		vars := s.shiftVars(shift, client)
		vars["staff_name"] = staff.FullName()
		recipients := notifications.StaffRecipients(*staff, enums.ChannelSMS)
		event, ok := notifications.NewRequest(shift.AgencyID, enums.TemplateNoShowReminder, recipients, vars, ActionReminderSent)
		queued = ok
		return s.emitNotification(ctx, tx, event, ok)
	})
	return queued, err
}

// escalateNoShow moves the shift to no_show and opens a critical workflow, alerting admins and replacement staff.
func (s *Service) escalateNoShow(ctx context.Context, shift models.Shift, staff *models.Staff, client *models.Client, now time.Time) (uuid.UUID, error) {
	workflowID := uuid.New()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindShiftForUpdate(ctx, shift.ID)
		if err != nil {
			return fmt.Errorf("lock shift: %w", err)
		}
		minutes := int(now.Sub(locked.StartsAt).Minutes())
		meta := map[string]any{"workflow_id": workflowID.String()}
		if locked.AssignedStaffID != nil {
			meta["staff_id"] = locked.AssignedStaffID.String()
		}
		entry := types.JournalEntry{
			State:     string(enums.ShiftStatusNoShow),
			Timestamp: now,
			Method:    string(enums.JournalMethodNoShowDetection),
			Notes:     fmt.Sprintf("No clock-in %d minutes after shift start. Escalated to admin.", minutes),
			Actor:     string(enums.ActorRoleSystem),
			Meta:      meta,
		}
		rows, err := repo.MarkNoShow(ctx, shift.ID, map[string]any{
			"status":              enums.ShiftStatusNoShow,
			"cancellation_reason": noShowCancellationNotes,
			"cancelled_by":        string(enums.ActorRoleSystem),
			"cancelled_at":        now,
			"journal":             locked.Journal.Append(entry),
		})
		if err != nil {
			return fmt.Errorf("mark no-show: %w", err)
		}
		if rows == 0 {
			return errLostRace
		}

		deadline := now.Add(noShowWorkflowDeadline)
		workflow := &models.AdminWorkflow{
			ID:              workflowID,
			AgencyID:        shift.AgencyID,
			Type:            enums.WorkflowTypeStaffNoShow,
			Priority:        enums.SeverityCritical,
			Status:          enums.WorkflowStatusPending,
			Title:           "CRITICAL: Staff No-Show - " + staffName(staff),
			Description:     s.noShowDescription(*locked, staff, client),
			RelatedEntity:   enums.RelatedEntityShift,
			RelatedEntityID: shift.ID,
			AutoCreated:     true,
			Deadline:        &deadline,
			CreatedAt:       now,
		}
		if err := s.workflows.WithTx(tx).Create(ctx, workflow); err != nil {
			return fmt.Errorf("create no-show workflow: %w", err)
		}

		vars := s.shiftVars(*locked, client)
		vars["staff_name"] = staffName(staff)
		vars["workflow_ref"] = shortRef(workflowID)
		if staff != nil && staff.Phone != nil {
			vars["staff_phone"] = *staff.Phone
		}

		admins, err := repo.ListAgencyAdmins(ctx, shift.AgencyID)
		if err != nil {
			return fmt.Errorf("load agency admins: %w", err)
		}
		alertTo := notifications.AdminRecipients(admins, enums.ChannelSMS, enums.ChannelEmail, enums.ChannelSlack)
		alertTo = append(alertTo, notifications.SlackAlert())
		event, ok := notifications.NewRequest(shift.AgencyID, enums.TemplateNoShowAdminAlert, alertTo, vars, "staff_no_show")
		if err := s.emitNotification(ctx, tx, event, ok); err != nil {
			return err
		}

		pool, err := repo.ListActiveStaffByRole(ctx, shift.AgencyID, shift.RoleRequired)
		if err != nil {
			return fmt.Errorf("load replacement staff: %w", err)
		}
		var broadcastTo []payloads.Recipient
		for _, candidate := range pool {
			if locked.AssignedStaffID != nil && candidate.ID == *locked.AssignedStaffID {
				continue
			}
			broadcastTo = append(broadcastTo, notifications.StaffRecipients(candidate, enums.ChannelSMS, enums.ChannelWhatsApp)...)
		}
		event, ok = notifications.NewRequest(shift.AgencyID, enums.TemplateReplacementBroadcast, broadcastTo, vars, "no_show_replacement")
		if err := s.emitNotification(ctx, tx, event, ok); err != nil {
			return err
		}

		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShiftNoShow,
			AggregateType: enums.AggregateShift,
			AggregateID:   shift.ID,
			Actor:         outbox.SystemActor(shift.AgencyID),
			OccurredAt:    now,
			Data: payloads.ShiftNoShowEvent{
				ShiftID:    shift.ID,
				AgencyID:   shift.AgencyID,
				StaffID:    locked.AssignedStaffID,
				WorkflowID: workflowID,
				DetectedAt: now,
			},
		}); err != nil {
			return fmt.Errorf("emit no-show event: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return workflowID, nil
}

func (s *Service) noShowDescription(shift models.Shift, staff *models.Staff, client *models.Client) string {
	site := "Client"
	if client != nil {
		site = client.Name
	}
	assigned := "Not assigned"
	if staff != nil {
		phone := ""
		if staff.Phone != nil {
			phone = *staff.Phone
		}
		assigned = fmt.Sprintf("%s (%s)", staff.FullName(), phone)
	}
	start := shift.StartsAt.In(s.loc)
	var b strings.Builder
	fmt.Fprintf(&b, "Staff member failed to clock in for shift at %s.\n\n", site)
	b.WriteString("Shift Details:\n")
	fmt.Fprintf(&b, "- Date: %s\n", start.Format(time.DateOnly))
	fmt.Fprintf(&b, "- Time: %s - %s\n", start.Format("15:04"), shift.EndsAt.In(s.loc).Format("15:04"))
	fmt.Fprintf(&b, "- Role: %s\n", shift.RoleRequired)
	fmt.Fprintf(&b, "- Staff: %s\n\n", assigned)
	b.WriteString("Actions Required:\n")
	b.WriteString("1. Contact staff member to confirm status\n")
	b.WriteString("2. Contact client to inform them\n")
	b.WriteString("3. Find replacement staff immediately\n")
	b.WriteString("4. Update shift status once resolved")
	return b.String()
}
