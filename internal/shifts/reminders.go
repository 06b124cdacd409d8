package shifts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/carestaff-backend/internal/notifications"
	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// ReminderWindow names the pre-shift reminder being sent.
type ReminderWindow string

const (
	Reminder24h ReminderWindow = "24h"
	Reminder2h  ReminderWindow = "2h"

	reminderScan = "shift_reminders"
)

// Window bounds measured back from shift start, both ends inclusive.
var (
	window24hFrom = 23 * time.Hour
	window24hTo   = 25 * time.Hour
	window2hFrom  = 90 * time.Minute
	window2hTo    = 150 * time.Minute
)

// ReminderReport summarizes one reminder pass.
type ReminderReport struct {
	Success bool            `json:"success"`
	Results ReminderResults `json:"results"`
}

// ReminderResults counts queued reminders. A reminder counts once its notification is queued.
type ReminderResults struct {
	Checked            int          `json:"checked"`
	Reminders24hSent   int          `json:"reminders_24h_sent"`
	Reminders2hSent    int          `json:"reminders_2h_sent"`
	SkippedAlreadySent int          `json:"skipped_already_sent"`
	Errors             []ShiftError `json:"errors"`
	Timestamp          time.Time    `json:"timestamp"`
}

// SendReminders queues the 24h and 2h pre-shift reminders for staffed shifts.
// Each flag is set atomically before the message is queued so overlapping runs remind once.
func (s *Service) SendReminders(ctx context.Context, scope visibility.Scope) (*ReminderReport, error) {
	agencyID, err := visibility.AgencyFilter(scope)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	shifts, err := s.repo.ListUpcomingStaffed(ctx, agencyID, now, now.Add(window24hTo))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list upcoming shifts")
	}

	results := ReminderResults{Errors: []ShiftError{}, Timestamp: now}
	var errs error
	for _, shift := range shifts {
		results.Checked++
		window, due := reminderWindow(shift.StartsAt.Sub(now))
		if !due {
			continue
		}
		if reminderAlreadySent(shift, window) {
			results.SkippedAlreadySent++
			continue
		}
		queued, err := s.remindShift(ctx, shift, window, now)
		if errors.Is(err, errLostRace) {
			results.SkippedAlreadySent++
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shift %s: %w", shift.ID, err))
			results.Errors = append(results.Errors, ShiftError{ShiftID: shift.ID, Error: err.Error()})
			continue
		}
		if !queued {
			continue
		}
		if window == Reminder24h {
			results.Reminders24hSent++
		} else {
			results.Reminders2hSent++
		}
	}

	s.metrics.AddScanActions(reminderScan, "reminder_24h", results.Reminders24hSent)
	s.metrics.AddScanActions(reminderScan, "reminder_2h", results.Reminders2hSent)
	s.metrics.AddScanActions(reminderScan, "error", len(results.Errors))

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"checked":       results.Checked,
		"reminders_24h": results.Reminders24hSent,
		"reminders_2h":  results.Reminders2hSent,
		"skipped":       results.SkippedAlreadySent,
		"errors":        len(results.Errors),
	})
	if errs != nil {
		s.logg.Error(logCtx, "shift reminders finished with errors", errs)
	} else {
		s.logg.Info(logCtx, "shift reminders complete")
	}
	return &ReminderReport{Success: true, Results: results}, nil
}

func reminderWindow(untilStart time.Duration) (ReminderWindow, bool) {
	switch {
	case untilStart >= window24hFrom && untilStart <= window24hTo:
		return Reminder24h, true
	case untilStart >= window2hFrom && untilStart <= window2hTo:
		return Reminder2h, true
	default:
		return "", false
	}
}

func reminderAlreadySent(shift models.Shift, window ReminderWindow) bool {
	if window == Reminder24h {
		return shift.Reminder24hSent
	}
	return shift.Reminder2hSent
}

// remindShift flags the window and queues the reminder. The flag stays set when the staff member has no phone.
func (s *Service) remindShift(ctx context.Context, shift models.Shift, window ReminderWindow, now time.Time) (bool, error) {
	staff, client, err := s.loadContext(ctx, s.repo, shift)
	if err != nil {
		return false, err
	}
	agencyName := "Your Agency"
	if agency, err := s.repo.FindAgency(ctx, shift.AgencyID); err == nil {
		agencyName = agency.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("load agency: %w", err)
	}

	var queued bool
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.repo.WithTx(tx).MarkStartReminder(ctx, shift.ID, window, now)
		if err != nil {
			return fmt.Errorf("mark %s reminder: %w", window, err)
		}
		if rows == 0 {
			return errLostRace
		}
		if staff == nil || client == nil {
			return nil
		}

		vars := s.shiftVars(shift, client)
		vars["agency_name"] = agencyName
		vars["staff_name"] = staff.FullName()
		vars["gps_consent"] = strconv.FormatBool(staff.GPSConsent)
		if shift.WorkLocation != nil {
			vars["work_location"] = *shift.WorkLocation
		}
		template := enums.TemplateShiftReminder24h
		channels := []enums.NotificationChannel{enums.ChannelSMS, enums.ChannelWhatsApp, enums.ChannelEmail}
		if window == Reminder2h {
			template = enums.TemplateShiftReminder2h
			channels = channels[:2]
		}
		event, ok := notifications.NewRequest(shift.AgencyID, template, notifications.StaffRecipients(*staff, channels...), vars, "shift_reminder_"+string(window))
		queued = ok
		return s.emitNotification(ctx, tx, event, ok)
	})
	return queued, err
}
