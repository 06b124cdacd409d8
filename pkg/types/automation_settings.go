package types

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AutomationSettings is the per-agency switchboard stored on agencies.automation_settings.
// Keys missing from the stored document fall back to DefaultAutomationSettings.
type AutomationSettings struct {
	GPSAutoCompleteShifts              bool `json:"gps_auto_complete_shifts"`
	AutoTimesheetApproval              bool `json:"auto_timesheet_approval"`
	AIShiftMatcher                     bool `json:"ai_shift_matcher"`
	SmartEscalationEnabled             bool `json:"smart_escalation_enabled"`
	EscalationToleranceMinutes         int  `json:"escalation_tolerance_minutes"`
	EscalateUnfilledShiftsAfterMinutes int  `json:"escalate_unfilled_shifts_after_minutes"`
	NoShowGraceMinutes                 int  `json:"no_show_grace_minutes"`
	NoShowEscalateAfterMinutes         int  `json:"no_show_escalate_after_minutes"`
}

func DefaultAutomationSettings() AutomationSettings {
	return AutomationSettings{
		GPSAutoCompleteShifts:              true,
		AutoTimesheetApproval:              true,
		AIShiftMatcher:                     true,
		SmartEscalationEnabled:             false,
		EscalationToleranceMinutes:         15,
		EscalateUnfilledShiftsAfterMinutes: 15,
		NoShowGraceMinutes:                 15,
		NoShowEscalateAfterMinutes:         30,
	}
}

func (s *AutomationSettings) UnmarshalJSON(data []byte) error {
	type alias AutomationSettings
	decoded := alias(DefaultAutomationSettings())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = AutomationSettings(decoded)
	return nil
}

func (s AutomationSettings) EscalationTolerance() time.Duration {
	return minutesOr(s.EscalationToleranceMinutes, 15)
}

func (s AutomationSettings) EscalateUnfilledAfter() time.Duration {
	return minutesOr(s.EscalateUnfilledShiftsAfterMinutes, 15)
}

func (s AutomationSettings) NoShowGrace() time.Duration {
	return minutesOr(s.NoShowGraceMinutes, 15)
}

func (s AutomationSettings) NoShowEscalateAfter() time.Duration {
	return minutesOr(s.NoShowEscalateAfterMinutes, 30)
}

func minutesOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Minute
}

// Value marshals the settings into JSON for Postgres.
func (s AutomationSettings) Value() (driver.Value, error) {
	return encodeJSON(s)
}

// Scan decodes JSONB, applying defaults for absent keys.
func (s *AutomationSettings) Scan(value any) error {
	*s = DefaultAutomationSettings()
	return decodeJSON("automation_settings", value, s)
}
