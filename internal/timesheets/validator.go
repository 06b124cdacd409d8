package timesheets

import (
	"fmt"
	"math"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/types"
)

// Input is everything the validator looks at. Shift may be nil when the
// timesheet lost its shift reference; scheduled hours then default to 12.
type Input struct {
	Timesheet   models.Timesheet
	Shift       *models.Shift
	OpenReviews int
}

// Validations reports which checks passed.
type Validations struct {
	GPSVerified          bool `json:"gps_verified"`
	HoursMatch           bool `json:"hours_match"`
	WithinTolerance      bool `json:"within_tolerance"`
	SignaturesPresent    bool `json:"signatures_present"`
	NoGeofenceViolations bool `json:"no_geofence_violations"`
	NoOpenReviews        bool `json:"no_open_reviews"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Score       int
	Issues      types.ValidationIssues
	Warnings    types.ValidationIssues
	Decision    enums.ValidationDecision
	Validations Validations
}

// Evaluate scores the input with DefaultPolicy.
func Evaluate(in Input) Result {
	return DefaultPolicy().Evaluate(in)
}

// Evaluate scores a timesheet and picks a decision. It has no side effects.
func (p Policy) Evaluate(in Input) Result {
	ts := in.Timesheet
	res := Result{
		Issues:   types.ValidationIssues{},
		Warnings: types.ValidationIssues{},
	}

	// GPS at clock-in.
	switch {
	case ts.GeofenceValidated != nil && *ts.GeofenceValidated:
		res.Validations.GPSVerified = true
	case ts.HasClockInLocation():
		details := map[string]any{}
		distance := "unknown"
		if ts.GeofenceDistanceMeters != nil {
			details["distance_meters"] = math.Round(*ts.GeofenceDistanceMeters)
			distance = fmt.Sprintf("%.0fm", *ts.GeofenceDistanceMeters)
		}
		res.Issues = append(res.Issues, finding(p.GeofenceViolation, CodeGeofenceViolation,
			fmt.Sprintf("Clock-in location failed geofence validation (%s from site)", distance), details))
	default:
		res.Warnings = append(res.Warnings, finding(p.GPSUnavailable, CodeGPSUnavailable,
			"GPS data not available for this timesheet", nil))
	}

	// Hours worked against scheduled.
	scheduled := models.DefaultShiftHours
	if in.Shift != nil {
		scheduled = in.Shift.ScheduledHours()
	}
	actual := ts.TotalHours
	diff := math.Abs(scheduled - actual)
	pct := diff / scheduled * 100
	hoursDetails := map[string]any{
		"scheduled_hours":  scheduled,
		"reported_hours":   actual,
		"difference_hours": roundTo(diff, 2),
		"difference_pct":   roundTo(pct, 1),
	}
	switch {
	case diff <= p.ExactTolerance.Hours():
		res.Validations.HoursMatch = true
		res.Validations.WithinTolerance = true
	case diff <= p.MinorTolerance.Hours():
		res.Validations.WithinTolerance = true
		res.Warnings = append(res.Warnings, finding(p.MinorHoursVariance, CodeMinorHoursVariance,
			fmt.Sprintf("%.2fh variance (within acceptable range)", diff), hoursDetails))
	case pct < p.CriticalVariancePercent:
		res.Issues = append(res.Issues, finding(p.HoursVariance, CodeHoursVariance,
			fmt.Sprintf("%.2fh variance (%.0f%% difference)", diff, pct), hoursDetails))
	default:
		res.Issues = append(res.Issues, finding(p.SignificantHoursMismatch, CodeSignificantHoursMismatch,
			fmt.Sprintf("CRITICAL: %.2fh variance (%.0f%% of scheduled hours). Scheduled: %gh, Worked: %gh", diff, pct, scheduled, actual),
			hoursDetails))
	}

	if actual < p.ShortShiftReportedHours && scheduled > p.ShortShiftScheduledOver {
		res.Issues = append(res.Issues, finding(p.PossibleNoShow, CodePossibleNoShow,
			fmt.Sprintf("Staff clocked in/out within %.0f minutes on a %gh shift. Possible no-show or early departure.", actual*60, scheduled),
			map[string]any{"reported_hours": actual, "scheduled_hours": scheduled}))
	}

	staffSigned := present(ts.StaffSignature)
	clientSigned := present(ts.ClientSignature)
	if staffSigned && clientSigned {
		res.Validations.SignaturesPresent = true
	} else {
		res.Issues = append(res.Issues, finding(p.MissingSignature, CodeMissingSignature,
			missingSignatureMessage(staffSigned, clientSigned), nil))
	}

	// An unchecked clock-out (nil) is not a failure.
	clockOutFailed := ts.HasClockOutLocation() && ts.LocationVerified != nil && !*ts.LocationVerified
	if clockOutFailed {
		res.Warnings = append(res.Warnings, finding(p.ClockOutGeofenceFail, CodeClockOutGeofenceFail,
			"Clock-out location outside geofence (staff may have left site before clocking out)", nil))
	}
	res.Validations.NoGeofenceViolations = !clockOutFailed && !hasCode(res.Issues, CodeGeofenceViolation)

	if in.OpenReviews > 0 {
		res.Issues = append(res.Issues, finding(p.ExistingReview, CodeExistingReview,
			fmt.Sprintf("%d pending workflow(s) related to this timesheet", in.OpenReviews),
			map[string]any{"open_reviews": in.OpenReviews}))
	} else {
		res.Validations.NoOpenReviews = true
	}

	res.Score = score(res.Issues, res.Warnings)
	res.Decision = p.decide(res)
	return res
}

func (p Policy) decide(res Result) enums.ValidationDecision {
	switch {
	case len(res.Issues) == 0 && len(res.Warnings) == 0:
		return enums.DecisionAutoApprove
	case len(res.Issues) == 0 && res.Validations.GPSVerified && res.Score >= p.NotesMinScore:
		return enums.DecisionAutoApproveWithNotes
	case res.Issues.HighestSeverity().IsBlocking():
		return enums.DecisionEscalateToAdmin
	default:
		return enums.DecisionFlagForReview
	}
}

func score(issues, warnings types.ValidationIssues) int {
	total := 100
	for _, issue := range issues {
		total -= issue.Penalty
	}
	for _, warning := range warnings {
		total -= warning.Penalty
	}
	if total < 0 {
		return 0
	}
	return total
}

func finding(rule Rule, code, message string, details map[string]any) types.ValidationIssue {
	return types.ValidationIssue{
		Type:     code,
		Severity: rule.Severity,
		Message:  message,
		Penalty:  rule.Penalty,
		Details:  details,
	}
}

func missingSignatureMessage(staffSigned, clientSigned bool) string {
	switch {
	case !staffSigned && !clientSigned:
		return "Missing staff and client signatures"
	case !staffSigned:
		return "Missing staff signature"
	default:
		return "Missing client signature"
	}
}

func hasCode(issues types.ValidationIssues, code string) bool {
	for _, issue := range issues {
		if issue.Type == code {
			return true
		}
	}
	return false
}

func present(value *string) bool {
	return value != nil && *value != ""
}

func roundTo(value float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(value*pow) / pow
}
