package analytics

import (
	"net/http"
	"time"

	"github.com/angelmondragon/carestaff-backend/api/validators"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

var timeNowUTC = func() time.Time {
	return time.Now().UTC()
}

// windowPresets are the dashboard shortcuts, keyed by their query value.
var windowPresets = map[string]time.Duration{
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

const defaultPreset = "30d"

type decisionsQuery struct {
	From     time.Time `query:"from"`
	To       time.Time `query:"to"`
	Preset   string    `query:"preset" validate:"omitempty,oneof=7d 30d 90d"`
	AgencyID string    `query:"agency_id" validate:"omitempty,uuid"`
}

// window returns the explicit from/to range when either bound is given,
// otherwise the preset ending at now.
func (q decisionsQuery) window(now time.Time) (time.Time, time.Time, error) {
	if q.From.IsZero() != q.To.IsZero() {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together")
	}
	if !q.From.IsZero() {
		if q.To.Before(q.From) {
			return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
		}
		return q.From, q.To, nil
	}

	preset := q.Preset
	if preset == "" {
		preset = defaultPreset
	}
	return now.Add(-windowPresets[preset]), now, nil
}

func parseDecisionsQuery(r *http.Request) (decisionsQuery, error) {
	var q decisionsQuery
	if err := validators.DecodeQuery(r, &q); err != nil {
		return decisionsQuery{}, err
	}
	return q, nil
}
