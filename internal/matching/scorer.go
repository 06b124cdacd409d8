package matching

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/db/models"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// Factor ceilings. They sum to 100.
const (
	MaxReliability = 30
	MaxProximity   = 20
	MaxExperience  = 20
	MaxFreshness   = 15
	MaxRating      = 15

	DefaultLimit = 5
	MaxLimit     = 50

	lateThreshold    = 15 * time.Minute
	postcodePrefix   = 3
	cancelledByStaff = "staff"
)

// Badges attached to ranked matches.
const (
	BadgeTopMatch  = "TOP_MATCH"
	BadgeExcellent = "EXCELLENT"
	BadgeGood      = "GOOD"
	BadgeFair      = "FAIR"
)

// Breakdown is the per-factor contribution to a match score.
type Breakdown struct {
	Reliability int `json:"reliability"`
	Proximity   int `json:"proximity"`
	Experience  int `json:"experience"`
	Freshness   int `json:"freshness"`
	Rating      int `json:"rating"`
}

// Total sums the factors.
func (b Breakdown) Total() int {
	return b.Reliability + b.Proximity + b.Experience + b.Freshness + b.Rating
}

// Match is one scored candidate.
type Match struct {
	StaffID               uuid.UUID `json:"staff_id"`
	StaffName             string    `json:"staff_name"`
	Phone                 *string   `json:"phone,omitempty"`
	Email                 *string   `json:"email,omitempty"`
	TotalScore            int       `json:"total_score"`
	ScoreBreakdown        Breakdown `json:"score_breakdown"`
	Explanations          []string  `json:"explanations"`
	Badge                 string    `json:"badge,omitempty"`
	BadgeText             string    `json:"badge_text,omitempty"`
	Distance              string    `json:"distance"`
	Rating                float64   `json:"rating"`
	TotalShiftsCompleted  int       `json:"total_shifts_completed"`
	ReliabilityPercentage int       `json:"reliability_percentage"`
}

// Score rates every candidate for the shift and returns them best first.
// site may be nil when the client row is missing; proximity is then unknown.
// Ties keep the candidates' input order.
func Score(shift models.Shift, site *models.Client, candidates []models.Staff, history []models.Shift, now time.Time) []Match {
	byStaff := make(map[uuid.UUID][]models.Shift)
	for _, past := range history {
		if past.AssignedStaffID == nil {
			continue
		}
		byStaff[*past.AssignedStaffID] = append(byStaff[*past.AssignedStaffID], past)
	}

	sitePostcode := ""
	if site != nil && site.Postcode != nil {
		sitePostcode = *site.Postcode
	}

	matches := make([]Match, 0, len(candidates))
	for _, staff := range candidates {
		matches = append(matches, scoreOne(shift, sitePostcode, staff, byStaff[staff.ID], now))
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TotalScore > matches[j].TotalScore
	})
	return matches
}

// Top keeps the first limit matches and badges them. limit <= 0 means DefaultLimit.
func Top(matches []Match, limit int) []Match {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]Match, len(matches))
	copy(out, matches)
	for i := range out {
		out[i].Badge, out[i].BadgeText = badgeFor(i, out[i].TotalScore)
	}
	return out
}

func badgeFor(rank, score int) (string, string) {
	switch {
	case rank == 0:
		return BadgeTopMatch, "🏆 Top Match"
	case score >= 80:
		return BadgeExcellent, "⭐ Excellent Match"
	case score >= 60:
		return BadgeGood, "👍 Good Match"
	default:
		return BadgeFair, "✓ Fair Match"
	}
}

func scoreOne(shift models.Shift, sitePostcode string, staff models.Staff, past []models.Shift, now time.Time) Match {
	var completed, cancelled, noShows []models.Shift
	for _, s := range past {
		switch s.Status {
		case enums.ShiftStatusCompleted:
			completed = append(completed, s)
		case enums.ShiftStatusCancelled:
			if s.CancelledBy != nil && *s.CancelledBy == cancelledByStaff {
				cancelled = append(cancelled, s)
			}
		case enums.ShiftStatusNoShow:
			noShows = append(noShows, s)
		}
	}

	var breakdown Breakdown
	var explanations []string

	// Reliability.
	reliability := MaxReliability
	late := 0
	for _, s := range completed {
		if s.ShiftStartedAt != nil && s.ShiftStartedAt.After(s.StartsAt.Add(lateThreshold)) {
			late++
		}
	}
	switch {
	case late > 0:
		reliability -= 10
		explanations = append(explanations, fmt.Sprintf("⚠️ Late %d time(s)", late))
	case len(completed) > 0:
		explanations = append(explanations, "✅ Perfect punctuality")
	}
	switch {
	case len(cancelled) > 0:
		reliability -= min(10, len(cancelled)*5)
		explanations = append(explanations, fmt.Sprintf("⚠️ Cancelled %d shift(s)", len(cancelled)))
	case len(completed) > 0:
		explanations = append(explanations, "✅ Never cancelled")
	}
	if len(noShows) > 0 {
		reliability -= 10
		explanations = append(explanations, fmt.Sprintf("❌ %d no-show(s)", len(noShows)))
	} else {
		explanations = append(explanations, "✅ No no-shows")
	}
	breakdown.Reliability = max(0, reliability)

	// Proximity, approximated from the outward postcode.
	distance := "Unknown"
	staffPrefix := prefix(staff.Postcode)
	sitePrefix := prefix(&sitePostcode)
	switch {
	case staffPrefix == "" || sitePrefix == "":
		breakdown.Proximity = 5
		explanations = append(explanations, "📍 Location not verified")
	case staffPrefix == sitePrefix:
		breakdown.Proximity = MaxProximity
		distance = "<5 miles"
		explanations = append(explanations, "📍 Very close proximity")
	default:
		breakdown.Proximity = 10
		distance = "5-10 miles"
		explanations = append(explanations, "📍 Reasonable distance")
	}

	// Experience.
	atSite := 0
	for _, s := range completed {
		if s.ClientID == shift.ClientID {
			atSite++
		}
	}
	if atSite > 0 {
		breakdown.Experience += 10
		explanations = append(explanations, fmt.Sprintf("✨ Worked here %d time(s) before", atSite))
	}
	switch n := len(completed); {
	case n >= 50:
		breakdown.Experience += 10
		explanations = append(explanations, fmt.Sprintf("🏆 Highly experienced (%d+ shifts)", n))
	case n >= 20:
		breakdown.Experience += 8
		explanations = append(explanations, fmt.Sprintf("💪 Experienced (%d shifts)", n))
	case n >= 10:
		breakdown.Experience += 6
		explanations = append(explanations, fmt.Sprintf("👍 Good experience (%d shifts)", n))
	case n > 0:
		breakdown.Experience += 4
		explanations = append(explanations, fmt.Sprintf("🌱 Some experience (%d shifts)", n))
	}

	// Freshness.
	var last *time.Time
	for i := range completed {
		if last == nil || completed[i].StartsAt.After(*last) {
			last = &completed[i].StartsAt
		}
	}
	if last == nil {
		breakdown.Freshness = MaxFreshness
		explanations = append(explanations, "🆕 New staff - fresh and available")
	} else {
		days := int(math.Floor(now.Sub(*last).Hours() / 24))
		switch {
		case days >= 7:
			breakdown.Freshness = MaxFreshness
			explanations = append(explanations, fmt.Sprintf("⏰ Last worked %d days ago (well rested)", days))
		case days >= 3:
			breakdown.Freshness = 10
			explanations = append(explanations, fmt.Sprintf("⏰ Last worked %d days ago", days))
		default:
			breakdown.Freshness = 5
			explanations = append(explanations, fmt.Sprintf("⚠️ Worked recently (%d days ago)", days))
		}
	}

	// Rating.
	rating := 0.0
	if staff.Rating != nil {
		rating = *staff.Rating
	}
	switch {
	case rating >= 5.0:
		breakdown.Rating = MaxRating
		explanations = append(explanations, "⭐ Perfect 5-star rating")
	case rating >= 4.5:
		breakdown.Rating = 12
		explanations = append(explanations, fmt.Sprintf("⭐ Excellent %.1f-star rating", rating))
	case rating >= 4.0:
		breakdown.Rating = 9
		explanations = append(explanations, fmt.Sprintf("⭐ Good %.1f-star rating", rating))
	case rating > 0:
		breakdown.Rating = 5
		explanations = append(explanations, fmt.Sprintf("⭐ %.1f-star rating", rating))
	default:
		breakdown.Rating = 10
		explanations = append(explanations, "⭐ No ratings yet (new staff)")
	}

	reliabilityPct := 100
	if len(past) > 0 {
		reliabilityPct = int(math.Round(float64(len(completed)) / float64(len(past)) * 100))
	}

	return Match{
		StaffID:               staff.ID,
		StaffName:             staff.FullName(),
		Phone:                 staff.Phone,
		Email:                 staff.Email,
		TotalScore:            breakdown.Total(),
		ScoreBreakdown:        breakdown,
		Explanations:          explanations,
		Distance:              distance,
		Rating:                rating,
		TotalShiftsCompleted:  len(completed),
		ReliabilityPercentage: reliabilityPct,
	}
}

func prefix(postcode *string) string {
	if postcode == nil {
		return ""
	}
	value := strings.ToLower(strings.TrimSpace(*postcode))
	if len(value) > postcodePrefix {
		value = value[:postcodePrefix]
	}
	return value
}
