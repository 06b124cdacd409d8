package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "github.com/angelmondragon/carestaff-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// Request asks for the best candidates for one shift.
type Request struct {
	ShiftID uuid.UUID
	Limit   int
	Scope   visibility.Scope
}

// AlgorithmInfo documents the factor weights alongside a result.
type AlgorithmInfo struct {
	ScoringSystem            Breakdown `json:"scoring_system"`
	TotalCandidatesEvaluated int       `json:"total_candidates_evaluated"`
}

// Response is returned by the shift-matcher engine.
type Response struct {
	Success       bool           `json:"success"`
	ShiftID       uuid.UUID      `json:"shift_id"`
	Skipped       bool           `json:"skipped,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Message       string         `json:"message,omitempty"`
	Matches       []Match        `json:"matches"`
	AlgorithmInfo *AlgorithmInfo `json:"algorithm_info,omitempty"`
}

// Service ranks staff for shifts.
type Service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the matcher.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("matching repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg, now: time.Now}, nil
}

// Match scores every eligible staff member and returns the top candidates. It writes nothing.
func (s *Service) Match(ctx context.Context, req Request) (*Response, error) {
	if req.ShiftID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift_id required")
	}
	shift, err := s.repo.FindShift(ctx, req.ShiftID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Shift not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shift")
	}
	if err := visibility.EnsureAgencyVisible(req.Scope, shift.AgencyID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Shift not found")
		}
		return nil, err
	}

	agency, err := s.repo.FindAgency(ctx, shift.AgencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load agency")
	}
	if !agency.AutomationSettings.AIShiftMatcher {
		return &Response{
			Success: true,
			ShiftID: shift.ID,
			Skipped: true,
			Reason:  "Feature disabled in settings",
			Matches: []Match{},
		}, nil
	}

	client, err := s.repo.FindClient(ctx, shift.ClientID)
	if err != nil {
		if !dbpkg.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load client")
		}
		client = nil
	}

	candidates, err := s.repo.ListCandidates(ctx, shift.AgencyID, shift.RoleRequired)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list candidates")
	}
	if len(candidates) == 0 {
		return &Response{
			Success: true,
			ShiftID: shift.ID,
			Matches: []Match{},
			Message: "No active staff found with required role",
		}, nil
	}

	history, err := s.repo.ListHistory(ctx, shift.AgencyID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shift history")
	}

	scored := Score(*shift, client, candidates, history, s.now().UTC())
	top := Top(scored, req.Limit)

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"shift_id":   shift.ID.String(),
		"candidates": len(scored),
		"returned":   len(top),
	}), "shift matched")

	return &Response{
		Success: true,
		ShiftID: shift.ID,
		Matches: top,
		AlgorithmInfo: &AlgorithmInfo{
			ScoringSystem: Breakdown{
				Reliability: MaxReliability,
				Proximity:   MaxProximity,
				Experience:  MaxExperience,
				Freshness:   MaxFreshness,
				Rating:      MaxRating,
			},
			TotalCandidatesEvaluated: len(scored),
		},
	}, nil
}
