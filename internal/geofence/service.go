package geofence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	dbpkg "github.com/angelmondragon/carestaff-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/geo"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// DefaultRadiusMeters applies when a client has no radius configured.
const DefaultRadiusMeters = 100

const (
	ReasonDisabled      = "geofence_disabled"
	ReasonNoCoordinates = "no_client_coordinates"
	ReasonWithin        = "within_geofence"
	ReasonOutside       = "outside_geofence"
)

// Location is a staff GPS fix.
type Location struct {
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy,omitempty" validate:"omitempty,gte=0"`
}

// Request is one geofence check.
type Request struct {
	StaffLocation *Location
	ClientID      uuid.UUID
	TimesheetID   *uuid.UUID
	Scope         visibility.Scope
}

// Response reports whether the staff location is inside the client site.
type Response struct {
	Success           bool     `json:"success"`
	Validated         bool     `json:"validated"`
	Reason            string   `json:"reason"`
	Message           string   `json:"message"`
	Warning           string   `json:"warning,omitempty"`
	DistanceMeters    *int     `json:"distance_meters,omitempty"`
	RadiusMeters      *int     `json:"geofence_radius_meters,omitempty"`
	ClientName        string   `json:"client_name,omitempty"`
	GPSAccuracy       *float64 `json:"gps_accuracy"`
	RecommendedAction *string  `json:"recommended_action"`
}

// Service validates staff positions against client geofences.
type Service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the geofence validator.
func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("geofence repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Validate computes the distance to the client site and optionally records the result on a timesheet.
// Disabled geofences and sites without coordinates pass by policy.
func (s *Service) Validate(ctx context.Context, req Request) (*Response, error) {
	if req.StaffLocation == nil || req.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff_location {latitude, longitude} and client_id required")
	}

	client, err := s.repo.FindClient(ctx, req.ClientID)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Client not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load client")
	}
	if err := visibility.EnsureAgencyVisible(req.Scope, client.AgencyID); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Client not found")
		}
		return nil, err
	}
	if req.TimesheetID != nil {
		ts, err := s.repo.FindTimesheet(ctx, *req.TimesheetID)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Timesheet not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load timesheet")
		}
		if ts.AgencyID != client.AgencyID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "timesheet belongs to a different agency than the client")
		}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"client_id":   client.ID.String(),
		"client_name": client.Name,
	})

	if !client.GeofenceEnabled {
		if err := s.record(ctx, req.TimesheetID, map[string]any{
			"geofence_validated":        true,
			"geofence_distance_meters":  nil,
			"geofence_violation_reason": "Geofencing disabled for this client",
		}); err != nil {
			return nil, err
		}
		return &Response{
			Success:   true,
			Validated: true,
			Reason:    ReasonDisabled,
			Message:   "Geofencing is disabled for this client",
		}, nil
	}

	if !client.HasCoordinates() {
		if err := s.record(ctx, req.TimesheetID, map[string]any{
			"geofence_validated":        true,
			"geofence_distance_meters":  nil,
			"geofence_violation_reason": "Client location not configured",
		}); err != nil {
			return nil, err
		}
		return &Response{
			Success:   true,
			Validated: true,
			Reason:    ReasonNoCoordinates,
			Message:   "Client GPS coordinates not configured - validation skipped",
			Warning:   "Please set client coordinates in Client settings",
		}, nil
	}

	radius := client.GeofenceRadiusMeters
	if radius <= 0 {
		radius = DefaultRadiusMeters
	}
	staff := geo.Point{Latitude: req.StaffLocation.Latitude, Longitude: req.StaffLocation.Longitude}
	site := geo.Point{Latitude: *client.Latitude, Longitude: *client.Longitude}
	within, distance := geo.Within(staff, site, radius)

	updates := map[string]any{
		"geofence_validated":       within,
		"geofence_distance_meters": float64(distance),
		"location_verified":        within,
	}
	if !within {
		updates["geofence_violation_reason"] = fmt.Sprintf("Staff was %dm away (limit: %dm)", distance, radius)
	}
	if err := s.record(ctx, req.TimesheetID, updates); err != nil {
		return nil, err
	}

	resp := &Response{
		Success:        true,
		Validated:      within,
		DistanceMeters: &distance,
		RadiusMeters:   &radius,
		ClientName:     client.Name,
		GPSAccuracy:    req.StaffLocation.Accuracy,
		Reason:         ReasonWithin,
		Message:        fmt.Sprintf("✅ Verified: %dm from %s", distance, client.Name),
	}
	if !within {
		action := "Contact staff to confirm location. If legitimate, admin can override in timesheet approval."
		resp.Reason = ReasonOutside
		resp.Message = fmt.Sprintf("❌ Too far: %dm from %s (limit: %dm)", distance, client.Name, radius)
		resp.RecommendedAction = &action
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"distance_meters": distance,
		"radius_meters":   radius,
		"validated":       within,
	}), "geofence checked")
	return resp, nil
}

func (s *Service) record(ctx context.Context, timesheetID *uuid.UUID, updates map[string]any) error {
	if timesheetID == nil {
		return nil
	}
	if err := s.repo.RecordResult(ctx, *timesheetID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record geofence result")
	}
	return nil
}
