package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/api/middleware"
	"github.com/angelmondragon/carestaff-backend/api/responses"
	"github.com/angelmondragon/carestaff-backend/api/validators"
	"github.com/angelmondragon/carestaff-backend/internal/geofence"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

type GeofenceValidator interface {
	Validate(ctx context.Context, req geofence.Request) (*geofence.Response, error)
}

type geofenceRequest struct {
	StaffLocation *geofence.Location `json:"staff_location" validate:"required"`
	ClientID      string             `json:"client_id" validate:"required,uuid"`
	TimesheetID   *string            `json:"timesheet_id,omitempty" validate:"omitempty,uuid"`
}

// GeofenceValidate checks a staff GPS fix against the client site.
func GeofenceValidate(svc GeofenceValidator, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "geofence validator unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body geofenceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		clientID, err := uuid.Parse(body.ClientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid client_id"))
			return
		}
		req := geofence.Request{
			StaffLocation: body.StaffLocation,
			ClientID:      clientID,
			Scope:         middleware.ScopeFromContext(r.Context()),
		}
		if body.TimesheetID != nil {
			id, err := uuid.Parse(*body.TimesheetID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid timesheet_id"))
				return
			}
			req.TimesheetID = &id
		}

		resp, err := svc.Validate(r.Context(), req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
