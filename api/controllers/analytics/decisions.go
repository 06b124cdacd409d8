package analytics

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/api/middleware"
	"github.com/angelmondragon/carestaff-backend/api/responses"
	analyticsvc "github.com/angelmondragon/carestaff-backend/internal/analytics"
	"github.com/angelmondragon/carestaff-backend/internal/analytics/types"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

// Decisions returns the validation dashboard for one agency.
// Agency admins always see their own agency; system callers pick one via agency_id.
func Decisions(svc analyticsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "analytics unavailable"))
			return
		}

		query, err := parseDecisionsQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		agencyID, err := resolveAgency(r, query.AgencyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		start, end, err := query.window(timeNowUTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := svc.Query(r.Context(), types.DecisionQueryRequest{
			AgencyID: agencyID,
			Start:    start,
			End:      end,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

func resolveAgency(r *http.Request, requested string) (string, error) {
	scope := middleware.ScopeFromContext(r.Context())
	if scope.Role != enums.ActorRoleSystem {
		if scope.AgencyID == nil {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "agency context required")
		}
		return scope.AgencyID.String(), nil
	}
	if requested == "" {
		if scope.AgencyID != nil {
			return scope.AgencyID.String(), nil
		}
		return "", pkgerrors.New(pkgerrors.CodeValidation, "agency_id is required for system callers")
	}
	id, err := uuid.Parse(requested)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "agency_id must be a uuid")
	}
	return id.String(), nil
}
