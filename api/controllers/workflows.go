package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/api/middleware"
	"github.com/angelmondragon/carestaff-backend/api/responses"
	"github.com/angelmondragon/carestaff-backend/api/validators"
	"github.com/angelmondragon/carestaff-backend/internal/workflows"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

type workflowListQuery struct {
	Status string `query:"status" validate:"omitempty,max=32"`
	Type   string `query:"type" validate:"omitempty,max=64"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Cursor string `query:"cursor" validate:"omitempty,max=256"`
}

// ListAdminWorkflows returns the review queue for the caller's agency, newest first.
func ListAdminWorkflows(svc workflows.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "workflows service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var query workflowListQuery
		if err := validators.DecodeQuery(r, &query); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := workflows.ListParams{
			Scope:  middleware.ScopeFromContext(r.Context()),
			Status: query.Status,
			Type:   query.Type,
			Limit:  query.Limit,
			Cursor: query.Cursor,
		}

		resp, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetAdminWorkflow returns one workflow visible to the caller.
func GetAdminWorkflow(svc workflows.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, "workflows service unavailable")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "workflowId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid workflow id"))
			return
		}
		workflow, err := svc.Get(r.Context(), middleware.ScopeFromContext(r.Context()), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, workflow)
	}
}
