package visibility

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

// Scope is the caller's tenancy as carried by the access token.
type Scope struct {
	Role     enums.ActorRole
	AgencyID *uuid.UUID
}

// EnsureAgencyVisible hides rows that belong to another agency behind a not-found error.
// System callers without an agency see every agency.
func EnsureAgencyVisible(scope Scope, resourceAgencyID uuid.UUID) error {
	if !scope.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
	if scope.AgencyID == nil {
		if scope.Role == enums.ActorRoleSystem {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "agency context required")
	}
	if *scope.AgencyID != resourceAgencyID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "resource not found")
	}
	return nil
}

// AgencyFilter returns the agency a listing must be restricted to, or nil for unrestricted system callers.
func AgencyFilter(scope Scope) (*uuid.UUID, error) {
	if scope.AgencyID != nil {
		id := *scope.AgencyID
		return &id, nil
	}
	if scope.Role == enums.ActorRoleSystem {
		return nil, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeForbidden, "agency context required")
}
