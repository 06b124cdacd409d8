package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

// Caller is who Auth decided is making the request. Fields stay as the token
// carried them; ScopeFromContext does the parsing.
type Caller struct {
	UserID   string
	Role     string
	AgencyID string
}

type callerKey struct{}

// CallerFromContext returns the caller, or the zero Caller outside an authenticated request.
func CallerFromContext(ctx context.Context) Caller {
	if ctx == nil {
		return Caller{}
	}
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

// WithCaller replaces the caller on ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, c)
}

func UserIDFromContext(ctx context.Context) string   { return CallerFromContext(ctx).UserID }
func RoleFromContext(ctx context.Context) string     { return CallerFromContext(ctx).Role }
func AgencyIDFromContext(ctx context.Context) string { return CallerFromContext(ctx).AgencyID }

func WithUserID(ctx context.Context, userID string) context.Context {
	c := CallerFromContext(ctx)
	c.UserID = userID
	return WithCaller(ctx, c)
}

func WithRole(ctx context.Context, role string) context.Context {
	c := CallerFromContext(ctx)
	c.Role = role
	return WithCaller(ctx, c)
}

func WithAgencyID(ctx context.Context, agencyID string) context.Context {
	c := CallerFromContext(ctx)
	c.AgencyID = agencyID
	return WithCaller(ctx, c)
}

// ScopeFromContext turns the caller into the tenancy filter the engines apply.
// An agency id that does not parse is dropped, which leaves an agency_admin
// with no agency and therefore no rows.
func ScopeFromContext(ctx context.Context) visibility.Scope {
	c := CallerFromContext(ctx)
	scope := visibility.Scope{Role: enums.ActorRole(c.Role)}
	if id, err := uuid.Parse(c.AgencyID); err == nil {
		scope.AgencyID = &id
	}
	return scope
}
