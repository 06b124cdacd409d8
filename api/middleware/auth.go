package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/carestaff-backend/api/responses"
	pkgAuth "github.com/angelmondragon/carestaff-backend/pkg/auth"
	"github.com/angelmondragon/carestaff-backend/pkg/auth/session"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
)

// Auth accepts "Authorization: Bearer <jwt>" whose jti is still registered
// in the session store, then seeds the caller's user, role and agency into
// the request and logging contexts. Agency admins must carry an agency.
func Auth(cfg config.JWTConfig, sessions session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reject := func(err error) {
				if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="carestaff"`)
				}
				responses.WriteError(ctx, logg, w, err)
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				reject(pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			switch {
			case claims.ID == "":
				reject(pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no session id"))
				return
			case claims.Role == enums.ActorRoleAgencyAdmin && claims.AgencyID == nil:
				reject(pkgerrors.New(pkgerrors.CodeForbidden, "agency admin token without agency"))
				return
			}

			if sessions != nil {
				live, err := sessions.HasSession(ctx, claims.ID)
				if err != nil {
					reject(pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !live {
					reject(pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked or expired"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(authenticated(ctx, logg, claims)))
		})
	}
}

// bearerToken accepts the Bearer scheme in any case, or a bare token.
func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if scheme, rest, found := strings.Cut(header, " "); found && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	}
	return header, header != ""
}

func authenticated(ctx context.Context, logg *logger.Logger, claims *pkgAuth.AccessTokenClaims) context.Context {
	caller := Caller{UserID: claims.UserID.String(), Role: string(claims.Role)}
	if claims.AgencyID != nil {
		caller.AgencyID = claims.AgencyID.String()
	}
	ctx = WithCaller(ctx, caller)
	if logg == nil {
		return ctx
	}
	fields := map[string]any{"user_id": caller.UserID, "actor_role": caller.Role}
	if caller.AgencyID != "" {
		fields["agency_id"] = caller.AgencyID
	}
	return logg.WithFields(ctx, fields)
}
