package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/auth"
	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(context.Context, string) (bool, error) {
	return s.ok && s.err == nil, s.err
}

func mintTestToken(t *testing.T, role enums.ActorRole, agencyID *uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID:   uuid.New(),
		AgencyID: agencyID,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func serveAuth(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthRejections(t *testing.T) {
	agencyID := uuid.New()
	valid := mintTestToken(t, enums.ActorRoleAgencyAdmin, &agencyID)

	cases := map[string]struct {
		header   string
		sessions stubSessionVerifier
		want     int
	}{
		"missing header":  {"", stubSessionVerifier{ok: true}, http.StatusUnauthorized},
		"empty bearer":    {"Bearer   ", stubSessionVerifier{ok: true}, http.StatusUnauthorized},
		"garbage token":   {"Bearer invalid", stubSessionVerifier{ok: true}, http.StatusUnauthorized},
		"revoked session": {"Bearer " + valid, stubSessionVerifier{ok: false}, http.StatusUnauthorized},
		"store down":      {"Bearer " + valid, stubSessionVerifier{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serveAuth(Auth(testJWT, tc.sessions, nil)(okHandler()), tc.header)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}
}

func TestAuthRejectsAgencyAdminWithoutAgency(t *testing.T) {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.AccessTokenClaims{
		UserID: uuid.New(),
		Role:   enums.ActorRoleAgencyAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Issuer:    testJWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	rec := serveAuth(Auth(testJWT, stubSessionVerifier{ok: true}, nil)(okHandler()), "Bearer "+signed)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthSeedsAgencyScope(t *testing.T) {
	agencyID := uuid.New()
	token := mintTestToken(t, enums.ActorRoleAgencyAdmin, &agencyID)

	var scope visibility.Scope
	var user string
	h := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = ScopeFromContext(r.Context())
		user = UserIDFromContext(r.Context())
	}))

	rec := serveAuth(h, "bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, user)
	assert.Equal(t, enums.ActorRoleAgencyAdmin, scope.Role)
	require.NotNil(t, scope.AgencyID)
	assert.Equal(t, agencyID, *scope.AgencyID)
}

func TestAuthAllowsSystemTokenWithoutAgency(t *testing.T) {
	token := mintTestToken(t, enums.ActorRoleSystem, nil)

	var scope visibility.Scope
	h := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = ScopeFromContext(r.Context())
	}))

	rec := serveAuth(h, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ActorRoleSystem, scope.Role)
	assert.Nil(t, scope.AgencyID)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"BEARER  abc ": "abc",
		"abc":          "abc",
		"":             "",
	} {
		got, ok := bearerToken(header)
		assert.Equal(t, want, got, header)
		assert.Equal(t, want != "", ok, header)
	}
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(nil, enums.ActorRoleAgencyAdmin, enums.ActorRoleSystem)(okHandler())

	for role, want := range map[string]int{
		string(enums.ActorRoleAgencyAdmin): http.StatusOK,
		string(enums.ActorRoleSystem):      http.StatusOK,
		"staff":                            http.StatusForbidden,
		"":                                 http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), role))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "role %q", role)
	}
}
