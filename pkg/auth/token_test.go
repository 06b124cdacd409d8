package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "carestaff", ExpirationMinutes: 30}

func TestIssueAndParseAgencyToken(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	userID, agencyID := uuid.New(), uuid.New()

	issued, err := Issue(testCfg, now, AccessTokenPayload{UserID: userID, AgencyID: &agencyID, Role: enums.ActorRoleAgencyAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)
	assert.Equal(t, now.Add(30*time.Minute), issued.ExpiresAt)

	claims, err := ParseAccessToken(testCfg, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	require.NotNil(t, claims.AgencyID)
	assert.Equal(t, agencyID, *claims.AgencyID)
	assert.Equal(t, enums.ActorRoleAgencyAdmin, claims.Role)
	assert.Equal(t, "carestaff", claims.Issuer)
	assert.Equal(t, issued.ID, claims.ID)
	assert.True(t, claims.ExpiresAt.Time.Equal(issued.ExpiresAt))
}

func TestIssueSystemTokenWithExplicitIDAndTTL(t *testing.T) {
	now := time.Now().UTC()
	issued, err := Issue(testCfg, now, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.ActorRoleSystem,
		JTI:    " cron-worker ",
		TTL:    720 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "cron-worker", issued.ID)
	assert.Equal(t, now.Add(720*time.Hour), issued.ExpiresAt)

	claims, err := ParseAccessToken(testCfg, issued.Token)
	require.NoError(t, err)
	assert.Nil(t, claims.AgencyID)
}

func TestIssueRejects(t *testing.T) {
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
		want    string
	}{
		"admin without agency": {testCfg, AccessTokenPayload{Role: enums.ActorRoleAgencyAdmin}, "require an agency id"},
		"unknown role":         {testCfg, AccessTokenPayload{Role: "nurse"}, "invalid actor role"},
		"no secret":            {config.JWTConfig{Issuer: "carestaff", ExpirationMinutes: 5}, AccessTokenPayload{Role: enums.ActorRoleSystem}, "secret is required"},
		"no lifetime":          {config.JWTConfig{Secret: "s", Issuer: "carestaff"}, AccessTokenPayload{Role: enums.ActorRoleSystem}, "expiration minutes"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Issue(tc.cfg, time.Now(), tc.payload)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestParseAccessTokenFailures(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleSystem})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token+"x")
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	other := testCfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	stale, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.ActorRoleSystem})
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, stale)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
