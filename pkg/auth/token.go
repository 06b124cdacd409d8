// Package auth mints and verifies the HS256 access tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

var signingMethod = jwt.SigningMethodHS256

// Issue signs a token for payload. Agency admins must be bound to an agency.
func Issue(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (Issued, error) {
	if err := checkConfig(cfg); err != nil {
		return Issued{}, err
	}
	if cfg.ExpirationMinutes <= 0 && payload.TTL <= 0 {
		return Issued{}, errors.New("jwt expiration minutes must be positive")
	}
	switch {
	case !payload.Role.IsValid():
		return Issued{}, fmt.Errorf("invalid actor role %q", payload.Role)
	case payload.Role == enums.ActorRoleAgencyAdmin && payload.AgencyID == nil:
		return Issued{}, errors.New("agency admin tokens require an agency id")
	}

	ttl := payload.TTL
	if ttl <= 0 {
		ttl = cfg.Expiration()
	}
	id := strings.TrimSpace(payload.JTI)
	if id == "" {
		id = uuid.NewString()
	}
	expiresAt := now.Add(ttl)

	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID:   payload.UserID,
		AgencyID: payload.AgencyID,
		Role:     payload.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return Issued{}, fmt.Errorf("signing jwt: %w", err)
	}
	return Issued{Token: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// MintAccessToken is Issue for callers that only need the token string.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	issued, err := Issue(cfg, now, payload)
	return issued.Token, err
}

// ParseAccessToken verifies signature, issuer and expiry and returns the claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("jwt secret is required")
	}
	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("invalid actor role %q", claims.Role)
	}
	return claims, nil
}

func checkConfig(cfg config.JWTConfig) error {
	if strings.TrimSpace(cfg.Secret) == "" {
		return errors.New("jwt secret is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return errors.New("jwt issuer is required")
	}
	return nil
}
