package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

// AccessTokenPayload is what an operator supplies when minting a token.
// A zero TTL uses the configured lifetime; an empty JTI gets a random one.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	AgencyID *uuid.UUID
	Role     enums.ActorRole
	JTI      string
	TTL      time.Duration
}

// AccessTokenClaims is the JWT body presented by API callers. System tokens may
// omit the agency and act across agencies.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	AgencyID *uuid.UUID      `json:"agency_id,omitempty"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Issued is a signed token with the id and expiry the session store keys on.
type Issued struct {
	Token     string    `json:"token"`
	ID        string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
}
