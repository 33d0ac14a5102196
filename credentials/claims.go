package credentials

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims are the claims the analytics service puts in its access
// credentials. The service signs with a key the client never sees, so the
// claims are informational only.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID    json.Number `json:"user_id,omitempty"`
	TokenType string      `json:"token_type,omitempty"`
}

// ParseAccessClaims decodes an access credential without verifying its
// signature. It must never be used to make an authorization decision.
func ParseAccessClaims(access string) (*AccessClaims, error) {
	if access == "" {
		return nil, fmt.Errorf("[credentials ParseAccessClaims] empty credential")
	}
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		return nil, fmt.Errorf("[credentials ParseAccessClaims] %w", err)
	}
	return claims, nil
}

// User returns the numeric user id carried by the credential.
func (c *AccessClaims) User() (int64, bool) {
	if c == nil || c.UserID == "" {
		return 0, false
	}
	id, err := c.UserID.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}

// Expiry returns the expiry, or the zero time when the credential has none.
func (c *AccessClaims) Expiry() time.Time {
	if c == nil || c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}
