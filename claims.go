package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPurpose tells session tokens and reset tokens apart so one can
// not be replayed as the other.
type TokenPurpose string

const (
	PurposeSession TokenPurpose = "session"
	PurposeReset   TokenPurpose = "reset"
)

// JWTClaims is the payload of every token the service issues
type JWTClaims struct {
	jwt.RegisteredClaims
	Purpose TokenPurpose `json:"pur,omitempty"`
}

// UserID returns the subject claim
func (c *JWTClaims) UserID() string {
	return c.Subject
}

// Expires returns the expiration time, zero if unset
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time, zero if unset
func (c *JWTClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}
