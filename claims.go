package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the verified identity a token carries, decoupled from the
// signing implementation.
type AuthClaims interface {
	Subject() string
	UserID() string
	KeyID() string
	IssuedAt() time.Time
	Expires() time.Time
}

// TokenClaims is the concrete claims payload: subject username, account id,
// issue and expiry instants. The signing key id travels in the token header.
// The issue instant is duplicated as integer microseconds in iat_us because
// the standard iat serializes as a float and loses microsecond exactness,
// which the logout comparison depends on.
type TokenClaims struct {
	jwt.RegisteredClaims
	UID           string `json:"id,omitempty"`
	IssuedAtMicro int64  `json:"iat_us,omitempty"`
	Kid           string `json:"-"`
}

var _ AuthClaims = (*TokenClaims)(nil)

// Subject returns the subject claim, the account's username
func (c *TokenClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account id
func (c *TokenClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// KeyID returns the kid of the key that verified this token
func (c *TokenClaims) KeyID() string {
	return c.Kid
}

// IssuedAt returns the issue instant. The integer microsecond claim is
// authoritative when present; the float iat is the fallback for tokens
// minted elsewhere.
func (c *TokenClaims) IssuedAt() time.Time {
	if c.IssuedAtMicro != 0 {
		return time.UnixMicro(c.IssuedAtMicro)
	}
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}
