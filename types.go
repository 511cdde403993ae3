package accounts

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity is the verified caller the authorization gate yields for
// downstream use
type Identity interface {
	ID() string
	Username() string
	IssuedAt() time.Time
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*User, string, error)
	Login(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, rawToken string) error
	Authorize(ctx context.Context, rawToken string) (Identity, error)
	RequireAdmin(ctx context.Context, rawToken string) (*User, error)
}

// Config holds auth options
type Config interface {
	GetTokenExpiration() int
	GetIssuer() string
	GetSigningKeyPEM() string
}

// TokenOptionsFromConfig maps a Config onto token service options.
func TokenOptionsFromConfig(cfg Config) []TokenOption {
	if cfg == nil {
		return nil
	}

	opts := []TokenOption{}
	if cfg.GetTokenExpiration() > 0 {
		opts = append(opts, WithTokenTTL(time.Duration(cfg.GetTokenExpiration())*time.Hour))
	}
	if cfg.GetIssuer() != "" {
		opts = append(opts, WithTokenIssuer(cfg.GetIssuer()))
	}
	if cfg.GetSigningKeyPEM() != "" {
		opts = append(opts, WithPrivateKeyPEM(cfg.GetSigningKeyPEM()))
	}

	return opts
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
