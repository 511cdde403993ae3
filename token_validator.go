package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(ctx context.Context, tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(ctx context.Context, tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(ctx context.Context, tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(ctx, tokenString)
}

// MultiTokenValidator tries validators in order until one succeeds, which
// lets a deployment keep verifying tokens minted under retired signing keys
// during a rotation window. Malformed and unknown-key failures mean "try
// next"; any other failure is final.
type MultiTokenValidator struct {
	validators []TokenValidator
}

// NewMultiTokenValidator filters nil validators and returns a composite validator.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	filtered := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			filtered = append(filtered, v)
		}
	}
	return &MultiTokenValidator{validators: filtered}
}

// Validate satisfies the TokenValidator interface.
func (m *MultiTokenValidator) Validate(ctx context.Context, tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.validators {
		claims, err := v.Validate(ctx, tokenString)
		if err == nil {
			return claims, nil
		}
		if IsMalformedError(err) || isUnknownKeyError(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}

func isUnknownKeyError(err error) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode == textCodeUnknownKey
	}
	return false
}
