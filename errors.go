package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeAccountExists    = "ACCOUNT_EXISTS"
	textCodeAdminRequired    = "ADMIN_REQUIRED"
	textCodeTokenExpired     = "TOKEN_EXPIRED"
	textCodeTokenMalformed   = "TOKEN_MALFORMED"
	textCodeTokenInvalidated = "TOKEN_INVALIDATED"
	textCodeTokenMissing     = "TOKEN_MISSING"
	textCodeUnknownKey       = "UNKNOWN_SIGNING_KEY"
)

// ErrNoEmptyString is returned when an empty secret reaches the hasher
var ErrNoEmptyString = goerrors.New("value cannot be an empty string", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the single failure login surfaces for a bad
// password or an unknown username, so callers cannot enumerate accounts.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned for lookups of nonexistent account ids
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrUserDeactivated blocks login for admin-suspended accounts
var ErrUserDeactivated = goerrors.New("account is deactivated", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserDeleted blocks login for soft-deleted accounts
var ErrUserDeleted = goerrors.New("account is deleted", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountExists is the conflict mapped from the store's unique constraint
// when a username or email is already held by a non-deleted account.
var ErrAccountExists = goerrors.New("an account already exists with that username or email", goerrors.CategoryConflict).
	WithTextCode(textCodeAccountExists).
	WithCode(goerrors.CodeConflict)

// ErrAdminRequired is returned when a non-admin attempts an admin action
var ErrAdminRequired = goerrors.New("admin access required", goerrors.CategoryAuthz).
	WithTextCode(textCodeAdminRequired).
	WithCode(goerrors.CodeForbidden)

// ErrMissingToken means the request carried no bearer credential at all
var ErrMissingToken = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for cryptographically valid but expired tokens
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers bad signatures and unparseable payloads
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalidated is returned when a token was issued at or before the
// account's last logout, the server-side revocation layered on top of
// signature verification.
var ErrTokenInvalidated = goerrors.New("token has been invalidated, please log in again", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenInvalidated).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnknownSigningKey means the token's kid resolved to no registered key
var ErrUnknownSigningKey = goerrors.New("token signed with an unknown key", goerrors.CategoryAuth).
	WithTextCode(textCodeUnknownKey).
	WithCode(goerrors.CodeUnauthorized)

// IsValidationError reports whether err is a field-level input failure.
func IsValidationError(err error) bool {
	return hasCategory(err, goerrors.CategoryValidation)
}

// IsConflictError reports whether err is a uniqueness conflict.
func IsConflictError(err error) bool {
	return hasCategory(err, goerrors.CategoryConflict)
}

// IsPermissionError reports whether err is an authorization failure.
func IsPermissionError(err error) bool {
	return hasCategory(err, goerrors.CategoryAuthz)
}

// IsUnauthenticatedError reports whether err is an authentication failure.
func IsUnauthenticatedError(err error) bool {
	return hasCategory(err, goerrors.CategoryAuth)
}

// ShouldClearCredential tells the request layer to drop the stored token so a
// stale credential is not retried indefinitely. True for every verification
// failure of a present token, false when no token was supplied.
func ShouldClearCredential(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case textCodeTokenExpired, textCodeTokenMalformed, textCodeTokenInvalidated, textCodeUnknownKey:
		return true
	}
	return false
}

func hasCategory(err error, category goerrors.Category) bool {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Category == category
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
