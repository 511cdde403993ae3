package accounts

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

var (
	usernameCharset = regexp.MustCompile(`^[a-zA-Z0-9\s\-_]+$`)
	emailShape      = regexp.MustCompile(`^[\w\.-]+@[\w\.-]+\.\w+$`)
	hasLetter       = regexp.MustCompile(`[a-zA-Z]`)
	hasDigit        = regexp.MustCompile(`\d`)
)

// RegisterInput carries the raw registration fields prior to hashing. No
// account object is constructed until every field passes.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks every field and reports all violations, keyed by field.
func (r RegisterInput) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, usernameRules()...),
		validation.Field(&r.Email, emailRules()...),
		validation.Field(&r.Password, passwordRules()...),
	)
	return wrapValidationError(err)
}

func usernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("cannot be empty"),
		validation.Length(3, 50),
		validation.Match(usernameCharset).
			Error("can only contain letters, numbers, spaces, hyphens, and underscores"),
	}
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("cannot be empty"),
		validation.Match(emailShape).Error("invalid email format"),
	}
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("cannot be empty"),
		validation.Length(8, 128),
		validation.Match(hasLetter).Error("must contain at least one letter"),
		validation.Match(hasDigit).Error("must contain at least one number"),
	}
}

// ValidateNewPassword applies the password rules to a candidate replacement.
func ValidateNewPassword(password string) error {
	err := validation.Validate(password, passwordRules()...)
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password").
		WithMetadata(map[string]any{"password": err.Error()}).
		WithCode(goerrors.CodeBadRequest)
}

// wrapValidationError lifts ozzo's per-field errors into the typed taxonomy,
// preserving the field labels in metadata.
func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{}
	if fields, ok := err.(validation.Errors); ok {
		for field, ferr := range fields {
			meta[field] = ferr.Error()
		}
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid account input").
		WithMetadata(meta).
		WithCode(goerrors.CodeBadRequest)
}
