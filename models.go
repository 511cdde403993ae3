package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the lifecycle state of an account
type UserStatus = string

const (
	// UserStatusActive can log in and play
	UserStatusActive UserStatus = "active"
	// UserStatusDeactivated was suspended by an admin, can be reactivated
	UserStatusDeactivated UserStatus = "deactivated"
	// UserStatusDeleted is terminal; PII is scrubbed but the row is retained
	// so historical game records keep a valid reference
	UserStatusDeleted UserStatus = "deleted"
)

// User is the account model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username          *string    `bun:"username,unique,nullzero" json:"username,omitempty"`
	Email             *string    `bun:"email,unique,nullzero" json:"email,omitempty"`
	PasswordHash      *string    `bun:"password_hash,nullzero" json:"-"`
	Status            UserStatus `bun:"status,notnull" json:"status,omitempty"`
	IsAdmin           bool       `bun:"is_admin" json:"is_admin,omitempty"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	PasswordChangedAt *time.Time `bun:"password_changed_at,nullzero" json:"password_changed_at,omitempty"`
	DeactivatedAt     *time.Time `bun:"deactivated_at,nullzero" json:"deactivated_at,omitempty"`
	DeactivatedBy     *uuid.UUID `bun:"deactivated_by,nullzero,type:uuid" json:"deactivated_by,omitempty"`
	DeletedAt         *time.Time `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	LoggedOutAt       *time.Time `bun:"logged_out_at,nullzero" json:"logged_out_at,omitempty"`
}

// EnsureStatus normalizes a zero-value status to active
func (u *User) EnsureStatus() {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
}

// Equal reports whether two records identify the same account. Only the ID
// participates so records remain comparable while other fields mutate.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.ID == other.ID
}

// UsernameString returns the username or "" for scrubbed accounts
func (u *User) UsernameString() string {
	if u.Username == nil {
		return ""
	}
	return *u.Username
}

// EmailString returns the email or "" for scrubbed accounts
func (u *User) EmailString() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

// PublicUser is the serializable account view. The password hash is never
// part of it; email and admin/lifecycle details only appear when the caller
// asked for the sensitive variant.
type PublicUser struct {
	ID            string     `json:"id"`
	Username      string     `json:"username,omitempty"`
	Status        UserStatus `json:"status"`
	Email         string     `json:"email,omitempty"`
	IsAdmin       *bool      `json:"is_admin,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
	DeactivatedBy string     `json:"deactivated_by,omitempty"`
}

// Public builds the account view exposed to API consumers.
func (u *User) Public(includeSensitive bool) PublicUser {
	view := PublicUser{
		ID:       u.ID.String(),
		Username: u.UsernameString(),
		Status:   u.Status,
	}

	if !includeSensitive {
		return view
	}

	view.Email = u.EmailString()
	isAdmin := u.IsAdmin
	view.IsAdmin = &isAdmin
	view.CreatedAt = u.CreatedAt
	view.DeactivatedAt = u.DeactivatedAt
	if u.DeactivatedBy != nil {
		view.DeactivatedBy = u.DeactivatedBy.String()
	}

	return view
}

// statusAuthError maps a non-active status to the error login should surface.
func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusActive, "":
		return nil
	case UserStatusDeleted:
		return ErrUserDeleted
	default:
		return ErrUserDeactivated
	}
}

// SigningKey is the durable record of a token verification key. Rows are
// never deleted; rotation retires a key by flipping valid to false.
type SigningKey struct {
	bun.BaseModel `bun:"table:signing_keys,alias:sk"`
	Kid           uuid.UUID  `bun:"kid,pk,type:uuid" json:"kid"`
	PublicKeyPEM  string     `bun:"public_key,notnull" json:"public_key"`
	Valid         bool       `bun:"valid,notnull" json:"valid"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
