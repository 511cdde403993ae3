package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Lifecycle mutations are single conditional statements so two concurrent
// requests against the same account cannot interleave: the guard on the
// current status makes the losing request match zero rows.

var DeactivateUserSQL = `UPDATE "users" AS "usr"
SET
	"status" = 'deactivated',
	"deactivated_at" = ?,
	"deactivated_by" = ?
WHERE
	"usr"."id" = ?
AND
	"usr"."status" = 'active'
RETURNING *;`

var ReactivateUserSQL = `UPDATE "users" AS "usr"
SET
	"status" = 'active',
	"deactivated_at" = NULL,
	"deactivated_by" = NULL
WHERE
	"usr"."id" = ?
AND
	"usr"."status" = 'deactivated'
RETURNING *;`

var SoftDeleteUserSQL = `UPDATE "users" AS "usr"
SET
	"status" = 'deleted',
	"username" = NULL,
	"email" = NULL,
	"password_hash" = NULL,
	"deleted_at" = ?
WHERE
	"usr"."id" = ?
AND
	"usr"."status" = 'active'
RETURNING *;`

var LogoutUserSQL = `UPDATE "users" AS "usr"
SET
	"logged_out_at" = ?
WHERE
	"usr"."id" = ?
AND
	"usr"."status" != 'deleted'
RETURNING *;`

var ChangePasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"password_changed_at" = ?
WHERE
	"usr"."id" = ?
AND
	"usr"."status" = 'active'
RETURNING *;`

// listUsersLimit bounds directory listings
const listUsersLimit = 1000

// UserStore is the account persistence surface the manager and the state
// machine depend on. Keeping it narrow lets callers swap the bun-backed
// repository for anything that honors the same lifecycle guards.
type UserStore interface {
	Register(ctx context.Context, user *User) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	ListNonDeleted(ctx context.Context) ([]*User, error)

	Deactivate(ctx context.Context, id uuid.UUID, adminID *uuid.UUID, at time.Time) (*User, error)
	Reactivate(ctx context.Context, id uuid.UUID) (*User, error)
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*User, error)
	SetLoggedOut(ctx context.Context, id uuid.UUID, at time.Time) (*User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, at time.Time) (*User, error)
}

// Users adds the transactional insert to the store surface. The lookup
// methods are keyed by uuid, so the generic repository stays an internal
// detail rather than part of the contract.
type Users interface {
	UserStore

	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var _ Users = (*users)(nil)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts a new account. The store's unique constraints on
// username and email are the only uniqueness check; a violation surfaces as
// the typed conflict rather than an application-level scan.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAccountExists
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return created, nil
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(`?TableAlias."username" = ?`, username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user by username")
	}

	return record, nil
}

// GetByID also returns deleted rows: historical game records keep referencing
// the scrubbed account.
func (a *users) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where(`?TableAlias."id" = ?`, id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user by id")
	}

	return record, nil
}

func (a *users) ListNonDeleted(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Where(`?TableAlias."status" != ?`, UserStatusDeleted).
		Order("created_at ASC").
		Limit(listUsersLimit).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}

	return records, nil
}

func (a *users) Deactivate(ctx context.Context, id uuid.UUID, adminID *uuid.UUID, at time.Time) (*User, error) {
	var by any
	if adminID != nil {
		by = adminID.String()
	}
	return a.conditionalUpdate(ctx, DeactivateUserSQL, UserStatusActive, at, by, id.String())
}

func (a *users) Reactivate(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.conditionalUpdate(ctx, ReactivateUserSQL, UserStatusDeactivated, id.String())
}

func (a *users) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*User, error) {
	return a.conditionalUpdate(ctx, SoftDeleteUserSQL, UserStatusActive, at, id.String())
}

func (a *users) SetLoggedOut(ctx context.Context, id uuid.UUID, at time.Time) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, LogoutUserSQL, at, id.String())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record logout")
	}

	if len(res) == 0 {
		return nil, ErrUserNotFound
	}

	return res[0], nil
}

func (a *users) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, at time.Time) (*User, error) {
	return a.conditionalUpdate(ctx, ChangePasswordSQL, UserStatusActive, hash, at, id.String())
}

// conditionalUpdate runs a guarded single-statement update. Zero matched rows
// means the account was not in the status the statement requires.
func (a *users) conditionalUpdate(ctx context.Context, sql string, requires UserStatus, args ...any) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, sql, args...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	if len(res) == 0 {
		return nil, invalidTransitionError(map[string]any{
			"requires": requires,
		})
	}

	return res[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.EnsureStatus()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}

// isUniqueViolation matches the uniqueness errors of the supported drivers.
// Other constraint failures (NOT NULL, CHECK) must not map to a conflict.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	if repository.IsRecordNotFound(err) {
		return true
	}
	return strings.Contains(err.Error(), "no rows in result set")
}
