package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// ErrIncorrectPassword is returned by ChangePassword when the old password
// does not verify. A deleted account's nil hash fails the same way.
var ErrIncorrectPassword = goerrors.New("incorrect password", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest)

// UserManager is the account directory: registration with uniqueness,
// credential checks, and admin-gated lifecycle transitions. It holds no
// authoritative account state; the repository owns all of it.
type UserManager struct {
	users            UserStore
	stateMachine     UserStateMachine
	activitySink     ActivitySink
	logger           Logger
	deterministicIDs bool
	now              func() time.Time
}

// UserManagerOption customizes manager construction.
type UserManagerOption func(*UserManager)

// WithManagerLogger overrides the default logger.
func WithManagerLogger(logger Logger) UserManagerOption {
	return func(m *UserManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerActivitySink sets the sink receiving directory audit events.
func WithManagerActivitySink(sink ActivitySink) UserManagerOption {
	return func(m *UserManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// WithManagerClock injects a custom clock (useful for tests).
func WithManagerClock(clock func() time.Time) UserManagerOption {
	return func(m *UserManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithManagerStateMachine overrides the lifecycle machine.
func WithManagerStateMachine(sm UserStateMachine) UserManagerOption {
	return func(m *UserManager) {
		if sm != nil {
			m.stateMachine = sm
		}
	}
}

// WithDeterministicIDs derives the account id from the email, making
// registration idempotent for retries of the same payload.
func WithDeterministicIDs() UserManagerOption {
	return func(m *UserManager) {
		m.deterministicIDs = true
	}
}

// NewUserManager will create a new UserManager
func NewUserManager(users UserStore, opts ...UserManagerOption) *UserManager {
	m := &UserManager{
		users:        users,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	if m.stateMachine == nil {
		m.stateMachine = NewUserStateMachine(users,
			WithStateMachineActivitySink(m.activitySink),
			WithStateMachineLogger(m.logger),
		)
	}

	return m
}

// Register validates the input, hashes the password, and inserts the
// account. No partial object exists on a validation failure, and a duplicate
// username or email among non-deleted accounts comes back as the typed
// conflict from the store's unique constraint.
func (m *UserManager) Register(ctx context.Context, input RegisterInput) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(input.Email)

	if err := input.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     &input.Username,
		Email:        &input.Email,
		PasswordHash: &hash,
		Status:       UserStatusActive,
	}

	if m.deterministicIDs {
		if id, err := hashid.NewUUID(input.Email); err == nil {
			user.ID = id
		}
	}

	created, err := m.users.Register(ctx, user)
	if err != nil {
		return nil, err
	}

	m.emit(ctx, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{ID: created.ID.String(), Type: "user"},
		UserID:    created.ID.String(),
	})

	return created, nil
}

// Authenticate returns the account only when it exists, is active, and the
// password verifies. Every other outcome is the same invalid-credentials
// failure so callers cannot probe which usernames exist.
func (m *UserManager) Authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := m.users.GetByUsername(ctx, username)
	if err != nil {
		if goerrors.IsNotFound(err) || hasCategory(err, goerrors.CategoryNotFound) {
			m.recordLoginFailure(ctx, "", username, "unknown user")
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, err
	}

	if statusErr := statusAuthError(user.Status); statusErr != nil {
		m.recordLoginFailure(ctx, user.ID.String(), username, string(user.Status))
		return nil, ErrMismatchedHashAndPassword
	}

	if !VerifySecret(password, user.PasswordHash) {
		m.recordLoginFailure(ctx, user.ID.String(), username, "bad password")
		return nil, ErrMismatchedHashAndPassword
	}

	m.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
		UserID:    user.ID.String(),
	})

	return user, nil
}

// GetUser returns the account for id, including deleted rows.
func (m *UserManager) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return m.users.GetByID(ctx, id)
}

// ListUsers returns every non-deleted account.
func (m *UserManager) ListUsers(ctx context.Context) ([]*User, error) {
	return m.users.ListNonDeleted(ctx)
}

// ChangePassword verifies the old password against the stored hash and, only
// on success, swaps in the new hash and records the change instant. A failed
// verification mutates nothing.
func (m *UserManager) ChangePassword(ctx context.Context, id uuid.UUID, oldPassword, newPassword string) error {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Status != UserStatusActive {
		return invalidTransitionError(map[string]any{
			"reason": "account is not active",
		})
	}

	if !VerifySecret(oldPassword, user.PasswordHash) {
		return ErrIncorrectPassword
	}

	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if _, err := m.users.UpdatePasswordHash(ctx, id, hash, m.now()); err != nil {
		return err
	}

	m.emit(ctx, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Actor:     ActorRef{ID: id.String(), Type: "user"},
		UserID:    id.String(),
	})

	return nil
}

// DeleteOwn soft-deletes the caller's own account: PII is nulled, the row
// stays. Requires the account to currently be active.
func (m *UserManager) DeleteOwn(ctx context.Context, id uuid.UUID) error {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	actor := ActorRef{ID: id.String(), Type: "user"}
	_, err = m.stateMachine.Transition(ctx, actor, user, UserStatusDeleted)
	return err
}

// Deactivate suspends the target account. The actor must resolve to an admin
// and the target must currently be active.
func (m *UserManager) Deactivate(ctx context.Context, adminID, targetID uuid.UUID) error {
	return m.adminTransition(ctx, adminID, targetID, UserStatusDeactivated)
}

// Reactivate restores a deactivated account. The actor must resolve to an
// admin and the target must currently be deactivated.
func (m *UserManager) Reactivate(ctx context.Context, adminID, targetID uuid.UUID) error {
	return m.adminTransition(ctx, adminID, targetID, UserStatusActive)
}

// Logout stamps logged_out_at with the current instant, invalidating every
// token issued at or before it. Safe to call with no live session. The
// instant is truncated to microseconds, the same precision issue times carry.
func (m *UserManager) Logout(ctx context.Context, id uuid.UUID) error {
	if _, err := m.users.SetLoggedOut(ctx, id, m.now().Truncate(time.Microsecond)); err != nil {
		return err
	}

	m.emit(ctx, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorRef{ID: id.String(), Type: "user"},
		UserID:    id.String(),
	})

	return nil
}

func (m *UserManager) adminTransition(ctx context.Context, adminID, targetID uuid.UUID, target UserStatus) error {
	admin, err := m.users.GetByID(ctx, adminID)
	if err != nil {
		return err
	}

	if !admin.IsAdmin || admin.Status != UserStatusActive {
		return ErrAdminRequired
	}

	user, err := m.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	actor := ActorRef{ID: adminID.String(), Type: "admin"}
	_, err = m.stateMachine.Transition(ctx, actor, user, target)
	return err
}

func (m *UserManager) recordLoginFailure(ctx context.Context, userID, username, reason string) {
	m.logger.Warn("authentication failed for %q: %s", username, reason)
	m.emit(ctx, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{Type: "unknown"},
		UserID:    userID,
		Metadata: map[string]any{
			"reason": reason,
		},
	})
}

func (m *UserManager) emit(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now()
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("activity sink record error: %v", err)
	}
}
