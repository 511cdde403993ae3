package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Auther composes the account directory and the token service into the
// authorization gate: register and login mint tokens, Authorize verifies
// them and checks server-side invalidation before yielding an Identity.
type Auther struct {
	manager *UserManager
	tokens  TokenService
	logger  Logger
}

var _ Authenticator = (*Auther)(nil)

// AutherOption customizes gate construction.
type AutherOption func(*Auther)

// WithAutherLogger overrides the default logger.
func WithAutherLogger(logger Logger) AutherOption {
	return func(a *Auther) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAuthenticator will create a new Auther
func NewAuthenticator(manager *UserManager, tokens TokenService, opts ...AutherOption) *Auther {
	a := &Auther{
		manager: manager,
		tokens:  tokens,
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// Register creates the account and signs a token for it, so a fresh signup
// is logged in without a second round trip.
func (a *Auther) Register(ctx context.Context, input RegisterInput) (*User, string, error) {
	user, err := a.manager.Register(ctx, input)
	if err != nil {
		return nil, "", err
	}

	token, err := a.tokens.Sign(user)
	if err != nil {
		return nil, "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return user, token, nil
}

// Login authenticates the credentials and returns a signed token.
func (a *Auther) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.manager.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}

	token, err := a.tokens.Sign(user)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return token, nil
}

// Logout verifies the presented token and stamps the account's logout
// instant, invalidating that token and every earlier one.
func (a *Auther) Logout(ctx context.Context, rawToken string) error {
	identity, err := a.Authorize(ctx, rawToken)
	if err != nil {
		return err
	}

	id, err := ParseUserID(identity.ID())
	if err != nil {
		return err
	}

	return a.manager.Logout(ctx, id)
}

// Authorize verifies the raw token and returns the caller's identity.
// Beyond signature and expiry, the token's issue instant must be strictly
// after the account's last logout; anything at or before it was part of the
// session that logout ended.
func (a *Auther) Authorize(ctx context.Context, rawToken string) (Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrMissingToken
	}

	claims, err := a.tokens.Validate(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	id, err := ParseUserID(claims.UserID())
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := a.manager.GetUser(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) || hasCategory(err, goerrors.CategoryNotFound) {
			return nil, ErrTokenInvalidated
		}
		return nil, err
	}

	if statusErr := statusAuthError(user.Status); statusErr != nil {
		return nil, statusErr
	}

	if invalidatedByLogout(claims.IssuedAt(), user.LoggedOutAt) {
		a.manager.emit(ctx, ActivityEvent{
			EventType: ActivityEventTokenInvalidated,
			Actor:     ActorRef{ID: user.ID.String(), Type: "user"},
			UserID:    user.ID.String(),
		})
		return nil, ErrTokenInvalidated
	}

	return &identity{
		id:       user.ID.String(),
		username: user.UsernameString(),
		issuedAt: claims.IssuedAt(),
	}, nil
}

// RequireAdmin authorizes the token and additionally requires the account to
// be an administrator.
func (a *Auther) RequireAdmin(ctx context.Context, rawToken string) (*User, error) {
	ident, err := a.Authorize(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	id, err := ParseUserID(ident.ID())
	if err != nil {
		return nil, err
	}

	user, err := a.manager.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if !user.IsAdmin {
		return nil, ErrAdminRequired
	}

	return user, nil
}

// invalidatedByLogout reports whether a token issued at iat predates the
// account's last logout. Equality counts: both instants carry microsecond
// precision, and a logout stamped in the same microsecond wins. A token
// with no issue instant at all carries nothing to compare, so the check
// does not apply to it.
func invalidatedByLogout(iat time.Time, loggedOutAt *time.Time) bool {
	if loggedOutAt == nil || iat.IsZero() {
		return false
	}
	return !iat.After(*loggedOutAt)
}

type identity struct {
	id       string
	username string
	issuedAt time.Time
}

func (i *identity) ID() string          { return i.id }
func (i *identity) Username() string    { return i.username }
func (i *identity) IssuedAt() time.Time { return i.issuedAt }
