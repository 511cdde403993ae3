package accounts

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

func init() {
	// iat must carry sub-second precision so a token issued after a logout in
	// the same wall-clock second still compares as newer than logged_out_at.
	jwt.TimePrecision = time.Microsecond
}

// DefaultTokenTTL is how long issued tokens stay valid
const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService signs bearer tokens for accounts and verifies raw token
// strings back into claims.
type TokenService interface {
	Sign(user *User) (string, error)
	Validate(ctx context.Context, tokenString string) (AuthClaims, error)
}

// VerificationKey is a statically supplied public key for tokens issued
// elsewhere, identified by the kid it should answer to.
type VerificationKey struct {
	JWTAlg string
	Key    any
}

// TokenServiceImpl implements TokenService. One private key signs new
// tokens; any number of keys may verify, resolved by kid through a cache
// backed by the durable registry.
type TokenServiceImpl struct {
	privateKey *rsa.PrivateKey
	kid        uuid.UUID
	ttl        time.Duration
	issuer     string
	keys       *keyCache
	given      *keyfunc.JWKS
	logger     Logger
	now        func() time.Time
}

// TokenOption customizes token service construction.
type TokenOption func(*TokenServiceImpl)

// WithTokenTTL overrides the default seven-day expiry.
func WithTokenTTL(ttl time.Duration) TokenOption {
	return func(ts *TokenServiceImpl) {
		if ttl > 0 {
			ts.ttl = ttl
		}
	}
}

// WithTokenIssuer sets the iss claim on issued tokens.
func WithTokenIssuer(issuer string) TokenOption {
	return func(ts *TokenServiceImpl) {
		ts.issuer = issuer
	}
}

// WithPrivateKeyPEM supplies the signing key instead of generating one.
func WithPrivateKeyPEM(pemKey string) TokenOption {
	return func(ts *TokenServiceImpl) {
		block, _ := pem.Decode([]byte(pemKey))
		if block == nil {
			return
		}
		if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
			ts.privateKey = key
			return
		}
		if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
			if key, ok := parsed.(*rsa.PrivateKey); ok {
				ts.privateKey = key
			}
		}
	}
}

// WithPrivateKey supplies an already parsed signing key.
func WithPrivateKey(key *rsa.PrivateKey) TokenOption {
	return func(ts *TokenServiceImpl) {
		ts.privateKey = key
	}
}

// WithVerificationKeys registers static keys for externally issued tokens.
// They are consulted before the registry during kid resolution.
func WithVerificationKeys(keys map[string]VerificationKey) TokenOption {
	return func(ts *TokenServiceImpl) {
		if len(keys) == 0 {
			return
		}
		given := make(map[string]keyfunc.GivenKey, len(keys))
		for kid, key := range keys {
			given[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
				Algorithm: key.JWTAlg,
			})
		}
		ts.given = keyfunc.NewGiven(given)
	}
}

// WithTokenLogger overrides the default logger.
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenServiceImpl) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// WithTokenClock injects a custom clock (useful for tests).
func WithTokenClock(clock func() time.Time) TokenOption {
	return func(ts *TokenServiceImpl) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// NewTokenService creates a TokenService backed by the given registry. When
// no private key is supplied a fresh RSA pair is generated, and in either
// case the public half is written to the registry under a new kid before the
// service is returned, so nothing can be signed with an unverifiable key.
func NewTokenService(ctx context.Context, registry KeyRegistry, opts ...TokenOption) (*TokenServiceImpl, error) {
	if registry == nil {
		return nil, goerrors.New("key registry is required", goerrors.CategoryBadInput)
	}

	ts := &TokenServiceImpl{
		kid:    uuid.New(),
		ttl:    DefaultTokenTTL,
		keys:   newKeyCache(registry),
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	if ts.privateKey == nil {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate signing key")
		}
		ts.privateKey = key
	}

	publicPEM, err := EncodePublicKeyPEM(&ts.privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	record := &SigningKey{
		Kid:          ts.kid,
		PublicKeyPEM: publicPEM,
		Valid:        true,
	}
	if err := registry.InsertSigningKey(ctx, record); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register signing key")
	}

	ts.keys.put(ts.kid.String(), &ts.privateKey.PublicKey)

	return ts, nil
}

// Kid returns the identifier of the active signing key.
func (ts *TokenServiceImpl) Kid() uuid.UUID {
	return ts.kid
}

// PublicKeyPEM returns the active verification key in PEM form.
func (ts *TokenServiceImpl) PublicKeyPEM() (string, error) {
	return EncodePublicKeyPEM(&ts.privateKey.PublicKey)
}

// Sign issues a token for the account: sub is the username, id the account
// id, iat/exp the issue window, kid travels in the header.
func (ts *TokenServiceImpl) Sign(user *User) (string, error) {
	if user == nil {
		return "", goerrors.New("user must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now().Truncate(time.Microsecond)
	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.UsernameString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID:           user.ID.String(),
		IssuedAtMicro: now.UnixMicro(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = ts.kid.String()

	signed, err := token.SignedString(ts.privateKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Validate parses and verifies a token string. Every failure mode (expired,
// bad signature, unknown kid, malformed payload) comes back as a typed error;
// it never panics.
func (ts *TokenServiceImpl) Validate(ctx context.Context, tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, ts.keyfunc(ctx), parserOptions...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, ErrUnknownSigningKey):
			return nil, ErrUnknownSigningKey
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(textCodeTokenMalformed)
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token validate could not decode claims")
		return nil, ErrTokenMalformed
	}

	if kid, ok := token.Header["kid"].(string); ok {
		claims.Kid = kid
	}

	return claims, nil
}

// keyfunc resolves the verification key for a token: statically given keys
// first, then the read-through cache over the registry.
func (ts *TokenServiceImpl) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if ts.given != nil {
			if key, err := ts.given.Keyfunc(t); err == nil {
				return key, nil
			}
		}

		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrUnknownSigningKey
		}

		return ts.keys.resolve(ctx, kid)
	}
}
