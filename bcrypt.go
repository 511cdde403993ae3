package accounts

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// bcrypt reads at most 72 bytes of input and modern x/crypto versions error
// on anything longer. Secrets are truncated to that window on both the hash
// and verify paths, so the full 8-128 character range stays accepted.
const maxSecretBytes = 72

func secretBytes(secret string) []byte {
	b := []byte(secret)
	if len(b) > maxSecretBytes {
		b = b[:maxSecretBytes]
	}
	return b
}

// HashPassword will generate a password hash. bcrypt salts every call, so
// hashing the same secret twice yields different hashes.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword(secretBytes(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), secretBytes(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// VerifySecret reports whether secret matches the stored hash. A nil hash
// (deleted account), empty secret, or malformed hash all report false; the
// caller cannot tell those apart from a wrong secret.
func VerifySecret(secret string, hash *string) bool {
	if secret == "" || hash == nil || *hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), secretBytes(secret)) == nil
}

// RandomPasswordHash is a temporary password
func RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := HashPassword(pwd.String())
	if err != nil {
		return RandomPasswordHash()
	}

	return h
}
