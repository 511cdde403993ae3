package accounts

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// KeyRegistry is the durable store of verification keys, keyed by kid. A
// token stays verifiable across process restarts as long as its registry
// entry persists.
type KeyRegistry interface {
	GetSigningKey(ctx context.Context, kid uuid.UUID) (*SigningKey, error)
	InsertSigningKey(ctx context.Context, key *SigningKey) error
}

// keyCache is a read-through cache over the registry. Population races are
// harmless: two goroutines resolving the same kid store identical keys.
type keyCache struct {
	mu       sync.RWMutex
	keys     map[string]*rsa.PublicKey
	registry KeyRegistry
}

func newKeyCache(registry KeyRegistry) *keyCache {
	return &keyCache{
		keys:     map[string]*rsa.PublicKey{},
		registry: registry,
	}
}

func (kc *keyCache) put(kid string, key *rsa.PublicKey) {
	kc.mu.Lock()
	kc.keys[kid] = key
	kc.mu.Unlock()
}

// resolve returns the verification key for kid, consulting the registry on a
// cache miss.
func (kc *keyCache) resolve(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	kc.mu.RLock()
	key, ok := kc.keys[kid]
	kc.mu.RUnlock()
	if ok {
		return key, nil
	}

	id, err := uuid.Parse(kid)
	if err != nil {
		return nil, ErrUnknownSigningKey
	}

	record, err := kc.registry.GetSigningKey(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			return nil, ErrUnknownSigningKey
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load signing key")
	}

	if record == nil || !record.Valid {
		return nil, ErrUnknownSigningKey
	}

	key, err = ParsePublicKeyPEM(record.PublicKeyPEM)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "stored signing key is not valid PEM")
	}

	kc.put(kid, key)

	return key, nil
}

// EncodePublicKeyPEM renders an RSA public key as a PKIX PEM block.
func EncodePublicKeyPEM(key *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal public key")
	}

	block := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	})

	return string(block), nil
}

// ParsePublicKeyPEM decodes a PKIX PEM block into an RSA public key.
func ParsePublicKeyPEM(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, goerrors.New("no PEM block found", goerrors.CategoryBadInput)
	}

	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse public key")
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, goerrors.New("public key is not RSA", goerrors.CategoryBadInput)
	}

	return key, nil
}
