package accounts_test

import (
	"context"
	"sync"
	"time"

	accounts "github.com/bartenders-of-corfu/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUsers implements accounts.UserStore
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) Register(ctx context.Context, user *accounts.User) (*accounts.User, error) {
	args := m.Called(ctx, user)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*accounts.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) ListNonDeleted(ctx context.Context) ([]*accounts.User, error) {
	args := m.Called(ctx)
	u, _ := args.Get(0).([]*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) Deactivate(ctx context.Context, id uuid.UUID, adminID *uuid.UUID, at time.Time) (*accounts.User, error) {
	args := m.Called(ctx, id, adminID, at)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) Reactivate(ctx context.Context, id uuid.UUID) (*accounts.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (*accounts.User, error) {
	args := m.Called(ctx, id, at)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) SetLoggedOut(ctx context.Context, id uuid.UUID, at time.Time) (*accounts.User, error) {
	args := m.Called(ctx, id, at)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

func (m *MockUsers) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, at time.Time) (*accounts.User, error) {
	args := m.Called(ctx, id, hash, at)
	u, _ := args.Get(0).(*accounts.User)
	return u, args.Error(1)
}

// memRegistry is an in-memory accounts.KeyRegistry shared between services
// under test, standing in for the signing_keys table.
type memRegistry struct {
	mu   sync.Mutex
	keys map[uuid.UUID]*accounts.SigningKey
}

func newMemRegistry() *memRegistry {
	return &memRegistry{keys: map[uuid.UUID]*accounts.SigningKey{}}
}

func (r *memRegistry) GetSigningKey(ctx context.Context, kid uuid.UUID) (*accounts.SigningKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.keys[kid]
	if !ok || !key.Valid {
		return nil, goerrors.New("signing key not found", goerrors.CategoryNotFound)
	}
	return key, nil
}

func (r *memRegistry) InsertSigningKey(ctx context.Context, key *accounts.SigningKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[key.Kid] = key
	return nil
}

// recordingSink captures activity events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (s *recordingSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []accounts.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) EventTypes() []accounts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]accounts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
