package accounts_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	accounts "github.com/bartenders-of-corfu/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// A single connection keeps every statement on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.NewCreateTable().Model((*accounts.User)(nil)).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*accounts.SigningKey)(nil)).Exec(ctx)
	require.NoError(t, err)

	return db
}

func registerTestUser(t *testing.T, repo accounts.Users, username, email string) *accounts.User {
	t.Helper()

	hash := accounts.RandomPasswordHash()
	user, err := repo.Register(context.Background(), &accounts.User{
		Username:     &username,
		Email:        &email,
		PasswordHash: &hash,
	})
	require.NoError(t, err)
	return user
}

func TestUsersRepositoryRegisterAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerTestUser(t, repo, "gamer", "gamer@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, accounts.UserStatusActive, user.Status)
	assert.NotNil(t, user.CreatedAt)

	byName, err := repo.GetByUsername(ctx, "gamer")
	require.NoError(t, err)
	assert.True(t, byName.Equal(user))

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, byID.Equal(user))

	_, err = repo.GetByUsername(ctx, "nobody")
	require.Error(t, err)
	assert.ErrorContains(t, err, "not found")

	_, err = repo.GetByID(ctx, uuid.New())
	require.Error(t, err)
	assert.ErrorContains(t, err, "not found")
}

func TestUsersRepositoryUniqueConstraints(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	registerTestUser(t, repo, "gamer", "gamer@example.com")

	hash := accounts.RandomPasswordHash()
	_, err := repo.Register(ctx, &accounts.User{
		Username:     strPtr("gamer"),
		Email:        strPtr("other@example.com"),
		PasswordHash: &hash,
	})
	require.Error(t, err)
	assert.True(t, accounts.IsConflictError(err))

	_, err = repo.Register(ctx, &accounts.User{
		Username:     strPtr("other"),
		Email:        strPtr("gamer@example.com"),
		PasswordHash: &hash,
	})
	require.Error(t, err)
	assert.True(t, accounts.IsConflictError(err))
}

func TestUsersRepositoryDeactivateReactivate(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerTestUser(t, repo, "gamer", "gamer@example.com")
	adminID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	deactivated, err := repo.Deactivate(ctx, user.ID, &adminID, now)
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusDeactivated, deactivated.Status)
	require.NotNil(t, deactivated.DeactivatedAt)
	require.NotNil(t, deactivated.DeactivatedBy)
	assert.Equal(t, adminID, *deactivated.DeactivatedBy)

	// The guard on the current status rejects a second deactivation.
	_, err = repo.Deactivate(ctx, user.ID, &adminID, now)
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))

	reactivated, err := repo.Reactivate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusActive, reactivated.Status)
	assert.Nil(t, reactivated.DeactivatedAt)
	assert.Nil(t, reactivated.DeactivatedBy)

	_, err = repo.Reactivate(ctx, user.ID)
	require.Error(t, err)
}

func TestUsersRepositorySoftDeleteScrubsAndFreesIdentifiers(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerTestUser(t, repo, "gamer", "gamer@example.com")

	deleted, err := repo.SoftDelete(ctx, user.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusDeleted, deleted.Status)
	assert.Nil(t, deleted.Username)
	assert.Nil(t, deleted.Email)
	assert.Nil(t, deleted.PasswordHash)
	assert.NotNil(t, deleted.DeletedAt)

	// The row stays reachable by id for old game records.
	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusDeleted, byID.Status)

	// But it no longer shows up in the directory.
	listed, err := repo.ListNonDeleted(ctx)
	require.NoError(t, err)
	assert.Empty(t, listed)

	// And the username is free for a new registration.
	fresh := registerTestUser(t, repo, "gamer", "gamer@example.com")
	assert.NotEqual(t, user.ID, fresh.ID)

	// Deleting twice fails the status guard.
	_, err = repo.SoftDelete(ctx, user.ID, time.Now())
	require.Error(t, err)
}

func TestUsersRepositoryListNonDeleted(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	active := registerTestUser(t, repo, "one", "one@example.com")
	suspended := registerTestUser(t, repo, "two", "two@example.com")
	gone := registerTestUser(t, repo, "three", "three@example.com")

	_, err := repo.Deactivate(ctx, suspended.ID, nil, time.Now())
	require.NoError(t, err)
	_, err = repo.SoftDelete(ctx, gone.ID, time.Now())
	require.NoError(t, err)

	listed, err := repo.ListNonDeleted(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	ids := []uuid.UUID{listed[0].ID, listed[1].ID}
	assert.Contains(t, ids, active.ID)
	assert.Contains(t, ids, suspended.ID)
}

func TestUsersRepositorySetLoggedOut(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerTestUser(t, repo, "gamer", "gamer@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)

	updated, err := repo.SetLoggedOut(ctx, user.ID, now)
	require.NoError(t, err)
	require.NotNil(t, updated.LoggedOutAt)

	// Logout is idempotent as long as the account is not deleted.
	_, err = repo.SetLoggedOut(ctx, user.ID, now.Add(time.Second))
	require.NoError(t, err)

	_, err = repo.SoftDelete(ctx, user.ID, time.Now())
	require.NoError(t, err)
	_, err = repo.SetLoggedOut(ctx, user.ID, now)
	require.Error(t, err)
}

func TestUsersRepositoryUpdatePasswordHash(t *testing.T) {
	db := setupTestDB(t)
	repo := accounts.NewUsersRepository(db)
	ctx := context.Background()

	user := registerTestUser(t, repo, "gamer", "gamer@example.com")
	now := time.Now().UTC().Truncate(time.Microsecond)
	newHash := accounts.RandomPasswordHash()

	updated, err := repo.UpdatePasswordHash(ctx, user.ID, newHash, now)
	require.NoError(t, err)
	require.NotNil(t, updated.PasswordHash)
	assert.Equal(t, newHash, *updated.PasswordHash)
	assert.NotNil(t, updated.PasswordChangedAt)

	// Only active accounts can rotate their password.
	_, err = repo.Deactivate(ctx, user.ID, nil, time.Now())
	require.NoError(t, err)
	_, err = repo.UpdatePasswordHash(ctx, user.ID, newHash, now)
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))
}

func TestRepositoryManager(t *testing.T) {
	db := setupTestDB(t)
	manager := accounts.NewRepositoryManager(db)

	require.NoError(t, manager.Validate())
	assert.NotNil(t, manager.Users())
	assert.NotNil(t, manager.SigningKeys())

	err := manager.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		hash := accounts.RandomPasswordHash()
		_, err := manager.Users().RegisterTx(ctx, tx, &accounts.User{
			Username:     strPtr("gamer"),
			Email:        strPtr("gamer@example.com"),
			PasswordHash: &hash,
		})
		return err
	})
	require.NoError(t, err)

	user, err := manager.Users().GetByUsername(context.Background(), "gamer")
	require.NoError(t, err)
	assert.Equal(t, accounts.UserStatusActive, user.Status)
}
