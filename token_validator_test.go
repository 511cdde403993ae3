package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/bartenders-of-corfu/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServiceValidator(svc accounts.TokenService) accounts.TokenValidator {
	return accounts.TokenValidatorFunc(svc.Validate)
}

func TestMultiTokenValidatorFallsThroughOnUnknownKey(t *testing.T) {
	ctx := context.Background()

	oldSvc, err := accounts.NewTokenService(ctx, newMemRegistry())
	require.NoError(t, err)
	newSvc, err := accounts.NewTokenService(ctx, newMemRegistry())
	require.NoError(t, err)

	validator := accounts.NewMultiTokenValidator(
		tokenServiceValidator(newSvc),
		tokenServiceValidator(oldSvc),
	)

	// Minted under the old key, unknown to the new service's registry.
	user := testUser()
	token, err := oldSvc.Sign(user)
	require.NoError(t, err)

	claims, err := validator.Validate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
}

func TestMultiTokenValidatorRejectsGarbage(t *testing.T) {
	ctx := context.Background()

	svc, err := accounts.NewTokenService(ctx, newMemRegistry())
	require.NoError(t, err)

	validator := accounts.NewMultiTokenValidator(tokenServiceValidator(svc), nil)

	_, err = validator.Validate(ctx, "garbage")
	require.Error(t, err)
	assert.True(t, accounts.IsMalformedError(err))
}

func TestMultiTokenValidatorEmpty(t *testing.T) {
	validator := accounts.NewMultiTokenValidator()

	_, err := validator.Validate(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, accounts.IsMalformedError(err))
}

func TestTokenValidatorFuncNil(t *testing.T) {
	var fn accounts.TokenValidatorFunc
	_, err := fn.Validate(context.Background(), "anything")
	assert.Error(t, err)
}
