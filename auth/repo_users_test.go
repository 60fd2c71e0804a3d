package auth_test

import (
	"context"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmkeep/farmkeep/auth"
)

func TestUsers_GetByIdentifier(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepoManager(t)
	user := seedUser(t, repo)

	t.Run("by email", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "asha@example.com")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("email lookup is case insensitive", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "ASHA@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("by id", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
		require.NoError(t, err)
		assert.Equal(t, user.Email, found.Email)
	})

	t.Run("by phone", func(t *testing.T) {
		found, err := repo.Users().GetByIdentifier(ctx, "+919876543210")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := repo.Users().GetByIdentifier(ctx, "nobody@example.com")
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestUsers_Register(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepoManager(t)

	t.Run("defaults role and status", func(t *testing.T) {
		hash, err := auth.HashPassword("s3cret-password")
		require.NoError(t, err)

		created, err := repo.Users().Register(ctx, &auth.User{
			Name:         "Ravi Kumar",
			Email:        "ravi@example.com",
			Phone:        "+919812345678",
			PasswordHash: hash,
		})

		require.NoError(t, err)
		assert.Equal(t, auth.RoleFarmer, created.Role)
		assert.Equal(t, auth.UserStatusPending, created.Status)
		assert.NotEmpty(t, created.ID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		hash, err := auth.HashPassword("s3cret-password")
		require.NoError(t, err)

		_, err = repo.Users().Register(ctx, &auth.User{
			Name:         "Ravi Impostor",
			Email:        "ravi@example.com",
			Phone:        "+919899999999",
			PasswordHash: hash,
		})

		assert.Error(t, err)
	})
}

func TestUsers_MarkVerified(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepoManager(t)

	user := seedUser(t, repo, func(u *auth.User) {
		u.Status = auth.UserStatusPending
		u.EmailVerified = false
		u.PhoneVerified = false
	})

	require.NoError(t, repo.Users().MarkVerified(ctx, user.ID))

	found, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, found.IsVerified())
	assert.Equal(t, auth.UserStatusActive, found.Status)
	assert.True(t, found.CanLogin())
}

func TestUsers_StatusTransitions(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepoManager(t)
	admin := auth.ActorRef{ID: "admin-1", Type: "admin"}

	t.Run("suspend and reinstate", func(t *testing.T) {
		user := seedUser(t, repo)

		suspended, err := repo.Users().Suspend(ctx, admin, user)
		require.NoError(t, err)
		assert.Equal(t, auth.UserStatusSuspended, suspended.Status)
		assert.NotNil(t, suspended.SuspendedAt)

		restored, err := repo.Users().Reinstate(ctx, admin, suspended)
		require.NoError(t, err)
		assert.Equal(t, auth.UserStatusActive, restored.Status)
	})

	t.Run("pending accounts cannot be suspended", func(t *testing.T) {
		user := seedUser(t, repo, func(u *auth.User) {
			u.Email = "pending@example.com"
			u.Phone = "+919811111111"
			u.Status = auth.UserStatusPending
		})

		_, err := repo.Users().Suspend(ctx, admin, user)
		assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	})
}

func TestUsers_ResetPassword(t *testing.T) {
	ctx := context.Background()
	_, repo := setupRepoManager(t)
	user := seedUser(t, repo)

	newHash, err := auth.HashPassword("n3w-password!")
	require.NoError(t, err)

	require.NoError(t, repo.Users().ResetPassword(ctx, user.ID, newHash))

	found, err := repo.Users().GetByIdentifier(ctx, user.ID.String())
	require.NoError(t, err)
	assert.NoError(t, auth.ComparePasswordAndHash("n3w-password!", found.PasswordHash))
}
