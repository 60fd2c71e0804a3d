package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmkeep/farmkeep/auth"
)

func TestGenerateRefreshToken(t *testing.T) {
	raw, hash, err := auth.GenerateRefreshToken()

	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, raw, hash)
	assert.Equal(t, auth.HashRefreshToken(raw), hash)

	raw2, _, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, raw, raw2)
}

func TestRefreshTokenService_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a token bound to the account", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, record, err := svc.Issue(ctx, user.ID)

		require.NoError(t, err)
		assert.NotEmpty(t, raw)
		assert.Equal(t, user.ID, record.UserID)
		assert.Equal(t, auth.HashRefreshToken(raw), record.TokenHash)
		assert.False(t, record.Revoked())
	})

	t.Run("issuing revokes the previous session", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		first, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		_, _, err = svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		_, _, _, err = svc.Rotate(ctx, first)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	})
}

func TestRefreshTokenService_Rotate(t *testing.T) {
	ctx := context.Background()

	t.Run("rotation returns a new usable token", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		userID, newRaw, record, err := svc.Rotate(ctx, raw)

		require.NoError(t, err)
		assert.Equal(t, user.ID, userID)
		assert.NotEqual(t, raw, newRaw)
		assert.Equal(t, auth.HashRefreshToken(newRaw), record.TokenHash)

		// the rotated-out token is now dead
		_, _, _, err = svc.Rotate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)

		// the fresh one still rotates
		_, _, _, err = svc.Rotate(ctx, newRaw)
		assert.NoError(t, err)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		svc := auth.NewRefreshTokenService(repo)

		_, _, _, err := svc.Rotate(ctx, "never-issued")
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})

	t.Run("expired token", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)

		clock := time.Now()
		svc := auth.NewRefreshTokenService(repo, auth.WithRefreshClock(func() time.Time { return clock }))

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		clock = clock.Add(auth.DefaultRefreshTokenTTL + time.Hour)

		_, _, _, err = svc.Rotate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})

	t.Run("concurrent rotations on one token yield exactly one winner", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		const attempts = 2
		errs := make([]error, attempts)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				_, _, _, errs[slot] = svc.Rotate(ctx, raw)
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			}
		}
		assert.Equal(t, 1, winners, "exactly one rotation must succeed, got errors: %v", errs)
	})
}

func TestRefreshTokenService_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("revoked token cannot rotate", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, raw))

		_, _, _, err = svc.Rotate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	})

	t.Run("revoking twice is a no-op", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.Revoke(ctx, raw))
		assert.NoError(t, svc.Revoke(ctx, raw))
	})

	t.Run("revoking an unknown token fails", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		svc := auth.NewRefreshTokenService(repo)

		err := svc.Revoke(ctx, "never-issued")
		assert.ErrorIs(t, err, auth.ErrTokenNotFound)
	})

	t.Run("revoke all kills every live session", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewRefreshTokenService(repo)

		raw, _, err := svc.Issue(ctx, user.ID)
		require.NoError(t, err)

		require.NoError(t, svc.RevokeAllForUser(ctx, user.ID))

		_, _, _, err = svc.Rotate(ctx, raw)
		assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	})
}
