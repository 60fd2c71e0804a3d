package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmkeep/farmkeep/auth"
)

func TestGenerateOTPCode(t *testing.T) {
	t.Run("generates numeric code of requested length", func(t *testing.T) {
		code, err := auth.GenerateOTPCode(6)

		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "unexpected character %q", c)
		}
	})

	t.Run("defaults invalid lengths", func(t *testing.T) {
		code, err := auth.GenerateOTPCode(0)

		require.NoError(t, err)
		assert.Len(t, code, auth.DefaultOTPLength)
	})
}

func TestOTPService_IssueAndVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("verify consumes a valid code", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		challenge, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)
		require.Len(t, challenge.Code, auth.DefaultOTPLength)

		err = svc.Verify(ctx, user.ID, challenge.Code, auth.OTPPurposeVerification)
		assert.NoError(t, err)
	})

	t.Run("a consumed code cannot be replayed", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		challenge, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		require.NoError(t, svc.Verify(ctx, user.ID, challenge.Code, auth.OTPPurposeVerification))

		err = svc.Verify(ctx, user.ID, challenge.Code, auth.OTPPurposeVerification)
		assert.ErrorIs(t, err, auth.ErrOTPConsumed)
	})

	t.Run("wrong code mismatches without consuming", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		challenge, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		wrong := "000000"
		if wrong == challenge.Code {
			wrong = "000001"
		}

		err = svc.Verify(ctx, user.ID, wrong, auth.OTPPurposeVerification)
		assert.ErrorIs(t, err, auth.ErrOTPMismatch)

		// the real code still works
		assert.NoError(t, svc.Verify(ctx, user.ID, challenge.Code, auth.OTPPurposeVerification))
	})

	t.Run("no challenge issued", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		err := svc.Verify(ctx, user.ID, "123456", auth.OTPPurposeVerification)
		assert.ErrorIs(t, err, auth.ErrOTPNotFound)
	})

	t.Run("expired code", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)

		clock := time.Now()
		svc := auth.NewOTPService(repo, auth.WithOTPClock(func() time.Time { return clock }))

		challenge, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		clock = clock.Add(auth.DefaultOTPTTL + time.Minute)

		err = svc.Verify(ctx, user.ID, challenge.Code, auth.OTPPurposeVerification)
		assert.ErrorIs(t, err, auth.ErrOTPExpired)
	})

	t.Run("reissue invalidates the prior code", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		first, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		second, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		err = svc.Verify(ctx, user.ID, first.Code, auth.OTPPurposeVerification)
		if first.Code == second.Code {
			// duplicate random codes resolve to the newest challenge
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, auth.ErrOTPConsumed)
			assert.NoError(t, svc.Verify(ctx, user.ID, second.Code, auth.OTPPurposeVerification))
		}
	})

	t.Run("purposes are isolated", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo)

		verification, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		reset, err := svc.Issue(ctx, user.ID, auth.OTPPurposePasswordReset)
		require.NoError(t, err)

		// the reset issue must not invalidate the verification challenge
		assert.NoError(t, svc.Verify(ctx, user.ID, verification.Code, auth.OTPPurposeVerification))
		assert.NoError(t, svc.Verify(ctx, user.ID, reset.Code, auth.OTPPurposePasswordReset))
	})

	t.Run("codes are scoped to the account", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		userA := seedUser(t, repo)
		userB := seedUser(t, repo, func(u *auth.User) {
			u.Email = "ravi@example.com"
			u.Phone = "+919812345678"
		})
		svc := auth.NewOTPService(repo)

		challenge, err := svc.Issue(ctx, userA.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)

		err = svc.Verify(ctx, userB.ID, challenge.Code, auth.OTPPurposeVerification)
		assert.ErrorIs(t, err, auth.ErrOTPNotFound)
	})

	t.Run("respects a custom code length", func(t *testing.T) {
		_, repo := setupRepoManager(t)
		user := seedUser(t, repo)
		svc := auth.NewOTPService(repo, auth.WithOTPLength(8))

		challenge, err := svc.Issue(ctx, user.ID, auth.OTPPurposeVerification)
		require.NoError(t, err)
		assert.Len(t, challenge.Code, 8)
	})
}
