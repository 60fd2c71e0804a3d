package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/farmkeep/farmkeep/auth"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes a password", func(t *testing.T) {
		hash, err := auth.HashPassword("correct horse battery staple")

		assert.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "correct horse battery staple", hash)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		hash, err := auth.HashPassword("")

		assert.ErrorIs(t, err, auth.ErrNoEmptyString)
		assert.Empty(t, hash)
	})

	t.Run("hashes are salted", func(t *testing.T) {
		a, err := auth.HashPassword("same-password")
		assert.NoError(t, err)

		b, err := auth.HashPassword("same-password")
		assert.NoError(t, err)

		assert.NotEqual(t, a, b)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := auth.HashPassword("s3cret-password")
	assert.NoError(t, err)

	t.Run("accepts matching password", func(t *testing.T) {
		assert.NoError(t, auth.ComparePasswordAndHash("s3cret-password", hash))
	})

	t.Run("rejects wrong password", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("not-the-password", hash)
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("fails closed on garbage hash", func(t *testing.T) {
		err := auth.ComparePasswordAndHash("s3cret-password", "not-a-bcrypt-hash")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("fails closed on empty inputs", func(t *testing.T) {
		assert.Error(t, auth.ComparePasswordAndHash("", hash))
		assert.Error(t, auth.ComparePasswordAndHash("s3cret-password", ""))
	})
}
