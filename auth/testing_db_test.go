package auth_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/farmkeep/farmkeep/auth"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	require.NoError(t, auth.CreateSchema(context.Background(), db))

	return db
}

func setupRepoManager(t *testing.T) (*bun.DB, auth.RepositoryManager) {
	t.Helper()

	db := setupTestDB(t)
	repo := auth.NewRepositoryManager(db)
	repo.MustValidate()

	return db, repo
}

func seedUser(t *testing.T, repo auth.RepositoryManager, mutate ...func(*auth.User)) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword("s3cret-password")
	require.NoError(t, err)

	user := &auth.User{
		Role:          auth.RoleFarmer,
		Name:          "Asha Patel",
		Email:         "asha@example.com",
		Phone:         "+919876543210",
		PasswordHash:  hash,
		Status:        auth.UserStatusActive,
		EmailVerified: true,
		PhoneVerified: true,
	}

	for _, m := range mutate {
		if m != nil {
			m(user)
		}
	}

	created, err := repo.Users().Register(context.Background(), user)
	require.NoError(t, err)

	return created
}
