package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultRefreshTokenTTL is how long a refresh token stays exchangeable.
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// refreshTokenBytes is the entropy of the opaque identifier.
const refreshTokenBytes = 32

// RefreshToken is the persisted record backing an opaque refresh credential.
// Only a hash of the identifier is stored; the raw value exists client-side.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID    uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenHash string     `bun:"token_hash,notnull,unique" json:"-"`
	IssuedAt  time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// Revoked reports whether the record was invalidated.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// GenerateRefreshToken returns the raw opaque identifier handed to the
// client and the hash that gets persisted.
func GenerateRefreshToken() (raw string, hash string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token")
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashRefreshToken(raw), nil
}

// HashRefreshToken derives the storage key for a raw token.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RefreshTokenService persists, rotates, and revokes refresh tokens.
// Rotation is atomic: of two concurrent exchanges on the same token exactly
// one succeeds, the other observes a revoked record.
type RefreshTokenService struct {
	repo   RepositoryManager
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

// RefreshOption customizes the refresh token service.
type RefreshOption func(*RefreshTokenService)

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) RefreshOption {
	return func(s *RefreshTokenService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRefreshClock injects a custom clock (useful for tests).
func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(s *RefreshTokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRefreshLogger overrides the logger.
func WithRefreshLogger(logger Logger) RefreshOption {
	return func(s *RefreshTokenService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRefreshTokenService creates a refresh token service backed by the
// repository manager.
func NewRefreshTokenService(repo RepositoryManager, opts ...RefreshOption) *RefreshTokenService {
	s := &RefreshTokenService{
		repo:   repo,
		ttl:    DefaultRefreshTokenTTL,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Issue mints a new refresh token for the account. Any prior live token for
// the account is revoked: one active session per account.
func (s *RefreshTokenService) Issue(ctx context.Context, userID uuid.UUID) (string, *RefreshToken, error) {
	raw, hash, err := GenerateRefreshToken()
	if err != nil {
		return "", nil, err
	}

	now := s.now()
	record := &RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: hash,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.revokeActiveTx(ctx, tx, userID, now); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store refresh token")
		}

		return nil
	})

	if err != nil {
		return "", nil, err
	}

	return raw, record, nil
}

// Rotate exchanges a raw refresh token for a fresh one. The old record is
// revoked and a new one created inside one transaction; the revocation is a
// guarded update so a concurrent rotation on the same token loses cleanly.
func (s *RefreshTokenService) Rotate(ctx context.Context, raw string) (uuid.UUID, string, *RefreshToken, error) {
	hash := HashRefreshToken(raw)
	now := s.now()

	newRaw, newHash, err := GenerateRefreshToken()
	if err != nil {
		return uuid.Nil, "", nil, err
	}

	var record *RefreshToken
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := &RefreshToken{}
		err := tx.NewSelect().
			Model(current).
			Where("token_hash = ?", hash).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if goerrors.Is(err, sql.ErrNoRows) {
				return ErrTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
		}

		if current.Revoked() {
			return ErrTokenRevoked
		}

		if now.After(current.ExpiresAt) {
			return ErrTokenExpired
		}

		res, err := tx.NewUpdate().
			Model((*RefreshToken)(nil)).
			Set("revoked_at = ?", now).
			Where("id = ?", current.ID).
			Where("revoked_at IS NULL").
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read revoke result")
		}
		if affected == 0 {
			return ErrTokenRevoked
		}

		record = &RefreshToken{
			ID:        uuid.New(),
			UserID:    current.UserID,
			TokenHash: newHash,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.ttl),
		}

		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store rotated refresh token")
		}

		return nil
	})

	if err != nil {
		return uuid.Nil, "", nil, err
	}

	return record.UserID, newRaw, record, nil
}

// Revoke invalidates a refresh token (logout). Revoking an already revoked
// token is a no-op success; an unknown token fails with ErrTokenNotFound.
func (s *RefreshTokenService) Revoke(ctx context.Context, raw string) error {
	hash := HashRefreshToken(raw)
	now := s.now()

	return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := &RefreshToken{}
		err := tx.NewSelect().
			Model(current).
			Where("token_hash = ?", hash).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if goerrors.Is(err, sql.ErrNoRows) {
				return ErrTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up refresh token")
		}

		if current.Revoked() {
			return nil
		}

		if _, err := tx.NewUpdate().
			Model((*RefreshToken)(nil)).
			Set("revoked_at = ?", now).
			Where("id = ?", current.ID).
			Where("revoked_at IS NULL").
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh token")
		}

		return nil
	})
}

// RevokeAllForUser invalidates every live token for an account, used when an
// account is suspended or its password changes.
func (s *RefreshTokenService) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	now := s.now()
	return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.revokeActiveTx(ctx, tx, userID, now)
	})
}

func (s *RefreshTokenService) revokeActiveTx(ctx context.Context, tx bun.Tx, userID uuid.UUID, now time.Time) error {
	if _, err := tx.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("revoked_at = ?", now).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Exec(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke active refresh tokens")
	}
	return nil
}
