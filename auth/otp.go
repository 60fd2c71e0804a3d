package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"math/big"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OTPPurpose scopes a challenge to the flow that issued it.
type OTPPurpose = string

const (
	// OTPPurposeVerification confirms account ownership before activation
	OTPPurposeVerification OTPPurpose = "account_verification"
	// OTPPurposePasswordReset authorizes a password reset
	OTPPurposePasswordReset OTPPurpose = "password_reset"
)

// DefaultOTPLength is the number of digits in a generated code
const DefaultOTPLength = 6

// DefaultOTPTTL is how long a challenge stays valid
const DefaultOTPTTL = 10 * time.Minute

// OTPChallenge is a short-lived one-time code bound to an account. At most
// one live challenge exists per account and purpose; issuing a new code
// consumes any prior one.
type OTPChallenge struct {
	bun.BaseModel `bun:"table:otp_challenges,alias:otp"`

	ID         uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID     uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Code       string     `bun:"code,notnull" json:"-"`
	Purpose    OTPPurpose `bun:"purpose,notnull" json:"purpose,omitempty"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	ConsumedAt *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt  *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Consumed reports whether the challenge was already used or invalidated.
func (c *OTPChallenge) Consumed() bool {
	return c.ConsumedAt != nil
}

// GenerateOTPCode produces a random numeric code of the given length using
// crypto/rand.
func GenerateOTPCode(length int) (string, error) {
	if length <= 0 {
		length = DefaultOTPLength
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}

// OTPService issues and verifies one-time codes. Throttling repeated
// attempts is the caller's concern, not enforced here.
type OTPService struct {
	repo   RepositoryManager
	length int
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

// OTPOption customizes the OTP service.
type OTPOption func(*OTPService)

// WithOTPLength overrides the generated code length.
func WithOTPLength(length int) OTPOption {
	return func(s *OTPService) {
		if length > 0 {
			s.length = length
		}
	}
}

// WithOTPTTL overrides the challenge lifetime.
func WithOTPTTL(ttl time.Duration) OTPOption {
	return func(s *OTPService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithOTPClock injects a custom clock (useful for tests).
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOTPLogger overrides the logger.
func WithOTPLogger(logger Logger) OTPOption {
	return func(s *OTPService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewOTPService creates an OTP service backed by the repository manager.
func NewOTPService(repo RepositoryManager, opts ...OTPOption) *OTPService {
	s := &OTPService{
		repo:   repo,
		length: DefaultOTPLength,
		ttl:    DefaultOTPTTL,
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

// Issue generates a fresh challenge for the account, invalidating any prior
// unconsumed challenge for the same purpose.
func (s *OTPService) Issue(ctx context.Context, userID uuid.UUID, purpose OTPPurpose) (*OTPChallenge, error) {
	code, err := GenerateOTPCode(s.length)
	if err != nil {
		return nil, err
	}

	now := s.now()
	challenge := &OTPChallenge{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*OTPChallenge)(nil)).
			Set("consumed_at = ?", now).
			Where("user_id = ?", userID).
			Where("purpose = ?", purpose).
			Where("consumed_at IS NULL").
			Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate prior verification codes")
		}

		if _, err := tx.NewInsert().Model(challenge).Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification code")
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return challenge, nil
}

// Verify checks the provided code against the account's challenges. The
// challenge is consumed exactly once; expired, mismatched, and reused codes
// fail with their own error.
func (s *OTPService) Verify(ctx context.Context, userID uuid.UUID, code string, purpose OTPPurpose) error {
	return s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.VerifyTx(ctx, tx, userID, code, purpose)
	})
}

// VerifyTx runs verification inside the caller's transaction, so consuming
// the code and any follow-up write commit or roll back together.
func (s *OTPService) VerifyTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, purpose OTPPurpose) error {
	now := s.now()

	count, err := tx.NewSelect().
		Model((*OTPChallenge)(nil)).
		Where("user_id = ?", userID).
		Where("purpose = ?", purpose).
		Count(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification codes")
	}
	if count == 0 {
		return ErrOTPNotFound
	}

	challenge := &OTPChallenge{}
	err = tx.NewSelect().
		Model(challenge).
		Where("user_id = ?", userID).
		Where("purpose = ?", purpose).
		Where("code = ?", code).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return ErrOTPMismatch
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up verification code")
	}

	if challenge.Consumed() {
		return ErrOTPConsumed
	}

	if now.After(challenge.ExpiresAt) {
		return ErrOTPExpired
	}

	// Guarded update so two concurrent verifies cannot both consume.
	res, err := tx.NewUpdate().
		Model((*OTPChallenge)(nil)).
		Set("consumed_at = ?", now).
		Where("id = ?", challenge.ID).
		Where("consumed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume verification code")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read consume result")
	}
	if affected == 0 {
		return ErrOTPConsumed
	}

	return nil
}
