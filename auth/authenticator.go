package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OTPNotifier receives freshly issued challenges. Delivery (email/SMS) is an
// external collaborator; the default sink only logs.
type OTPNotifier interface {
	Notify(ctx context.Context, user *User, challenge *OTPChallenge) error
}

// OTPNotifierFunc adapts a function into an OTPNotifier.
type OTPNotifierFunc func(ctx context.Context, user *User, challenge *OTPChallenge) error

// Notify implements OTPNotifier.
func (f OTPNotifierFunc) Notify(ctx context.Context, user *User, challenge *OTPChallenge) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, challenge)
}

type logOTPNotifier struct {
	logger Logger
}

func (n logOTPNotifier) Notify(_ context.Context, user *User, challenge *OTPChallenge) error {
	n.logger.Info("verification code issued", "email", user.Email, "purpose", challenge.Purpose)
	return nil
}

// Auther orchestrates login, registration, verification, and token
// lifecycle over the credential store.
type Auther struct {
	provider     IdentityProvider
	repo         RepositoryManager
	tokenService TokenService
	refresh      *RefreshTokenService
	otp          *OTPService
	register     *RegisterUserHandler
	accessTTL    time.Duration
	logger       Logger
	activitySink ActivitySink
	notifier     OTPNotifier
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(provider IdentityProvider, repo RepositoryManager, opts Config) *Auther {
	logger := defLogger{}

	tokenService := NewTokenService(
		[]byte(opts.GetSigningKey()),
		opts.GetAccessTokenTTL(),
		opts.GetIssuer(),
		jwt.ClaimStrings(opts.GetAudience()),
		logger,
	)

	a := &Auther{
		provider:     provider,
		repo:         repo,
		tokenService: tokenService,
		refresh:      NewRefreshTokenService(repo, WithRefreshTTL(opts.GetRefreshTokenTTL())),
		otp: NewOTPService(repo,
			WithOTPLength(opts.GetOTPLength()),
			WithOTPTTL(opts.GetOTPTTL()),
		),
		register:     NewRegisterUserHandler(repo),
		accessTTL:    opts.GetAccessTokenTTL(),
		logger:       logger,
		activitySink: noopActivitySink{},
	}
	a.notifier = logOTPNotifier{logger: a.logger}

	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
		s.notifier = logOTPNotifier{logger: logger}
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithOTPNotifier configures the delivery hook for issued challenges.
func (s *Auther) WithOTPNotifier(notifier OTPNotifier) *Auther {
	if notifier != nil {
		s.notifier = notifier
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// RefreshTokens returns the refresh token service.
func (s *Auther) RefreshTokens() *RefreshTokenService {
	return s.refresh
}

// OTP returns the OTP service.
func (s *Auther) OTP() *OTPService {
	return s.otp
}

// Login verifies credentials and mints an access/refresh token pair.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	if identity == nil {
		s.logger.Error("Login identity is nil")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrInvalidCredentials.Error(),
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := s.issueTokenPair(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. Rotation-on-use: the old
// token is revoked atomically, so a replayed token fails with Revoked.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, newRaw, record, err := s.refresh.Rotate(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("Refresh rotation failed", "error", err)
		return nil, err
	}

	identity, err := s.provider.FindIdentityByIdentifier(ctx, userID.String())
	if err != nil {
		// rotation already happened, make sure the fresh token is not usable
		if revokeErr := s.refresh.Revoke(ctx, newRaw); revokeErr != nil {
			s.logger.Error("failed to revoke orphaned refresh token", "error", revokeErr)
		}
		s.logger.Error("Refresh identity lookup failed", "error", err)
		return nil, err
	}

	if err := statusAuthError(statusOf(identity)); err != nil {
		if revokeErr := s.refresh.Revoke(ctx, newRaw); revokeErr != nil {
			s.logger.Error("failed to revoke refresh token for gated account", "error", revokeErr)
		}
		return nil, err
	}

	access, expiresAt, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"token_id": record.ID.String(),
	})

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: newRaw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// Logout revokes the refresh token. Revoking twice is a no-op success.
func (s *Auther) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refresh.Revoke(ctx, refreshToken); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRevoked, ActorRef{Type: "user"}, "", nil)
	return nil
}

// Register creates a pending account with its role profile and issues the
// activation challenge.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	user, err := s.register.Execute(ctx, msg)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventUserRegistered, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"role": user.Role,
	})

	if err := s.issueAndNotify(ctx, user, OTPPurposeVerification); err != nil {
		// the account exists; the caller can resend the code
		s.logger.Error("failed to issue verification code", "error", err, "user_id", user.ID.String())
	}

	return user, nil
}

// VerifyAccount consumes a verification code and activates the account.
func (s *Auther) VerifyAccount(ctx context.Context, identifier, code string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	if user.IsVerified() {
		return ErrAlreadyVerified
	}

	// consume-and-activate commit together: a failed activation must not
	// burn the code
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.otp.VerifyTx(ctx, tx, user.ID, code, OTPPurposeVerification); err != nil {
			return err
		}
		return s.repo.Users().MarkVerifiedTx(ctx, tx, user.ID)
	})
	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventUserVerified, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return nil
}

// ResendVerification issues a fresh activation code, invalidating the prior
// one.
func (s *Auther) ResendVerification(ctx context.Context, identifier string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}

	if user.IsVerified() {
		return ErrAlreadyVerified
	}

	return s.issueAndNotify(ctx, user, OTPPurposeVerification)
}

// ChangePassword rotates the password for an authenticated account and
// invalidates every live session.
func (s *Auther) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, userID)
	if err != nil {
		return err
	}

	if err := ComparePasswordAndHash(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(next, user.PasswordHash); err == nil {
		return goerrors.New("new password must differ from the current password", goerrors.CategoryValidation).
			WithTextCode("PASSWORD_REUSED").
			WithCode(goerrors.CodeBadRequest)
	}

	hash, err := HashPassword(next)
	if err != nil {
		return err
	}

	if err := s.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.refresh.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to revoke sessions after password change", "error", err)
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), nil)

	return nil
}

// RequestPasswordReset issues a reset code. It succeeds even for unknown
// identifiers so the endpoint does not leak which accounts exist.
func (s *Auther) RequestPasswordReset(ctx context.Context, identifier string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	return s.issueAndNotify(ctx, user, OTPPurposePasswordReset)
}

// ResetPasswordWithCode finalizes a password reset with a valid code.
func (s *Auther) ResetPasswordWithCode(ctx context.Context, identifier, code, newPassword string) error {
	user, err := s.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrOTPMismatch
		}
		return err
	}

	if err := s.otp.Verify(ctx, user.ID, code, OTPPurposePasswordReset); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return err
	}

	if err := s.refresh.RevokeAllForUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to revoke sessions after password reset", "error", err)
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"via": "reset_code",
	})

	return nil
}

// ClaimsFromToken validates a raw access token. Stateless: signature and
// expiry only, no store lookup.
func (s *Auther) ClaimsFromToken(raw string) (AuthClaims, error) {
	return s.tokenService.Validate(raw)
}

func (s *Auther) issueTokenPair(ctx context.Context, identity Identity) (*TokenPair, error) {
	access, expiresAt, err := s.tokenService.Generate(identity)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity has a malformed id")
	}

	refreshRaw, _, err := s.refresh.Issue(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refreshRaw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(time.Until(expiresAt).Seconds()),
	}, nil
}

func (s *Auther) issueAndNotify(ctx context.Context, user *User, purpose OTPPurpose) error {
	challenge, err := s.otp.Issue(ctx, user.ID, purpose)
	if err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventOTPIssued, ActorRef{ID: user.ID.String(), Type: "user"}, user.ID.String(), map[string]any{
		"purpose": purpose,
	})

	if err := s.notifier.Notify(ctx, user, challenge); err != nil {
		s.logger.Error("otp notifier error", "error", err)
	}

	return nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

type statusAwareIdentity interface {
	Status() UserStatus
}

func statusOf(identity Identity) UserStatus {
	if identity == nil {
		return ""
	}

	if sa, ok := identity.(statusAwareIdentity); ok {
		return sa.Status()
	}

	return UserStatusActive
}

var _ Authenticator = (*Auther)(nil)
