package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Credential errors. Login failures are always reported through
// ErrInvalidCredentials to avoid account enumeration.
var (
	ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
				WithTextCode("INVALID_CREDENTIALS").
				WithCode(goerrors.CodeUnauthorized)

	ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
				WithTextCode("IDENTITY_NOT_FOUND").
				WithCode(goerrors.CodeUnauthorized)

	ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
				WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
				WithCode(goerrors.CodeUnauthorized)

	ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
				WithTextCode("EMPTY_PASSWORD").
				WithCode(goerrors.CodeBadRequest)

	ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
					WithTextCode("PASSWORD_MISMATCH").
					WithCode(goerrors.CodeUnauthorized)
)

// Token errors surfaced by the token service and refresh rotation.
var (
	ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
			WithTextCode("TOKEN_EXPIRED").
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
				WithTextCode("TOKEN_MALFORMED").
				WithCode(goerrors.CodeUnauthorized)

	ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
			WithTextCode("TOKEN_REVOKED").
			WithCode(goerrors.CodeUnauthorized)

	ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryAuth).
				WithTextCode("TOKEN_NOT_FOUND").
				WithCode(goerrors.CodeUnauthorized)
)

// OTP verification errors.
var (
	ErrOTPExpired = goerrors.New("verification code expired", goerrors.CategoryValidation).
			WithTextCode("OTP_EXPIRED").
			WithCode(goerrors.CodeBadRequest)

	ErrOTPMismatch = goerrors.New("verification code does not match", goerrors.CategoryValidation).
			WithTextCode("OTP_MISMATCH").
			WithCode(goerrors.CodeBadRequest)

	ErrOTPConsumed = goerrors.New("verification code already used", goerrors.CategoryValidation).
			WithTextCode("OTP_CONSUMED").
			WithCode(goerrors.CodeBadRequest)

	ErrOTPNotFound = goerrors.New("no verification code issued", goerrors.CategoryValidation).
			WithTextCode("OTP_NOT_FOUND").
			WithCode(goerrors.CodeBadRequest)
)

// Account status errors. Accounts are never deleted, only gated by status.
var (
	ErrAccountPending = goerrors.New("account is pending verification", goerrors.CategoryAuth).
				WithTextCode("ACCOUNT_PENDING").
				WithCode(goerrors.CodeForbidden)

	ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
				WithTextCode("ACCOUNT_SUSPENDED").
				WithCode(goerrors.CodeForbidden)

	ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
				WithTextCode("ACCOUNT_DISABLED").
				WithCode(goerrors.CodeForbidden)

	ErrAlreadyVerified = goerrors.New("account is already verified", goerrors.CategoryConflict).
				WithTextCode("ALREADY_VERIFIED").
				WithCode(goerrors.CodeConflict)
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode("INVALID_USER_STATE_TRANSITION").
	WithCode(goerrors.CodeBadRequest)

// ErrPermissionDenied is the authorization denial for role/ownership checks.
var ErrPermissionDenied = goerrors.New("permission denied", goerrors.CategoryAuthz).
	WithTextCode("PERMISSION_DENIED").
	WithCode(goerrors.CodeForbidden)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func statusAuthError(status UserStatus) error {
	switch status {
	case UserStatusActive:
		return nil
	case UserStatusPending:
		return ErrAccountPending
	case UserStatusSuspended:
		return ErrAccountSuspended
	case UserStatusDisabled:
		return ErrAccountDisabled
	default:
		return ErrAccountDisabled
	}
}
