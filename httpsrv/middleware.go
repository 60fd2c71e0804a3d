package httpsrv

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/farmkeep/farmkeep/auth"
)

// ClaimsKey is where validated claims live in fiber locals.
const ClaimsKey = "claims"

var errMissingToken = goerrors.New("missing or malformed bearer token", goerrors.CategoryAuth).
	WithTextCode("MISSING_TOKEN").
	WithCode(goerrors.CodeBadRequest)

var errMissingBody = goerrors.New("invalid request body", goerrors.CategoryBadInput).
	WithTextCode("INVALID_BODY")

// TokenValidator validates a raw access token. Mirrors the auth token
// service so the middleware stays decoupled from its concrete type.
type TokenValidator interface {
	Validate(tokenString string) (auth.AuthClaims, error)
}

// RequireAuth extracts and validates the Bearer token, then stores the
// claims in both fiber locals and the request context.
func RequireAuth(validator TokenValidator, logger auth.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw, err := bearerFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return respondError(c, logger, err)
		}

		claims, err := validator.Validate(raw)
		if err != nil {
			if auth.IsTokenExpiredError(err) {
				return respondError(c, logger, auth.ErrTokenExpired)
			}
			return respondError(c, logger, auth.ErrTokenMalformed)
		}

		c.Locals(ClaimsKey, claims)
		c.SetUserContext(auth.WithClaimsContext(c.UserContext(), claims))

		return c.Next()
	}
}

// RequireRoles short-circuits with 403 unless the caller holds one of the
// given roles. Must run after RequireAuth.
func RequireRoles(logger auth.Logger, roles ...auth.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromCtx(c)
		if !ok {
			return respondError(c, logger, auth.ErrTokenMalformed)
		}

		for _, role := range roles {
			if claims.HasRole(string(role)) {
				return c.Next()
			}
		}

		return respondError(c, logger, auth.ErrPermissionDenied)
	}
}

// ClaimsFromCtx pulls the validated claims out of fiber locals.
func ClaimsFromCtx(c *fiber.Ctx) (auth.AuthClaims, bool) {
	claims, ok := c.Locals(ClaimsKey).(auth.AuthClaims)
	return claims, ok
}

func bearerFromHeader(header string) (string, error) {
	const scheme = "Bearer "

	if len(header) <= len(scheme) {
		return "", errMissingToken
	}

	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", errMissingToken
	}

	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", errMissingToken
	}

	return token, nil
}
