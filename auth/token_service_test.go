package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/farmkeep/farmkeep/auth"
)

// MockIdentity implements auth.Identity for testing
type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) ID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Email() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockIdentity) Role() string {
	args := m.Called()
	return args.String(0)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

func newTestIdentity(id, role string) *MockIdentity {
	identity := &MockIdentity{}
	identity.On("ID").Return(id)
	identity.On("Role").Return(role)
	return identity
}

func TestNewTokenService(t *testing.T) {
	signingKey := []byte("test-signing-key")
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	t.Run("creates token service with logger", func(t *testing.T) {
		logger := &MockLogger{}

		service := auth.NewTokenService(signingKey, time.Hour, issuer, audience, logger)

		assert.NotNil(t, service)
	})

	t.Run("creates token service with nil logger", func(t *testing.T) {
		service := auth.NewTokenService(signingKey, time.Hour, issuer, audience, nil)

		assert.NotNil(t, service)
	})

	t.Run("defaults the access token lifetime", func(t *testing.T) {
		service := auth.NewTokenService(signingKey, 0, issuer, audience, nil)

		assert.Equal(t, time.Hour, service.AccessTTL())
	})
}

func TestTokenService_Generate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	service := auth.NewTokenService(signingKey, time.Hour, issuer, audience, nil)

	t.Run("generates valid JWT token", func(t *testing.T) {
		identity := newTestIdentity("user-123", "farmer")

		tokenString, expiresAt, err := service.Generate(identity)

		assert.NoError(t, err)
		assert.NotEmpty(t, tokenString)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		token, err := jwt.ParseWithClaims(tokenString, &auth.JWTClaims{}, func(token *jwt.Token) (any, error) {
			return signingKey, nil
		})

		assert.NoError(t, err)
		assert.True(t, token.Valid)

		claims, ok := token.Claims.(*auth.JWTClaims)
		assert.True(t, ok)
		assert.Equal(t, "user-123", claims.Subject())
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "farmer", claims.Role())
		assert.Equal(t, issuer, claims.Issuer)
		assert.Equal(t, audience, claims.Audience)
		assert.NotEmpty(t, claims.ID)
		assert.NotNil(t, claims.RegisteredClaims.IssuedAt)
		assert.NotNil(t, claims.RegisteredClaims.ExpiresAt)

		identity.AssertExpectations(t)
	})

	t.Run("each token carries a unique id", func(t *testing.T) {
		identity := newTestIdentity("user-123", "farmer")

		first, _, err := service.Generate(identity)
		assert.NoError(t, err)

		second, _, err := service.Generate(identity)
		assert.NoError(t, err)

		firstClaims, err := service.Validate(first)
		assert.NoError(t, err)
		secondClaims, err := service.Validate(second)
		assert.NoError(t, err)

		assert.NotEqual(t,
			firstClaims.(*auth.JWTClaims).ID,
			secondClaims.(*auth.JWTClaims).ID,
		)
	})
}

func TestTokenService_Validate(t *testing.T) {
	signingKey := []byte("test-signing-key")
	issuer := "test-issuer"
	audience := jwt.ClaimStrings{"test-audience"}

	service := auth.NewTokenService(signingKey, time.Hour, issuer, audience, nil)

	t.Run("round-trips claims", func(t *testing.T) {
		identity := newTestIdentity("user-123", "veterinarian")

		tokenString, _, err := service.Generate(identity)
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)
		assert.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID())
		assert.Equal(t, "veterinarian", claims.Role())
		assert.True(t, claims.HasRole("veterinarian"))
		assert.False(t, claims.HasRole("admin"))
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		other := auth.NewTokenService([]byte("other-key"), time.Hour, issuer, audience, nil)

		tokenString, _, err := other.Generate(newTestIdentity("user-123", "farmer"))
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)
		assert.Nil(t, claims)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("rejects garbage token", func(t *testing.T) {
		claims, err := service.Validate("not-a-jwt")
		assert.Nil(t, claims)
		assert.True(t, auth.IsMalformedError(err))
	})

	t.Run("rejects expired token", func(t *testing.T) {
		past := func() time.Time { return time.Now().Add(-2 * time.Hour) }
		issuedInPast := auth.NewTokenService(signingKey, time.Hour, issuer, audience, nil).WithClock(past)

		tokenString, _, err := issuedInPast.Generate(newTestIdentity("user-123", "farmer"))
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)
		assert.Nil(t, claims)
		assert.True(t, auth.IsTokenExpiredError(err))
	})

	t.Run("rejects unsigned token", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				Audience:  audience,
				Subject:   "user-123",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)
		assert.Nil(t, claims)
		assert.Error(t, err)
	})

	t.Run("rejects wrong issuer", func(t *testing.T) {
		other := auth.NewTokenService(signingKey, time.Hour, "someone-else", audience, nil)

		tokenString, _, err := other.Generate(newTestIdentity("user-123", "farmer"))
		assert.NoError(t, err)

		claims, err := service.Validate(tokenString)
		assert.Nil(t, claims)
		assert.Error(t, err)
	})
}

func TestJWTClaims_Can(t *testing.T) {
	claims := &auth.JWTClaims{UserRole: "farmer"}

	assert.True(t, claims.Can(auth.ResourceAnimal, auth.ActionCreate, auth.OwnershipFacts{}))
	assert.True(t, claims.Can(auth.ResourceAnimal, auth.ActionRead, auth.OwnershipFacts{Owns: true}))
	assert.False(t, claims.Can(auth.ResourceAnimal, auth.ActionRead, auth.OwnershipFacts{}))
	assert.False(t, claims.Can(auth.ResourceUser, auth.ActionRead, auth.OwnershipFacts{Owns: true}))
}
