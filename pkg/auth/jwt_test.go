package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "5d2c1b0a-8e7f-4a6b-9c3d-2e1f0a9b8c7d"

func signClaims(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims() SessionClaims {
	return SessionClaims{
		Email: "owner@agency.test",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testSubject,
			Issuer:    "https://id.agency.test/auth/v1",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestSessionVerifier_ParseToken(t *testing.T) {
	v, err := NewSessionVerifier("shared-secret", "https://id.agency.test/auth/v1", "authenticated")
	require.NoError(t, err)

	claims := validClaims()
	token := signClaims(t, jwt.SigningMethodHS256, []byte("shared-secret"), &claims)

	got, err := v.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, testSubject, got.UserID())
	assert.Equal(t, "owner@agency.test", got.Email)
}

func TestSessionVerifier_Rejects(t *testing.T) {
	v, err := NewSessionVerifier("shared-secret", "https://id.agency.test/auth/v1", "authenticated")
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "https://evil.test"

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	badSubject := validClaims()
	badSubject.Subject = "42"

	good := validClaims()

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not.a.jwt", ErrTokenMalformed},
		{"expired", signClaims(t, jwt.SigningMethodHS256, []byte("shared-secret"), &expired), ErrTokenExpired},
		{"other secret", signClaims(t, jwt.SigningMethodHS256, []byte("other"), &good), ErrTokenInvalid},
		{"none alg", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, &good), ErrTokenInvalid},
		{"wrong issuer", signClaims(t, jwt.SigningMethodHS256, []byte("shared-secret"), &wrongIssuer), ErrTokenInvalid},
		{"wrong audience", signClaims(t, jwt.SigningMethodHS256, []byte("shared-secret"), &wrongAudience), ErrTokenInvalid},
		{"non uuid subject", signClaims(t, jwt.SigningMethodHS256, []byte("shared-secret"), &badSubject), ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseToken(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewSessionVerifier_RequiresSecret(t *testing.T) {
	_, err := NewSessionVerifier("", "", "")
	assert.Error(t, err)
}
