// Package auth verifies session tokens issued by the external identity provider.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AccessTokenCookie is the cookie the browser app stores the session token in.
const AccessTokenCookie = "access_token"

var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token is expired")
	ErrTokenInvalid   = errors.New("token is invalid")
)

// SessionClaims are the claims the identity provider puts into its access tokens.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID is the subject, the provider's user uuid.
func (c *SessionClaims) UserID() string {
	return c.Subject
}

// SessionVerifier checks HS256 tokens signed with the identity provider's shared secret.
type SessionVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewSessionVerifier returns a verifier. Empty issuer or audience disables that check.
func NewSessionVerifier(secret, issuer, audience string) (*SessionVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required for SessionVerifier")
	}
	return &SessionVerifier{secret: []byte(secret), issuer: issuer, audience: audience}, nil
}

// ParseToken validates the signature, expiry, issuer and audience and returns the claims.
func (v *SessionVerifier) ParseToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc)
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, ErrTokenExpired
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if v.audience != "" && !claims.VerifyAudience(v.audience, true) {
		return nil, fmt.Errorf("%w: unexpected audience", ErrTokenInvalid)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrTokenInvalid)
	}
	return claims, nil
}
