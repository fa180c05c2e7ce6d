package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/agency-crm/pkg/auth"
)

// Context keys set by RequireAuth.
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
)

// TokenParser validates a session token.
type TokenParser interface {
	ParseToken(tokenString string) (*auth.SessionClaims, error)
}

// AuthMiddleware authenticates requests with the identity provider's session token.
type AuthMiddleware struct {
	parser TokenParser
	logger *zap.Logger
}

func NewAuthMiddleware(parser TokenParser, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{parser: parser, logger: logger}
}

// RequireAuth reads the token from the access_token cookie, falling back to the
// Authorization header, and stores the user id in the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(auth.AccessTokenCookie)
		if err != nil || token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "details": "token_missing"})
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "details": "token_format"})
				return
			}
			token = parts[1]
		}

		claims, err := m.parser.ParseToken(token)
		if err != nil {
			details := "token_invalid"
			if errors.Is(err, auth.ErrTokenExpired) {
				details = "token_expired"
			}
			m.logger.Debug("Rejected session token", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "details": details})
			return
		}

		c.Set(ContextUserID, claims.UserID())
		c.Set(ContextEmail, claims.Email)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
