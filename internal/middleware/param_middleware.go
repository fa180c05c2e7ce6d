package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ExtractUUIDParam validates a uuid path parameter and stores its canonical form under contextKey.
func ExtractUUIDParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param(paramName))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_parameter",
				"details": fmt.Sprintf("invalid %s", paramName),
			})
			return
		}
		c.Set(contextKey, id.String())
		c.Next()
	}
}
