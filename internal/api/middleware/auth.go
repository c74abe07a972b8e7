package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huecodes/hunter/internal/logger"
)

// TokenAuth returns a middleware enforcing a shared bearer token on the
// trigger and admin surface. An empty configured token disables the check
// (local development).
// Parameters:
//   - token: expected bearer token.
// Returns:
//   - gin.HandlerFunc: middleware handler.
func TokenAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		provided := strings.TrimPrefix(header, "Bearer ")
		if provided == header || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			logger.CtxWarn(c.Request.Context(), "Rejected unauthenticated request: path=%s, client_ip=%s",
				c.Request.URL.Path, c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}

		c.Next()
	}
}
