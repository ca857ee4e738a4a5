package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront-backend/internal/shared/utils"
)

// ClientIPMiddleware resolves the caller's IP once per request and
// publishes it under the "client_ip" gin key for downstream handlers.
//
// Register this early in the middleware chain so all handlers see it.
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("client_ip", utils.ExtractClientIP(c))
		c.Next()
	}
}
