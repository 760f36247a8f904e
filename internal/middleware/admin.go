package middleware

import (
	"micropaper/internal/apperr" // Error taxonomy

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// HeaderAdminKey carries the admin credential
const HeaderAdminKey = "X-Admin-Key"

// AdminOnlyMiddleware guards admin operations with a separate static key.
// An empty key leaves the route protected by the API key alone.
func AdminOnlyMiddleware(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.Next() // No admin key configured
			return
		}
		if !matches(c.GetHeader(HeaderAdminKey), adminKey) {
			logrus.WithFields(logrus.Fields{
				"request_id": GetRequestID(c), // Correlation id
				"path":       c.Request.URL.Path,
			}).Warn("Admin key mismatch")
			_ = c.Error(apperr.Forbidden("Admin access required. Invalid or missing X-Admin-Key header")) // Rendered by ErrorEnvelope
			c.Abort()
			return
		}
		c.Next() // If admin, proceed to the next handler
	}
}
