package middleware

import (
	"crypto/subtle" // Constant-time comparison
	"net/http"      // HTTP methods

	"micropaper/internal/apperr" // Error taxonomy

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// HeaderAPIKey carries the shared static credential
const HeaderAPIKey = "X-API-Key"

// publicPaths skip the credential check
var publicPaths = map[string]bool{
	"/":        true, // Service info
	"/health":  true, // Liveness check
	"/metrics": true, // Prometheus scrape
}

// APIKeyAuth checks the shared static credential on every non-public route.
// An empty key disables the check.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || publicPaths[c.Request.URL.Path] || c.Request.Method == http.MethodOptions {
			c.Next() // No credential required
			return
		}
		if !matches(c.GetHeader(HeaderAPIKey), key) {
			logrus.WithFields(logrus.Fields{
				"request_id": GetRequestID(c), // Correlation id
				"path":       c.Request.URL.Path,
			}).Warn("API key mismatch")
			_ = c.Error(apperr.Unauthorized("Invalid or missing API key")) // Rendered by ErrorEnvelope
			c.Abort()
			return
		}
		c.Next() // Proceed to the next handler
	}
}

// matches compares credentials in constant time
func matches(got, want string) bool {
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
