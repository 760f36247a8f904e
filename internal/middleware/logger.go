package middleware

import (
	"time" // Request timing

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// RequestLogger logs one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now() // Start time
		c.Next()            // Serve the request
		entry := logrus.WithFields(logrus.Fields{
			"request_id": GetRequestID(c),                  // Correlation id
			"method":     c.Request.Method,                 // HTTP method
			"path":       c.Request.URL.Path,               // Request path
			"status":     c.Writer.Status(),                // Response status
			"latency_ms": time.Since(start).Milliseconds(), // Duration
			"client_ip":  c.ClientIP(),                     // Caller address
		})
		if c.Writer.Status() >= 500 {
			entry.Error("Request completed")
			return
		}
		entry.Info("Request completed")
	}
}
