package middleware

import (
	"strconv" // Status formatting
	"time"    // Request timing

	"micropaper/internal/metrics" // Prometheus collectors

	"github.com/gin-gonic/gin" // Gin web framework
)

// Metrics records request latency by route template
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath() // Template such as /api/compliance/:walletAddress
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
