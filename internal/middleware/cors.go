package middleware

import (
	"slices" // Origin list lookup
	"time"   // Preflight cache duration

	"github.com/gin-contrib/cors" // CORS middleware for Gin
	"github.com/gin-gonic/gin"    // Gin web framework
)

// CORS allows the configured browser origins to call the API.
// No origins disables CORS handling, "*" allows any origin without credentials.
func CORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return func(c *gin.Context) { c.Next() } // Same-origin callers only
	}
	cfg := cors.Config{
		AllowOrigins:     origins,                                                                                  // Allowed origins
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},                                      // Allowed methods
		AllowHeaders:     []string{"Content-Type", "Authorization", HeaderAPIKey, HeaderAdminKey, HeaderRequestID}, // Allowed headers
		ExposeHeaders:    []string{HeaderRequestID},                                                                // Readable by browsers
		AllowCredentials: true,                                                                                     // Cookies and auth headers
		MaxAge:           12 * time.Hour,                                                                           // Preflight cache
	}
	if slices.Contains(origins, "*") {
		cfg.AllowOrigins = nil       // Wildcard replaces the list
		cfg.AllowAllOrigins = true   // Any origin
		cfg.AllowCredentials = false // Browsers reject credentials with a wildcard
	}
	return cors.New(cfg)
}
