package api

import (
	"context"  // Context for database ping
	"net/http" // HTTP status codes
	"time"     // Timestamps and ping timeout

	"micropaper/internal/middleware" // Request id helpers
	"micropaper/internal/validator"  // Issuance limits

	"github.com/gin-gonic/gin" // Gin web framework
)

const (
	ServiceName    = "micropaper-api" // Service name reported by health checks
	ServiceVersion = "1.0.0"          // Service version reported by health checks
)

// Database states reported by /health
const (
	DatabaseConnected    = "connected"
	DatabaseDisconnected = "disconnected"
	DatabaseError        = "error"
)

// HealthChecker reports whether the journal database is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

func databaseStatus(ctx context.Context, hc HealthChecker) string {
	if hc == nil {
		return DatabaseDisconnected // No journal configured
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := hc.Ping(ctx); err != nil {
		return DatabaseError
	}
	return DatabaseConnected
}

// HealthHandler is the liveness check. It always answers 200.
func HealthHandler(environment string, hc HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",                               // Process is up
			"service":     ServiceName,                             // Service name
			"version":     ServiceVersion,                          // Service version
			"environment": environment,                             // Deployment environment
			"database":    databaseStatus(c.Request.Context(), hc), // Journal reachability
			"timestamp":   time.Now().UTC().Format(time.RFC3339),   // Current time
			"requestId":   middleware.GetRequestID(c),              // Correlation id
		})
	}
}

// UnitHealthHandler is the per-unit health check
func UnitHealthHandler(unit string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",                             // Unit is up
			"service":   unit,                                  // Unit name
			"version":   ServiceVersion,                        // Service version
			"timestamp": time.Now().UTC().Format(time.RFC3339), // Current time
			"requestId": middleware.GetRequestID(c),            // Correlation id
		})
	}
}

// CustodianInfoHandler describes the custodian unit and its limits
func CustodianInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "custodian",
			"description": "Mock custodian issuing short-term notes to verified wallets",
			"limits": gin.H{
				"minimumAmount":   validator.UnitSize,        // Smallest note
				"amountMultiple":  validator.UnitSize,        // Amount granularity
				"maxMaturityDays": validator.MaxMaturityDays, // Maturity horizon
			},
			"endpoints": gin.H{
				"issue": "POST /api/custodian/issue",
				"note":  "GET /api/custodian/notes/{isin}",
				"notes": "GET /api/custodian/notes",
			},
			"requestId": middleware.GetRequestID(c), // Correlation id
		})
	}
}

// ComplianceInfoHandler describes the compliance unit
func ComplianceInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "compliance",
			"description": "Mock compliance registry of wallet verification state",
			"endpoints": gin.H{
				"status":   "GET /api/compliance/{walletAddress}",
				"verify":   "POST /api/compliance/verify/{walletAddress}",
				"stats":    "GET /api/compliance/stats",
				"verified": "GET /api/compliance/verified",
			},
			"requestId": middleware.GetRequestID(c), // Correlation id
		})
	}
}

// RootHandler returns service information
func RootHandler(environment string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     ServiceName,
			"version":     ServiceVersion,
			"environment": environment,
			"endpoints": gin.H{
				"health":     "/health",
				"metrics":    "/metrics",
				"compliance": "/api/compliance",
				"custodian":  "/api/custodian",
			},
			"requestId": middleware.GetRequestID(c), // Correlation id
		})
	}
}
