package api

import (
	"micropaper/internal/apperr"     // Error taxonomy
	"micropaper/internal/config"     // Application configuration
	"micropaper/internal/middleware" // Middleware chain
	"micropaper/internal/registry"   // Compliance registry
	"micropaper/internal/utils"      // Read cache

	"github.com/gin-gonic/gin"                                // Gin web framework
	"github.com/prometheus/client_golang/prometheus/promhttp" // Metrics endpoint
)

// Deps collects everything the handlers need. Auditor, Cache, Limiter and
// Health may be nil.
type Deps struct {
	Config   *config.Config
	Registry *registry.Registry
	Issuer   Issuer
	Auditor  Auditor
	Cache    *utils.ReadCache
	Limiter  middleware.Limiter
	Health   HealthChecker
}

// NewRouter assembles the middleware chain and every route
func NewRouter(d Deps) *gin.Engine {
	cfg := d.Config
	r := gin.New()
	r.HandleMethodNotAllowed = true // 405 instead of 404 for a known path
	r.Use(
		middleware.RequestID(),                    // Correlation id first so every log line has it
		middleware.RequestLogger(),                // Access log
		middleware.Metrics(),                      // Request duration histogram
		middleware.ErrorEnvelope(cfg.DebugErrors), // Renders c.Errors
		middleware.Recovery(cfg.DebugErrors),      // Panics become the 500 envelope
		middleware.CORS(cfg.AllowedOrigins),       // Browser origins
		middleware.RateLimit(d.Limiter),           // Per client budget
		middleware.APIKeyAuth(cfg.APIKey),         // Shared static credential
	)

	r.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperr.NotFound("Route " + c.Request.URL.Path)) // Rendered by ErrorEnvelope
	})
	r.NoMethod(func(c *gin.Context) {
		_ = c.Error(apperr.MethodNotAllowed(c.Request.Method)) // Rendered by ErrorEnvelope
	})

	r.GET("/", RootHandler(cfg.Environment))
	r.GET("/health", HealthHandler(cfg.Environment, d.Health))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	for _, prefix := range []string{"/api", "/api/mock"} {
		compliance := r.Group(prefix + "/compliance")
		{
			compliance.GET("/health", UnitHealthHandler("compliance"))
			compliance.GET("/info", ComplianceInfoHandler())
			compliance.GET("/stats", ComplianceStatsHandler(d.Registry, d.Cache))
			compliance.GET("/verified", VerifiedWalletsHandler(d.Registry, d.Cache))
			compliance.GET("/:walletAddress", ComplianceStatusHandler(d.Registry, d.Auditor))
			compliance.POST("/verify/:walletAddress",
				middleware.AdminOnlyMiddleware(cfg.AdminKey),
				VerifyWalletHandler(d.Registry, d.Auditor, d.Cache))
		}

		custodian := r.Group(prefix + "/custodian")
		{
			custodian.GET("/health", UnitHealthHandler("custodian"))
			custodian.GET("/info", CustodianInfoHandler())
			custodian.POST("/issue", IssueNoteHandler(d.Issuer))
			custodian.GET("/notes", ListNotesHandler(d.Registry))
			custodian.GET("/notes/:isin", GetNoteHandler(d.Registry))
		}
	}
	return r
}
