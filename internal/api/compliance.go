package api

import (
	"context"  // Context for audit and cache operations
	"errors"   // Empty body detection
	"fmt"      // Message formatting
	"io"       // Empty body detection
	"net/http" // HTTP status codes
	"time"     // Audit timestamps

	"micropaper/internal/domain"     // Importing domain models
	"micropaper/internal/metrics"    // Prometheus collectors
	"micropaper/internal/middleware" // Request id helpers
	"micropaper/internal/registry"   // Compliance registry
	"micropaper/internal/utils"      // Read cache
	"micropaper/internal/validator"  // Request validation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Auditor records compliance actions in the audit log
type Auditor interface {
	Audit(ctx context.Context, entry domain.AuditEntry) error
}

// audit appends an entry without failing the request
func audit(c *gin.Context, a Auditor, address, action, by string) {
	if a == nil {
		return // No journal configured
	}
	entry := domain.AuditEntry{
		WalletAddress: registry.Canonical(address), // Canonical wallet
		Action:        action,                      // check_status or verify
		PerformedBy:   by,                          // Actor
		RequestID:     middleware.GetRequestID(c),  // Correlation id
		Timestamp:     time.Now().UTC(),            // Current time
	}
	if err := a.Audit(c.Request.Context(), entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": entry.RequestID, // Correlation id
			"action":     action,          // Audited action
			"error":      err.Error(),     // Error message
		}).Warn("Failed to write audit entry")
	}
}

// walletParam validates the wallet address path parameter
func walletParam(c *gin.Context) (string, bool) {
	address, violations := validator.ValidateAddress(c.Param("walletAddress"))
	if err := violations.Err(); err != nil {
		_ = c.Error(err) // Rendered by ErrorEnvelope
		return "", false
	}
	return address, true
}

// ComplianceStatusHandler returns the verification state of a wallet
func ComplianceStatusHandler(reg *registry.Registry, a Auditor) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := walletParam(c)
		if !ok {
			return
		}
		rec := reg.GetStatus(address)                     // Lazy default, no side effect
		audit(c, a, address, domain.AuditCheckStatus, "") // Audit trail
		body := gin.H{
			"isVerified": rec.IsVerified,             // Verification state
			"requestId":  middleware.GetRequestID(c), // Correlation id
		}
		if rec.InvestorTier != "" {
			body["investorTier"] = rec.InvestorTier // Only when classified
		}
		if rec.Jurisdiction != "" {
			body["jurisdiction"] = rec.Jurisdiction // Only when classified
		}
		c.JSON(http.StatusOK, body)
	}
}

// VerifyWalletHandler marks a wallet as verified. An optional JSON body sets
// the investor tier and jurisdiction used by the eligibility rule.
func VerifyWalletHandler(reg *registry.Registry, a Auditor, cache *utils.ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		address, ok := walletParam(c)
		if !ok {
			return
		}
		var req validator.VerifyRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			_ = c.Error(validator.MalformedBody(err).Err()) // Rendered by ErrorEnvelope
			return
		}
		tier, jurisdiction, violations := validator.ValidateProfile(req)
		if err := violations.Err(); err != nil {
			_ = c.Error(err) // Rejected before any mutation
			return
		}

		ctx := c.Request.Context()
		requestID := middleware.GetRequestID(c)
		before := reg.Generation()
		rec, changed := reg.Verify(ctx, address, registry.VerifiedByAdmin) // Idempotent
		if changed {
			metrics.WalletVerifications.Inc()
			dropGeneration(ctx, cache, before, requestID) // Readers already moved to the new generation
			logrus.WithFields(logrus.Fields{
				"request_id": requestID,   // Correlation id
				"wallet":     rec.Address, // Canonical wallet
			}).Info("Wallet verified")
		}
		if tier != "" || jurisdiction != "" {
			reg.Classify(ctx, address, tier, jurisdiction) // Wallet exists after Verify
		}
		audit(c, a, address, domain.AuditVerify, registry.VerifiedByAdmin) // Audit trail
		c.JSON(http.StatusOK, gin.H{
			"success":   true,                                                 // Always true on 200
			"message":   fmt.Sprintf("Wallet %s marked as verified", address), // Human readable message
			"requestId": requestID,                                            // Correlation id
		})
	}
}

// ComplianceStatsHandler returns aggregate registry statistics
func ComplianceStatsHandler(reg *registry.Registry, cache *utils.ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID := middleware.GetRequestID(c)
		var stats domain.ComplianceStats
		key := utils.GenerationKey(utils.KeyComplianceStats, reg.Generation()) // Moves on every verification change
		if !cacheGet(ctx, cache, key, &stats, requestID) {
			var gen uint64
			stats, gen = reg.StatsAt()                                                                 // Compute from the registry
			cacheSet(ctx, cache, utils.GenerationKey(utils.KeyComplianceStats, gen), stats, requestID) // Stored under the state it describes
		}
		c.JSON(http.StatusOK, gin.H{
			"totalWallets":      stats.TotalWallets,      // Materialized wallets
			"verifiedWallets":   stats.VerifiedWallets,   // Verified wallets
			"unverifiedWallets": stats.UnverifiedWallets, // Unverified wallets
			"verificationRate":  stats.VerificationRate,  // Percentage string
			"requestId":         requestID,               // Correlation id
		})
	}
}

// VerifiedWalletsHandler lists every verified wallet
func VerifiedWalletsHandler(reg *registry.Registry, cache *utils.ReadCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		requestID := middleware.GetRequestID(c)
		var wallets []string
		key := utils.GenerationKey(utils.KeyComplianceVerified, reg.Generation()) // Moves on every verification change
		if !cacheGet(ctx, cache, key, &wallets, requestID) {
			var gen uint64
			wallets, gen = reg.ListVerifiedAt()                                                             // Read from the registry
			cacheSet(ctx, cache, utils.GenerationKey(utils.KeyComplianceVerified, gen), wallets, requestID) // Stored under the state it describes
		}
		c.JSON(http.StatusOK, gin.H{
			"verifiedWallets": wallets,      // Sorted addresses
			"count":           len(wallets), // Number of wallets
			"requestId":       requestID,    // Correlation id
		})
	}
}

// dropGeneration deletes the read models cached for a superseded generation
func dropGeneration(ctx context.Context, cache *utils.ReadCache, gen uint64, requestID string) {
	err := cache.Invalidate(ctx,
		utils.GenerationKey(utils.KeyComplianceStats, gen),
		utils.GenerationKey(utils.KeyComplianceVerified, gen))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,   // Correlation id
			"error":      err.Error(), // Error message
		}).Warn("Failed to invalidate compliance cache")
	}
}

// cacheGet reads a cached read model, treating Redis errors as a miss
func cacheGet(ctx context.Context, cache *utils.ReadCache, key string, dest any, requestID string) bool {
	found, err := cache.Get(ctx, key, dest)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,   // Correlation id
			"key":        key,         // Cache key
			"error":      err.Error(), // Error message
		}).Warn("Failed to read compliance cache")
		return false
	}
	return found
}

// cacheSet stores a read model, logging failures
func cacheSet(ctx context.Context, cache *utils.ReadCache, key string, value any, requestID string) {
	if err := cache.Set(ctx, key, value); err != nil {
		logrus.WithFields(logrus.Fields{
			"request_id": requestID,   // Correlation id
			"key":        key,         // Cache key
			"error":      err.Error(), // Error message
		}).Warn("Failed to write compliance cache")
	}
}
