package main

import (
	"context"   // Context for startup and shutdown
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Process signals
	"os/signal" // Signal handling
	"syscall"   // SIGTERM
	"time"      // Timeouts and cleanup interval

	"micropaper/internal/api"        // Custom package for API handlers
	"micropaper/internal/config"     // Custom package for configuration
	"micropaper/internal/db"         // Journal database
	"micropaper/internal/isin"       // Identifier generator
	"micropaper/internal/issuance"   // Issuance workflow
	"micropaper/internal/metrics"    // Prometheus collectors
	"micropaper/internal/middleware" // Custom package for middleware
	"micropaper/internal/registry"   // Compliance registry
	"micropaper/internal/utils"      // Read cache

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("unknown LOG_LEVEL %q, keeping %s", cfg.LogLevel, logrus.GetLevel())
	}

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err) // Refuse to start misconfigured
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional journal database
	var journal *db.Journal
	var mirror registry.Mirror
	var auditor api.Auditor
	var health api.HealthChecker
	if dsn := cfg.DSN(); dsn != "" {
		gdb, err := db.Open(dsn)
		if err != nil {
			logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
		}
		journal = db.NewJournal(gdb)
		defer journal.Close()
		mirror, auditor, health = journal, journal, journal
	} else {
		logrus.Info("DB_HOST not set, running without a journal")
	}

	reg := registry.New(mirror)
	if journal != nil {
		wallets, notes, err := journal.Load(ctx)
		if err != nil {
			logrus.Fatalf("failed to restore registry: %v", err)
		}
		reg.Restore(wallets, notes)
		logrus.WithFields(logrus.Fields{
			"wallets": len(wallets), // Restored wallets
			"notes":   len(notes),   // Restored notes
		}).Info("Registry restored from journal")
	}

	// Optional Redis for the rate limiter and the read cache
	var rdb redis.Cmdable
	var limiter middleware.Limiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		defer redisClient.Close()
		// Test Redis connection
		if _, err := redisClient.Ping(ctx).Result(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		rdb = redisClient
		limiter = middleware.NewRedisLimiter(redisClient, cfg.RateLimitPerMinute, time.Minute)
	} else {
		memLimiter := middleware.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		go sweep(ctx, memLimiter) // Drop expired windows
		limiter = memLimiter
	}
	cache := utils.NewReadCache(rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second)

	// Demo wallets
	if n := reg.Seed(ctx, cfg.DemoWallets); n > 0 {
		logrus.WithField("wallets", n).Info("Seeded demo wallets")
	}

	ids := isin.NewGenerator(nil, 0)
	ids.OnCollision = func(string) { metrics.ISINCollisions.Inc() }
	issuer := issuance.New(reg, ids)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := api.NewRouter(api.Deps{
		Config:   cfg,
		Registry: reg,
		Issuer:   issuer,
		Auditor:  auditor,
		Cache:    cache,
		Limiter:  limiter,
		Health:   health,
	})

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
}

// sweep periodically drops expired rate limit windows
func sweep(ctx context.Context, l *middleware.MemoryLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
