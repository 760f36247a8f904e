// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"          // Collector types
	"github.com/prometheus/client_golang/prometheus/promauto" // Registration on the default registry
)

var (
	// HTTPRequestDuration tracks request latency per route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "micropaper_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"}, // Route is the gin template
	)

	// NotesIssued counts successful issuances
	NotesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "micropaper_notes_issued_total",
			Help: "Total number of notes issued",
		},
	)

	// IssuanceRejections counts rejected issuance requests by error code
	IssuanceRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "micropaper_issuance_rejections_total",
			Help: "Total number of rejected issuance requests",
		},
		[]string{"code"}, // Wire error code
	)

	// WalletVerifications counts wallets that transitioned to verified
	WalletVerifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "micropaper_wallet_verifications_total",
			Help: "Total number of wallets marked as verified",
		},
	)

	// ISINCollisions counts generated identifiers rejected as already issued
	ISINCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "micropaper_isin_collisions_total",
			Help: "Total number of ISIN candidates that collided with issued notes",
		},
	)

	// RateLimited counts requests refused by the rate limiter
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "micropaper_rate_limited_total",
			Help: "Total number of requests refused by the rate limiter",
		},
	)
)
