package middleware

import (
	"context" // Context for Redis operations
	"fmt"     // Script result errors
	"strconv" // Retry-After formatting
	"sync"    // Mutex for the in-memory limiter
	"time"    // Window arithmetic

	"micropaper/internal/apperr"  // Error taxonomy
	"micropaper/internal/metrics" // Prometheus collectors

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Limiter decides whether a client may make another request
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimit refuses clients over budget. Limiter errors fail open.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || publicPaths[c.Request.URL.Path] {
			c.Next() // No limit applies
			return
		}
		allowed, retryAfter, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"request_id": GetRequestID(c), // Correlation id
				"error":      err.Error(),     // Limiter failure
			}).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimited.Inc()
			secs := int(retryAfter.Seconds())
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs)) // Hint for the client
			_ = c.Error(apperr.RateLimited())           // Rendered by ErrorEnvelope
			c.Abort()
			return
		}
		c.Next() // Proceed to the next handler
	}
}

// MemoryLimiter is a per-key fixed window counter held in process
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string]*fixedWindow
	now     func() time.Time
}

type fixedWindow struct {
	start time.Time
	count int
}

// NewMemoryLimiter allows limit requests per key per window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

// Allow counts one request against key
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.window {
		w = &fixedWindow{start: now}
		m.windows[key] = w
	}
	if w.count >= m.limit {
		return false, w.start.Add(m.window).Sub(now), nil
	}
	w.count++
	return true, 0, nil
}

// Cleanup drops windows that have expired
func (m *MemoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for key, w := range m.windows {
		if now.Sub(w.start) >= m.window {
			delete(m.windows, key)
		}
	}
}

// windowScript counts a hit and starts the window when the key has no
// expiry yet. Returns {count, milliseconds left}. Needs Redis 2.6 or later.
var windowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisLimiter is a fixed window counter shared by every replica
type RedisLimiter struct {
	rdb    redis.Cmdable // Redis client
	limit  int           // Requests per window
	window time.Duration // Window length
}

// NewRedisLimiter allows limit requests per key per window across processes
func NewRedisLimiter(rdb redis.Cmdable, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, window: window}
}

// Allow increments the key's counter for the current window
func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := "micropaper:ratelimit:" + key
	res, err := windowScript.Run(ctx, r.rdb, []string{redisKey}, r.window.Milliseconds()).Int64Slice() // EVALSHA, EVAL on first use
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("rate limit script returned %d values", len(res))
	}
	if res[0] > int64(r.limit) {
		return false, time.Duration(res[1]) * time.Millisecond, nil // Over budget until the window ends
	}
	return true, 0, nil
}
