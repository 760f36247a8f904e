package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strconv"       // Generation formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache keys for compliance read models
const (
	KeyComplianceStats    = "compliance:stats"    // Aggregate statistics
	KeyComplianceVerified = "compliance:verified" // Verified wallet list
)

// GenerationKey scopes a cache key to one state of the data it caches.
// Entries for older generations are never read again and age out by TTL.
func GenerationKey(key string, generation uint64) string {
	return key + ":" + strconv.FormatUint(generation, 10)
}

// ReadCache stores JSON snapshots of read models in Redis. A nil client or a
// zero TTL turns every call into a miss, so callers never need to branch.
type ReadCache struct {
	rdb    redis.Cmdable // Redis client
	ttl    time.Duration // Entry lifetime
	prefix string        // Namespace for every key
}

// NewReadCache creates a cache over rdb, which may be nil
func NewReadCache(rdb redis.Cmdable, ttl time.Duration) *ReadCache {
	return &ReadCache{rdb: rdb, ttl: ttl, prefix: "micropaper:"}
}

// Enabled reports whether the cache talks to Redis
func (c *ReadCache) Enabled() bool {
	return c != nil && c.rdb != nil && c.ttl > 0
}

// Get retrieves a value from Redis and unmarshals it into dest
func (c *ReadCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil // Cache disabled
	}
	val, err := c.rdb.Get(ctx, c.prefix+key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// Set stores value under key with the cache TTL
func (c *ReadCache) Set(ctx context.Context, key string, value any) error {
	if !c.Enabled() {
		return nil // Cache disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return c.rdb.Set(ctx, c.prefix+key, b, c.ttl).Err() // Set value in Redis with TTL
}

// Invalidate deletes keys from Redis
func (c *ReadCache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil // Nothing to do
	}
	full := make([]string, len(keys)) // Namespaced keys
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return c.rdb.Del(ctx, full...).Err() // Delete keys from Redis
}
