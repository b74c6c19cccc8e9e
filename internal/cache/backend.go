// Package cache implements component B: the response cache with TTL
// management, negative caching, and per-process single-flight coalescing.
// The storage layer is grounded in the teacher's internal/cache/types.go
// (Cache interface) and internal/cache/memory.go (heap-based TTL eviction);
// Redis support is grounded in caches/redis/redis.go.
package cache

import "context"

// Backend is the minimal key-value contract the Cache component needs from
// its storage layer (spec §6: get, set-with-ttl, delete, optional
// set-if-absent). Both MemoryBackend and RedisBackend implement it.
type Backend interface {
	// Get returns the stored value, or ok=false if absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key with the given TTL, overwriting any
	// existing entry unconditionally.
	Set(ctx context.Context, key string, value []byte, ttlSeconds int64) error

	// SetIfAbsent stores value only if key does not already exist, reducing
	// (but not eliminating) negative-cache races across replicas (§9). It
	// returns stored=false if an entry already existed.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttlSeconds int64) (stored bool, err error)

	// Delete removes key; deletion is tolerated to be eventually consistent
	// (§4.B).
	Delete(ctx context.Context, key string) error

	// Ping reports backend health for readiness probing (§4.I).
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error

	// Stats reports cumulative hit/miss/set counters for GET /health and
	// Prometheus export (§4.I).
	Stats() Stats
}

// Stats mirrors the teacher's CacheStats shape, trimmed to what this gateway
// actually reports on GET /health and via Prometheus.
type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
}
