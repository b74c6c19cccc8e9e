package cache

import "time"

// Config holds the cache component's tunables (spec §6): which backend to
// use, default positive TTL, and the (short) negative-cache TTL for
// deterministic backend rejections.
type Config struct {
	Backend        string        `yaml:"backend"` // "memory" or "redis"
	DefaultTTL     time.Duration `yaml:"default_ttl"`
	NegativeTTL    time.Duration `yaml:"negative_ttl"`
	SchemaVersion  byte          `yaml:"schema_version"`
	MemoryMaxSize  int           `yaml:"memory_max_size"`
	Redis          RedisConfig   `yaml:"redis"`
}

// DefaultConfig mirrors the teacher's DefaultHandlerConfig/DefaultMemoryCacheConfig
// pattern of shipping sane defaults alongside the type.
func DefaultConfig() Config {
	return Config{
		Backend:       "memory",
		DefaultTTL:    time.Hour,
		NegativeTTL:   30 * time.Second,
		SchemaVersion: 1,
		MemoryMaxSize: 100000,
	}
}
