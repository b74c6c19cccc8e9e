package cache

import (
	"fmt"
	"time"
)

// NewBackendFromConfig selects and constructs the Backend cfg.Backend
// names ("memory" or "redis"), matching the selector pattern the teacher
// uses in its own cache wiring to pick a storage implementation from a
// single config string rather than requiring the caller to branch on it.
func NewBackendFromConfig(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		cleanup := 1 * time.Minute
		return NewMemoryBackend(cfg.MemoryMaxSize, cleanup), nil
	case "redis":
		return NewRedisBackend(cfg.Redis)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Backend)
	}
}
