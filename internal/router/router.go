// Package router implements component F: resolution of a logical model
// name to a backend-reported name, gated on health and refreshed on a
// schedule. It is grounded in the teacher's internal/router/simple.go
// (a deployment map plus per-deployment stats and cooldown), adapted from
// "pick a deployment for a model, load-balanced across replicas" to "decide
// whether a single backend can currently serve this logical name" — this
// gateway has exactly one backend, so the load-balancing half of the
// teacher's router has no home here (see DESIGN.md). Resolve results are
// cached in a bounded LRU (github.com/hashicorp/golang-lru/v2) so a
// gateway fielding many distinct logical-name variants (tag/quantization
// suffixes, aliases) doesn't repeat the suffix-strip/alias-lookup chain on
// every request and doesn't grow unbounded under churn from garbage
// client-supplied names; the cache is dropped wholesale on every Refresh
// so it never outlives the snapshot it was computed from.
package router

import (
	"context"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
)

// resolveCacheSize bounds the logical-name resolution cache independent of
// how many distinct names clients have sent.
const resolveCacheSize = 4096

// Health mirrors the ModelRecord health states from spec §3.
type Health string

const (
	HealthReady       Health = "ready"
	HealthWarming     Health = "warming"
	HealthUnavailable Health = "unavailable"
)

// ModelsLister is satisfied by *backend.Client; declared locally so this
// package doesn't import backend (keeps the dependency direction pipeline
// -> {router, backend}, not router -> backend).
type ModelsLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Config holds the router's tunables (spec §6: model_refresh_interval_s,
// plus an alias map for names the backend doesn't report verbatim).
type Config struct {
	RefreshInterval time.Duration     `yaml:"model_refresh_interval_s"`
	Aliases         map[string]string `yaml:"aliases"`
}

func DefaultConfig() Config {
	return Config{RefreshInterval: 30 * time.Second}
}

// Router holds the current snapshot of resolvable backend models,
// replaced atomically on each refresh so readers never observe a partial
// update (spec §5).
type Router struct {
	lister  ModelsLister
	aliases map[string]string
	refresh time.Duration

	mu       sync.RWMutex
	snapshot map[string]Health // backend-reported name -> health
	lastErr  error
	resolved *lru.Cache[string, string] // logical name -> resolved backend name

	stop chan struct{}
}

// New constructs a Router. Call Start to begin the refresh loop; Resolve
// works immediately with an empty snapshot (every model is unavailable
// until the first refresh completes).
func New(lister ModelsLister, cfg Config) *Router {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	aliases := cfg.Aliases
	if aliases == nil {
		aliases = map[string]string{}
	}
	resolved, _ := lru.New[string, string](resolveCacheSize)
	return &Router{
		lister:   lister,
		aliases:  aliases,
		refresh:  cfg.RefreshInterval,
		snapshot: make(map[string]Health),
		resolved: resolved,
		stop:     make(chan struct{}),
	}
}

// Start begins the periodic refresh loop and performs one synchronous
// refresh before returning, so a freshly started gateway doesn't reject
// its first request for want of a snapshot.
func (r *Router) Start(ctx context.Context) {
	r.Refresh(ctx)
	go r.refreshLoop(ctx)
}

func (r *Router) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Refresh(ctx)
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		}
	}
}

// Refresh pulls the backend's current model list and atomically replaces
// the snapshot. A refresh failure leaves the previous snapshot in place
// (stale-but-known beats empty) and is recorded for the readiness probe.
func (r *Router) Refresh(ctx context.Context) {
	names, err := r.lister.ListModels(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.lastErr = err
		return
	}
	r.lastErr = nil

	next := make(map[string]Health, len(names))
	for _, n := range names {
		next[n] = HealthReady
	}
	r.snapshot = next
	r.resolved.Purge()
}

// InvalidateOnFailure marks backendName unavailable immediately, without
// waiting for the next scheduled refresh, per spec §4.F ("also invalidated
// on a hard failure for that model").
func (r *Router) InvalidateOnFailure(backendName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snapshot[backendName]; ok {
		r.snapshot[backendName] = HealthUnavailable
	}
}

// Resolve maps a logical model name to a backend name, in order: exact
// match, suffix-stripped match (drops a trailing ":tag"-style
// quantization/size qualifier), then the configured alias map. A resolved
// name that isn't currently ready fails the same as an unresolvable one.
// The logical-name-to-backend-name mapping (not the health verdict) is
// cached, so a cache hit still re-checks the resolved name's current
// health against the live snapshot rather than serving a stale verdict.
func (r *Router) Resolve(logical string) (string, *gwerrors.Error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if resolved, ok := r.resolved.Get(logical); ok {
		if h, ok := r.snapshot[resolved]; ok && h == HealthReady {
			return resolved, nil
		}
		return "", gwerrors.ModelUnavailable(logical)
	}

	if h, ok := r.snapshot[logical]; ok {
		r.resolved.Add(logical, logical)
		if h == HealthReady {
			return logical, nil
		}
		return "", gwerrors.ModelUnavailable(logical)
	}

	if stripped, ok := stripSuffix(logical); ok {
		if h, ok := r.snapshot[stripped]; ok && h == HealthReady {
			r.resolved.Add(logical, stripped)
			return stripped, nil
		}
	}

	if alias, ok := r.aliases[logical]; ok {
		if h, ok := r.snapshot[alias]; ok && h == HealthReady {
			r.resolved.Add(logical, alias)
			return alias, nil
		}
	}

	return "", gwerrors.ModelUnavailable(logical)
}

// stripSuffix drops a trailing ":..." qualifier, e.g. "llama3.1:70b" ->
// "llama3.1", mirroring how Ollama names size/quantization variants.
func stripSuffix(name string) (string, bool) {
	idx := strings.LastIndex(name, ":")
	if idx <= 0 {
		return "", false
	}
	return name[:idx], true
}

// Models returns a copy of the current snapshot, keyed by model name, for
// GET /models.
func (r *Router) Models() map[string]Health {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Health, len(r.snapshot))
	for k, v := range r.snapshot {
		out[k] = v
	}
	return out
}

// Ready reports whether at least one model currently resolves, which the
// readiness probe requires alongside backend health (spec §4.I).
func (r *Router) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.snapshot {
		if h == HealthReady {
			return true
		}
	}
	return false
}

// Close stops the refresh loop.
func (r *Router) Close() {
	close(r.stop)
}
