package metrics

import (
	"context"
	"sync/atomic"
	"time"
)

// BackendHealth is satisfied by *backend.Client; declared locally to avoid
// an import of backend (pipeline and batch already depend on it, health
// only needs the one method).
type BackendHealth interface {
	Health(ctx context.Context) error
}

// ModelAvailability is satisfied by *router.Router.
type ModelAvailability interface {
	Ready() bool
}

// Health answers the liveness and readiness probes required by spec §4.I,
// grounded in the teacher's healthcheck.Prober for the
// "periodic-loop-with-an-alive-flag" shape, simplified from per-deployment
// cooldown tracking (this gateway has one backend) to a single liveness
// heartbeat plus an on-demand readiness check.
type Health struct {
	backend BackendHealth
	router  ModelAvailability

	alive atomic.Bool
	stop  chan struct{}
}

// NewHealth constructs a Health prober. Call Start to begin the liveness
// heartbeat.
func NewHealth(backend BackendHealth, router ModelAvailability) *Health {
	return &Health{backend: backend, router: router, stop: make(chan struct{})}
}

// Start begins the liveness heartbeat loop: as long as this goroutine keeps
// ticking, the process loop is considered alive (spec §4.I: "liveness probe
// returns ok if the process loop is alive").
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h.alive.Store(true)
	go h.loop(ctx, interval)
}

func (h *Health) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.alive.Store(true)
		case <-ctx.Done():
			h.alive.Store(false)
			return
		case <-h.stop:
			h.alive.Store(false)
			return
		}
	}
}

// Live reports the liveness probe result.
func (h *Health) Live() bool {
	return h.alive.Load()
}

// Ready reports the readiness probe result: the backend must answer
// healthy and at least one model must currently resolve (spec §4.I).
func (h *Health) Ready(ctx context.Context) bool {
	if h.router == nil || !h.router.Ready() {
		return false
	}
	if h.backend == nil {
		return false
	}
	return h.backend.Health(ctx) == nil
}

// Close stops the liveness loop.
func (h *Health) Close() {
	close(h.stop)
}
