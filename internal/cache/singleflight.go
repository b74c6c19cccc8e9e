package cache

import (
	"context"
	"sync"

	"github.com/blueberrycongee/agentgate/pkg/types"
)

// Group coalesces concurrent computations for the same fingerprint into a
// single backend call (spec §4.B, §4.G step 3). Unlike a plain
// singleflight.Group, a waiter that cancels its own context does not cancel
// the shared computation while other waiters are still attached — the
// computation's context is only canceled once the last waiter leaves
// (leader handoff), so one impatient caller can never starve the others.
type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	mu      sync.Mutex
	waiters int

	ctx    context.Context
	cancel context.CancelFunc

	done   chan struct{}
	result *types.CacheEntry
	err    error
}

// NewGroup constructs an empty singleflight group.
func NewGroup() *Group {
	return &Group{calls: make(map[string]*call)}
}

// Do runs fn for key if no computation is already in flight, otherwise
// attaches the caller to the in-flight call and waits for its result. The
// shared return reports whether this caller's fn was skipped in favor of an
// already-running computation.
func (g *Group) Do(ctx context.Context, key string, fn func(context.Context) (*types.CacheEntry, error)) (entry *types.CacheEntry, shared bool, err error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		c.mu.Lock()
		c.waiters++
		c.mu.Unlock()
		g.mu.Unlock()
		return g.wait(ctx, key, c, false)
	}

	callCtx, cancel := context.WithCancel(context.Background())
	c := &call{
		ctx:    callCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.waiters = 1
	g.calls[key] = c
	g.mu.Unlock()

	go func() {
		defer close(c.done)
		c.result, c.err = fn(c.ctx)

		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
	}()

	return g.wait(ctx, key, c, true)
}

// wait blocks for c's result and reports whether the caller is the leader
// (the one that created c and runs fn) or an attacher riding along on an
// already in-flight call. Only attachers are reported as shared — the
// leader's own call is not a coalesced one.
func (g *Group) wait(ctx context.Context, key string, c *call, isLeader bool) (*types.CacheEntry, bool, error) {
	defer g.leave(key, c)

	select {
	case <-c.done:
		return c.result, !isLeader, c.err
	case <-ctx.Done():
		return nil, !isLeader, ctx.Err()
	}
}

// leave decrements the waiter count and, if it was the last one attached,
// cancels the shared computation so an abandoned fingerprint never runs to
// completion for nobody.
func (g *Group) leave(key string, c *call) {
	c.mu.Lock()
	c.waiters--
	last := c.waiters == 0
	c.mu.Unlock()

	if last {
		c.cancel()
	}
}

// InFlight reports the number of fingerprints currently being computed;
// exposed for metrics and tests.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
