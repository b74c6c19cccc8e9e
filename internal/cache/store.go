package cache

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

// Store is component B in full: a Backend plus TTL policy, negative
// caching, and per-process single-flight coalescing, implementing the
// get_or_compute(fingerprint, compute) contract the pipeline relies on
// (spec §4.B, §4.G step 3). It is grounded in the teacher's cache Handler
// (internal/cache/handler.go), generalized from per-request serialization of
// a ChatRequest/response pair to fingerprint-keyed CacheEntry records with
// an explicit negative branch.
type Store struct {
	backend Backend
	group   *Group

	defaultTTL  time.Duration
	negativeTTL time.Duration
}

// NewStore wires a Backend with the TTL policy from Config.
func NewStore(backend Backend, cfg Config) *Store {
	return &Store{
		backend:     backend,
		group:       NewGroup(),
		defaultTTL:  cfg.DefaultTTL,
		negativeTTL: cfg.NegativeTTL,
	}
}

// Lookup performs a direct cache read, with no coalescing. It returns
// ok=false on miss, expiry, or a deserialization failure (treated as a
// miss rather than an error, since a corrupt entry should self-heal on the
// next write).
func (s *Store) Lookup(ctx context.Context, fp string) (entry *types.CacheEntry, ok bool) {
	raw, found, err := s.backend.Get(ctx, fp)
	if err != nil || !found {
		return nil, false
	}

	var e types.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false
	}
	if e.Expired(time.Now()) {
		return nil, false
	}
	return &e, true
}

// ComputeFunc produces a fresh CacheEntry for a cache miss. A non-nil
// gwerrors.Error with Cacheable()==true causes the failure itself to be
// negative-cached so repeated requests against the same malformed
// fingerprint don't keep hitting the backend (spec §4.B).
type ComputeFunc func(ctx context.Context) (*types.CacheEntry, *gwerrors.Error)

// GetOrCompute implements the cache's core contract: on a hit, return the
// stored entry (or replay a negative-cached failure); on a miss, coalesce
// concurrent callers for the same fingerprint into one call to compute,
// store the result, and return it. The shared return reports whether this
// caller's compute was skipped in favor of an in-flight call — the pipeline
// uses it only for metrics, since cache_status is hit/miss/refresh/bypass,
// not coalesced/uncoalesced. policy selects the §8 invariants 3-5 behavior:
// CacheBypass never reads nor writes; CacheRefresh ignores hits but always
// writes on success; CacheUse is the ordinary read-through path.
func (s *Store) GetOrCompute(ctx context.Context, fp string, policy types.CachePolicy, compute ComputeFunc) (entry *types.CacheEntry, status types.CacheStatus, shared bool, gwErr *gwerrors.Error) {
	if policy == types.CacheBypass {
		e, cerr := compute(ctx)
		if cerr != nil {
			return nil, types.CacheBypassed, false, cerr
		}
		return e, types.CacheBypassed, false, nil
	}

	if policy != types.CacheRefresh {
		if e, ok := s.Lookup(ctx, fp); ok {
			if e.Negative {
				return nil, types.CacheHit, false, &gwerrors.Error{
					Kind:    gwerrors.Kind(e.FailureKind),
					Message: e.FailureMsg,
				}
			}
			return e, types.CacheHit, false, nil
		}
	}

	raw, wasShared, err := s.group.Do(ctx, fp, func(cctx context.Context) (*types.CacheEntry, error) {
		e, cerr := compute(cctx)
		if cerr != nil {
			if cerr.Cacheable() {
				neg := &types.CacheEntry{
					Fingerprint: fp,
					CreatedAt:   time.Now(),
					TTL:         s.negativeTTL,
					Negative:    true,
					FailureKind: string(cerr.Kind),
					FailureMsg:  cerr.Message,
				}
				_ = s.store(ctx, fp, neg)
			}
			return nil, cerr
		}
		_ = s.store(ctx, fp, e)
		return e, nil
	})

	missStatus := types.CacheMiss
	if policy == types.CacheRefresh {
		missStatus = types.CacheRefreshed
	}

	if err != nil {
		if gerr, ok := err.(*gwerrors.Error); ok {
			return nil, missStatus, wasShared, gerr
		}
		return nil, missStatus, wasShared, gwerrors.Internal(err.Error())
	}
	return raw, missStatus, wasShared, nil
}

func (s *Store) store(ctx context.Context, fp string, e *types.CacheEntry) error {
	if e.TTL <= 0 {
		e.TTL = s.defaultTTL
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.Fingerprint = fp

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, fp, data, int64(e.TTL/time.Second))
}

// Invalidate removes any cached entry (positive or negative) for fp.
func (s *Store) Invalidate(ctx context.Context, fp string) error {
	return s.backend.Delete(ctx, fp)
}

// Stats proxies the backend's hit/miss counters.
func (s *Store) Stats() Stats {
	return s.backend.Stats()
}

// Ping proxies backend health for readiness probing.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
