// Package batch implements component H: fanning a list of independent
// requests out through the Request Pipeline under a shared concurrency
// cap, preserving input order on output regardless of completion order.
// It is grounded in the teacher's internal/resilience/semaphore.go for the
// counting-semaphore shape, adapted from a generic TryAcquire/Acquire API
// into a fixed-size worker gate driving a single fan-out/fan-in pass.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/blueberrycongee/agentgate/internal/resilience"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

// Executor is the subset of Pipeline the coordinator drives; declared
// locally so batch doesn't import pipeline directly and the dependency
// graph stays pipeline/batch -> {cache,router,backend}, not batch ->
// pipeline's concrete type.
type Executor interface {
	Execute(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error)
}

// Config holds the coordinator's tunables (spec §6's batch_max_concurrency).
type Config struct {
	MaxConcurrency int           `yaml:"batch_max_concurrency"`
	BatchDeadline  time.Duration `yaml:"batch_deadline_s"`
}

func DefaultConfig() Config {
	return Config{MaxConcurrency: 10}
}

// Coordinator bounds concurrent pipeline executions with a semaphore, per
// spec §4.H.
type Coordinator struct {
	exec     Executor
	sem      *resilience.Semaphore
	deadline time.Duration
}

func New(exec Executor, cfg Config) *Coordinator {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	return &Coordinator{
		exec:     exec,
		sem:      resilience.NewSemaphore(cfg.MaxConcurrency),
		deadline: cfg.BatchDeadline,
	}
}

// Outcome is one slot of a batch result: exactly one of Result or Err is
// set, per spec §4.H's "each slot is an independent success-or-failure
// record".
type Outcome struct {
	Result *types.GenerationResult
	Err    *gwerrors.Error
}

// Execute dispatches each request through the pipeline under the shared
// semaphore and returns outcomes in input order, regardless of the order in
// which the individual pipeline calls complete (spec §5, §8 invariant 8).
// If cfg.BatchDeadline is positive, it bounds the whole call; a per-request
// context still inherits ctx's own deadline, so the effective deadline for
// any one request is the minimum of the two (spec §4.H).
func (c *Coordinator) Execute(ctx context.Context, reqs []*types.GenerationRequest) []Outcome {
	if c.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deadline)
		defer cancel()
	}

	outcomes := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r *types.GenerationRequest) {
			defer wg.Done()

			if err := c.sem.Acquire(ctx); err != nil {
				outcomes[idx] = Outcome{Err: gwerrors.Timeout("batch_semaphore_wait")}
				return
			}
			defer c.sem.Release()

			res, gerr := c.exec.Execute(ctx, r)
			outcomes[idx] = Outcome{Result: res, Err: gerr}
		}(i, req)
	}
	wg.Wait()
	return outcomes
}
