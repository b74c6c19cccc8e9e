// Package pipeline implements component G: the orchestration of
// components A through F for a single admitted request. It is grounded in
// the teacher's internal/plugin/pipeline.go for the "ordered stage
// execution with a shared config and logger" shape, and in the handler
// composition of internal/api/completions_handler.go for how a single
// inbound request threads through fingerprinting, caching, routing, and
// the backend call.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/blueberrycongee/agentgate/internal/backend"
	"github.com/blueberrycongee/agentgate/internal/cache"
	"github.com/blueberrycongee/agentgate/internal/fingerprint"
	"github.com/blueberrycongee/agentgate/internal/prompt"
	"github.com/blueberrycongee/agentgate/internal/router"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

// Recorder is the subset of component I the pipeline emits metrics
// through. Declared locally so pipeline doesn't import metrics directly;
// metrics implements it.
type Recorder interface {
	ObserveRequest(model string, outcome string)
	ObserveBackendLatency(model string, d time.Duration)
	ObserveEndToEndLatency(model string, d time.Duration)
	ObserveCacheStatus(status types.CacheStatus)
	ObserveCoalesced()
	ObserveTokens(model string, prompt, completion int)
	IncInFlight()
	DecInFlight()
}

type noopRecorder struct{}

func (noopRecorder) ObserveRequest(string, string)                {}
func (noopRecorder) ObserveBackendLatency(string, time.Duration)  {}
func (noopRecorder) ObserveEndToEndLatency(string, time.Duration) {}
func (noopRecorder) ObserveCacheStatus(types.CacheStatus)         {}
func (noopRecorder) ObserveCoalesced()                            {}
func (noopRecorder) ObserveTokens(string, int, int)               {}
func (noopRecorder) IncInFlight()                                 {}
func (noopRecorder) DecInFlight()                                 {}

// Config carries the pipeline's fixed knobs — currently just the
// fingerprint schema version (spec §6's schema_version, bumpable to
// invalidate all cache entries at once).
type Config struct {
	SchemaVersion byte
}

// Pipeline wires components A, B, D, E, F together behind the single
// Execute entry point described in spec §4.G.
type Pipeline struct {
	cfg      Config
	cache    *cache.Store
	router   *router.Router
	backend  *backend.Client
	recorder Recorder
	logger   zerolog.Logger
}

// New constructs a Pipeline. recorder may be nil, in which case metrics
// are silently dropped (useful for tests exercising only cache/backend
// wiring).
func New(cfg Config, store *cache.Store, rtr *router.Router, client *backend.Client, recorder Recorder, logger zerolog.Logger) *Pipeline {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Pipeline{cfg: cfg, cache: store, router: rtr, backend: client, recorder: recorder, logger: logger}
}

// Execute runs a single admitted request through the full pipeline (spec
// §4.G steps 1-9). The caller's ctx governs cancellation throughout; the
// cache's single-flight group independently handles leader handoff so an
// individual caller canceling does not abort a computation still wanted by
// other waiters.
func (p *Pipeline) Execute(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
	start := time.Now()
	p.recorder.IncInFlight()
	defer p.recorder.DecInFlight()

	fp := fingerprint.Compute(p.cfg.SchemaVersion, req)
	policy := req.EffectiveCachePolicy()

	entry, status, shared, gerr := p.cache.GetOrCompute(ctx, string(fp), policy, func(cctx context.Context) (*types.CacheEntry, *gwerrors.Error) {
		return p.computeOnce(cctx, req)
	})

	elapsed := time.Since(start)
	p.recorder.ObserveEndToEndLatency(req.Model, elapsed)
	p.recorder.ObserveCacheStatus(status)
	if shared {
		p.recorder.ObserveCoalesced()
	}

	if gerr != nil {
		p.recorder.ObserveRequest(req.Model, string(gerr.Kind))
		return nil, gerr
	}

	p.recorder.ObserveRequest(req.Model, "success")
	if entry.PromptTokens != nil && entry.CompletionTokens != nil {
		p.recorder.ObserveTokens(entry.ModelUsed, *entry.PromptTokens, *entry.CompletionTokens)
	}

	return &types.GenerationResult{
		Response:    entry.ResponseText,
		Model:       entry.ModelUsed,
		CacheStatus: status,
		LatencyMS:   elapsed.Milliseconds(),
		Tokens: types.TokenCounts{
			Prompt:     entry.PromptTokens,
			Completion: entry.CompletionTokens,
		},
		RequestID: req.RequestID,
	}, nil
}

// computeOnce performs steps 5-6 of §4.G: resolve the model, assemble the
// prompt, and call the backend. It is what the cache's single-flight group
// runs at most once per fingerprint per process.
func (p *Pipeline) computeOnce(ctx context.Context, req *types.GenerationRequest) (*types.CacheEntry, *gwerrors.Error) {
	backendModel, gerr := p.router.Resolve(req.Model)
	if gerr != nil {
		return nil, gerr
	}

	assembled := prompt.Assemble(req.Prompt, req.AgentProfile)

	backendStart := time.Now()
	result, gerr := p.backend.Generate(ctx, backendModel, assembled, backend.GenerateOptions{
		Temperature:   req.EffectiveTemperature(),
		TopP:          req.EffectiveTopP(),
		TopK:          req.TopK,
		RepeatPenalty: req.RepeatPenalty,
		Stop:          req.Stop,
		Seed:          req.Seed,
		MaxTokens:     req.EffectiveMaxTokens(),
	})
	p.recorder.ObserveBackendLatency(req.Model, time.Since(backendStart))

	if gerr != nil {
		if gerr.Kind == gwerrors.KindBackendTransient {
			p.router.InvalidateOnFailure(backendModel)
		}
		return nil, gerr
	}

	return &types.CacheEntry{
		ResponseText:     result.Text,
		ModelUsed:        result.ModelUsed,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
	}, nil
}
