package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/agentgate/internal/admission"
	"github.com/blueberrycongee/agentgate/internal/batch"
	"github.com/blueberrycongee/agentgate/internal/metrics"
	"github.com/blueberrycongee/agentgate/internal/observability"
	"github.com/blueberrycongee/agentgate/internal/ratelimit"
	"github.com/blueberrycongee/agentgate/internal/router"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
	"github.com/blueberrycongee/agentgate/pkg/types"
)

type fakePipeline struct {
	fn func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error)
}

func (f fakePipeline) Execute(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
	return f.fn(ctx, req)
}

type fakeLister struct{ models []string }

func (f fakeLister) ListModels(ctx context.Context) ([]string, error) { return f.models, nil }

type fakeBackendHealth struct{ err error }

func (f fakeBackendHealth) Health(ctx context.Context) error { return f.err }

func newTestServer(t *testing.T, pipe Pipeline) *Server {
	t.Helper()

	gate := admission.New(admission.Config{Keys: []admission.KeyConfig{{Key: "secret", QuotaIdentity: "tenant-a"}}})
	limits := ratelimit.NewRegistry(ratelimit.Config{DefaultRate: 1000, DefaultCapacity: 1000})
	t.Cleanup(limits.Close)

	rtr := router.New(fakeLister{models: []string{"llama3.1"}}, router.Config{RefreshInterval: time.Hour})
	rtr.Start(context.Background())
	t.Cleanup(rtr.Close)

	coord := batch.New(pipe, batch.Config{MaxConcurrency: 4})

	health := metrics.NewHealth(fakeBackendHealth{}, rtr)
	health.Start(context.Background(), time.Hour)
	t.Cleanup(health.Close)

	m := metrics.New()
	logger := observability.NewLogger(observability.LoggerConfig{Output: &bytes.Buffer{}}, observability.NewRedactor())

	return New(DefaultConfig(), gate, limits, pipe, coord, rtr, health, m, logger)
}

func TestHandleGenerate_Success(t *testing.T) {
	pipe := fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		return &types.GenerationResult{Response: "hi", Model: "llama3.1", CacheStatus: types.CacheMiss}, nil
	}}
	srv := newTestServer(t, pipe)

	body, _ := json.Marshal(types.GenerationRequest{Model: "llama3.1", Prompt: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out types.GenerationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "hi", out.Response)
}

func TestHandleGenerate_MissingAPIKey(t *testing.T) {
	srv := newTestServer(t, fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		t.Fatal("pipeline must not run for an unauthenticated request")
		return nil, nil
	}})

	body, _ := json.Marshal(types.GenerationRequest{Model: "llama3.1", Prompt: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGenerate_ValidationError(t *testing.T) {
	srv := newTestServer(t, fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		t.Fatal("pipeline must not run for an invalid request")
		return nil, nil
	}})

	body, _ := json.Marshal(types.GenerationRequest{Model: "llama3.1"}) // missing prompt
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGenerate_BackendErrorMapsTo502(t *testing.T) {
	srv := newTestServer(t, fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		return nil, gwerrors.BackendTransient("backend_error: connection refused")
	}})

	body, _ := json.Marshal(types.GenerationRequest{Model: "llama3.1", Prompt: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleBatchGenerate_PreservesOrderAndNeverDrops(t *testing.T) {
	pipe := fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		if req.Model == "bad-model" {
			return nil, gwerrors.ModelUnavailable(req.Model)
		}
		return &types.GenerationResult{Response: "ok:" + req.Prompt, Model: req.Model}, nil
	}}
	srv := newTestServer(t, pipe)

	reqBody := batchRequest{Requests: []*types.GenerationRequest{
		{Model: "llama3.1", Prompt: "one"},
		{Model: "llama3.1"}, // invalid: missing prompt
		{Model: "bad-model", Prompt: "three"},
	}}
	raw, _ := json.Marshal(reqBody)
	req := httptest.NewRequest(http.MethodPost, "/batch/generate", bytes.NewReader(raw))
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out batchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Responses, 3)

	require.NotNil(t, out.Responses[0].Response)
	assert.Equal(t, "ok:one", out.Responses[0].Response.Response)

	require.NotNil(t, out.Responses[1].Error)
	assert.Equal(t, string(gwerrors.KindValidation), out.Responses[1].Error.Error)

	require.NotNil(t, out.Responses[2].Error)
	assert.Equal(t, string(gwerrors.KindModelUnavailable), out.Responses[2].Error.Error)
}

func TestHandleModels(t *testing.T) {
	srv := newTestServer(t, fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("X-API-Key", "secret")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out modelsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "ready", out.Models["llama3.1"])
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReady(t *testing.T) {
	srv := newTestServer(t, fakePipeline{})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiting_RejectsOverQuota(t *testing.T) {
	pipe := fakePipeline{fn: func(ctx context.Context, req *types.GenerationRequest) (*types.GenerationResult, *gwerrors.Error) {
		return &types.GenerationResult{Response: "ok"}, nil
	}}

	gate := admission.New(admission.Config{Keys: []admission.KeyConfig{{Key: "secret", QuotaIdentity: "tenant-a", RatePerSecond: 1, RateCapacity: 1}}})
	limits := ratelimit.NewRegistry(ratelimit.Config{DefaultRate: 1000, DefaultCapacity: 1000})
	limits.SetOverride("tenant-a", 1, 1) // mirrors what cmd/server/main.go does once at startup
	t.Cleanup(limits.Close)
	rtr := router.New(fakeLister{models: []string{"llama3.1"}}, router.Config{RefreshInterval: time.Hour})
	rtr.Start(context.Background())
	t.Cleanup(rtr.Close)
	coord := batch.New(pipe, batch.Config{MaxConcurrency: 4})
	health := metrics.NewHealth(fakeBackendHealth{}, rtr)
	m := metrics.New()
	logger := observability.NewLogger(observability.LoggerConfig{Output: &bytes.Buffer{}}, observability.NewRedactor())
	srv := New(DefaultConfig(), gate, limits, pipe, coord, rtr, health, m, logger)

	body, _ := json.Marshal(types.GenerationRequest{Model: "llama3.1", Prompt: "hello"})

	makeReq := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(body))
		req.Header.Set("X-API-Key", "secret")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	first := makeReq()
	require.Equal(t, http.StatusOK, first.Code)

	second := makeReq()
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
