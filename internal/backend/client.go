// Package backend implements component E: the HTTP client that talks to
// the text-generation host. It is grounded in the teacher's provider
// adapters (internal/provider/ollama/ollama.go for the "thin adapter over
// a well-known local API" shape, and the Sergey-Bar-Alfred gateway's
// provider/ollama.go for the raw net/http request-building style this
// gateway actually follows, since it speaks Ollama's native /api/generate
// rather than an OpenAI-compatible shim). Per-attempt retry/backoff is
// driven by github.com/cenkalti/backoff/v4 rather than the teacher's
// hand-rolled breaker, since the spec calls for exponential backoff with
// jitter within one call. The teacher's internal/resilience/circuitbreaker.go
// is wired in as an outer gate around the whole retry loop instead: it
// answers a different question (has this backend been unhealthy across
// many recent calls?) than the retry loop does (is this one attempt worth
// repeating?), so a request arriving while the backend is known-down fails
// fast without spending its retry budget. When the backend omits a token
// count, the client fills it in with internal/tokenizer's best-effort
// estimate rather than surfacing a nil further up the pipeline.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/blueberrycongee/agentgate/internal/resilience"
	"github.com/blueberrycongee/agentgate/internal/tokenizer"
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
)

// Config holds the backend client's tunables (spec §6).
type Config struct {
	BaseURL          string        `yaml:"backend_url"`
	Timeout          time.Duration `yaml:"backend_timeout_s"`
	MaxRetries       int           `yaml:"backend_max_retries"`
	TotalDeadline    time.Duration `yaml:"backend_total_deadline_s"`
	MaxIdleConns     int           `yaml:"max_idle_conns"`
	IdleConnsPerHost int           `yaml:"idle_conns_per_host"`

	// CircuitBreaker gates the whole Generate call fast when the backend has
	// been failing consistently. A zero value does not disable it: New
	// replaces it with resilience.DefaultCircuitBreakerConfig.
	CircuitBreaker resilience.CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// DefaultConfig matches the defaults named in spec §4.E.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://localhost:11434",
		Timeout:          30 * time.Second,
		MaxRetries:       3,
		TotalDeadline:    2 * time.Minute,
		MaxIdleConns:     50,
		IdleConnsPerHost: 20,
	}
}

// Client is the backend client. It holds no request-specific state and is
// safe for concurrent use by many pipeline invocations at once.
type Client struct {
	httpClient *http.Client
	cfg        Config
	breaker    *resilience.CircuitBreaker
}

// New constructs a Client against cfg.BaseURL.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.TotalDeadline <= 0 {
		cfg.TotalDeadline = DefaultConfig().TotalDeadline
	}
	if cfg.CircuitBreaker == (resilience.CircuitBreakerConfig{}) {
		cfg.CircuitBreaker = resilience.DefaultCircuitBreakerConfig()
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.IdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		cfg:        cfg,
		breaker:    resilience.NewCircuitBreaker("backend", cfg.CircuitBreaker),
	}
}

// GenerateOptions carries the decoding controls the pipeline has already
// resolved to effective values; the client forwards them verbatim.
type GenerateOptions struct {
	Temperature   float64
	TopP          float64
	TopK          *int
	RepeatPenalty *float64
	Stop          []string
	Seed          *int64
	MaxTokens     int
}

// Result is what the client returns on a successful generate call. Both
// token counts are always set: a count the backend didn't report is filled
// in with a tokenizer estimate.
type Result struct {
	Text             string
	ModelUsed        string
	PromptTokens     *int
	CompletionTokens *int
}

type generateRequest struct {
	Model   string            `json:"model"`
	Prompt  string            `json:"prompt"`
	Stream  bool              `json:"stream"`
	Options generateReqOptions `json:"options,omitempty"`
}

type generateReqOptions struct {
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	TopK          *int     `json:"top_k,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          *int64   `json:"seed,omitempty"`
	NumPredict    int      `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response           string `json:"response"`
	Model              string `json:"model"`
	Done               bool   `json:"done"`
	PromptEvalCount    *int   `json:"prompt_eval_count"`
	EvalCount          *int   `json:"eval_count"`
}

// Generate calls the backend's native generate endpoint, retrying transient
// failures per spec §4.E (connection errors, timeouts, 5xx excluding 501;
// never 4xx except 429) with exponential backoff and jitter bounded by the
// configured total deadline.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (*Result, *gwerrors.Error) {
	if !c.breaker.Allow() {
		return nil, gwerrors.BackendTransient("backend circuit breaker open")
	}

	result, gerr := c.generate(ctx, model, prompt, opts)
	switch {
	case gerr == nil:
		c.breaker.RecordSuccess()
	case gerr.Kind == gwerrors.KindBackendTransient:
		// Only outcomes that reflect backend health feed the breaker; a
		// rejected request (bad model, bad params) says nothing about
		// whether the backend itself is up.
		c.breaker.RecordFailure()
	}
	return result, gerr
}

func (c *Client) generate(ctx context.Context, model, prompt string, opts GenerateOptions) (*Result, *gwerrors.Error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TotalDeadline)
	defer cancel()

	body := generateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: false,
		Options: generateReqOptions{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			TopK:          opts.TopK,
			RepeatPenalty: opts.RepeatPenalty,
			Stop:          opts.Stop,
			Seed:          opts.Seed,
			NumPredict:    opts.MaxTokens,
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, gwerrors.Internal(fmt.Sprintf("marshal generate request: %v", err))
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.3
	bo.MaxInterval = 5 * time.Second

	attempts := c.cfg.MaxRetries + 1
	var lastErr *gwerrors.Error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				break
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, gwerrors.Timeout("backend retry wait")
			case <-timer.C:
			}
		}

		res, gerr := c.doGenerate(ctx, model, prompt, payload)
		if gerr == nil {
			return res, nil
		}
		lastErr = gerr

		if ctx.Err() != nil {
			return nil, gwerrors.Timeout("backend generate")
		}
		if !gerr.Retryable {
			return nil, gerr
		}
	}

	if lastErr != nil {
		lastErr.Message = "backend_error: " + lastErr.Message
	}
	return nil, lastErr
}

func (c *Client) doGenerate(ctx context.Context, model, prompt string, payload []byte) (*Result, *gwerrors.Error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, gwerrors.Internal(fmt.Sprintf("build generate request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gwerrors.BackendTransient(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &gwerrors.Error{Kind: gwerrors.KindBackendTransient, Message: "backend rate limited", Retryable: true, RetryAfter: retryAfter}
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, gwerrors.BackendTransient(fmt.Sprintf("backend status %d: %s", resp.StatusCode, string(respBody)))
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, gwerrors.BackendRejected(fmt.Sprintf("backend status %d: %s", resp.StatusCode, string(respBody)))
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, gwerrors.BackendTransient(fmt.Sprintf("decode backend response: %v", err))
	}

	promptTokens := parsed.PromptEvalCount
	if promptTokens == nil {
		estimated := tokenizer.EstimateTokens(model, prompt)
		promptTokens = &estimated
	}
	completionTokens := parsed.EvalCount
	if completionTokens == nil {
		estimated := tokenizer.EstimateTokens(model, parsed.Response)
		completionTokens = &estimated
	}

	return &Result{
		Text:             parsed.Response,
		ModelUsed:        parsed.Model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// tagsResponse mirrors Ollama's /api/tags payload shape.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the backend-reported model names, used by the Model
// Router to refresh its resolution snapshot (§4.F).
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list models: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Health reports whether the backend is reachable and responsive, used for
// the readiness probe (§4.I).
func (c *Client) Health(ctx context.Context) error {
	if c.breaker.State() == resilience.StateOpen {
		return fmt.Errorf("backend unhealthy: circuit breaker open")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
