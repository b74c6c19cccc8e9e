// Package types defines the wire-level data model shared by every component
// of the gateway: the inbound GenerationRequest, the optional AgentProfile
// that drives prompt assembly, and the outcome returned to callers.
package types

// CachePolicy controls how a request interacts with the response cache.
type CachePolicy string

const (
	// CacheUse is the default: a valid cache hit short-circuits the request.
	CacheUse CachePolicy = "use"
	// CacheBypass never reads from nor writes to the cache.
	CacheBypass CachePolicy = "bypass"
	// CacheRefresh ignores hits and always writes a fresh result on success.
	CacheRefresh CachePolicy = "refresh"
)

// Decoding defaults, per spec §3.
const (
	DefaultTemperature    = 0.7
	DefaultMaxTokens      = 200
	DefaultTopP           = 1.0
	DefaultRepeatPenalty  = 1.1
	MaxTokensCeilingHard  = 4096
)

// GenerationRequest is the immutable-after-admission description of a single
// text-generation call. Fields that influence the generated text participate
// in the fingerprint (internal/fingerprint); request_id and cache_policy do
// not.
type GenerationRequest struct {
	Model      string  `json:"model"`
	Prompt     string  `json:"prompt"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP           *float64 `json:"top_p,omitempty"`
	TopK           *int     `json:"top_k,omitempty"`
	RepeatPenalty  *float64 `json:"repeat_penalty,omitempty"`
	Stop           []string `json:"stop,omitempty"`
	Seed           *int64   `json:"seed,omitempty"`
	AgentProfile   *AgentProfile `json:"agent_profile,omitempty"`
	CachePolicy    CachePolicy   `json:"cache_policy,omitempty"`
	RequestID      string        `json:"request_id,omitempty"`

	// APIKey is populated by admission, never by the client body.
	APIKey string `json:"-"`
}

// EffectiveTemperature returns the configured value or the documented default.
func (r *GenerationRequest) EffectiveTemperature() float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxTokens returns the configured value or the documented default.
func (r *GenerationRequest) EffectiveMaxTokens() int {
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	return DefaultMaxTokens
}

// EffectiveTopP returns the configured value or the documented default.
func (r *GenerationRequest) EffectiveTopP() float64 {
	if r.TopP != nil {
		return *r.TopP
	}
	return DefaultTopP
}

// EffectiveCachePolicy returns the configured policy or "use".
func (r *GenerationRequest) EffectiveCachePolicy() CachePolicy {
	if r.CachePolicy == "" {
		return CacheUse
	}
	return r.CachePolicy
}

// Validate enforces the §3 constraints that admission must reject before the
// request reaches the pipeline. It never inspects agent_profile: malformed
// optional fields there are simply treated as absent (§9), not validation
// errors.
func (r *GenerationRequest) Validate(maxTokensCeiling int) error {
	if r.Model == "" {
		return errModel
	}
	if r.Prompt == "" {
		return errPrompt
	}
	if t := r.EffectiveTemperature(); t < 0 || t > 2 {
		return errTemperature
	}
	if mt := r.EffectiveMaxTokens(); mt <= 0 {
		return errMaxTokens
	} else if maxTokensCeiling > 0 && mt > maxTokensCeiling {
		return errMaxTokensCeiling
	}
	if r.CachePolicy != "" && r.CachePolicy != CacheUse && r.CachePolicy != CacheBypass && r.CachePolicy != CacheRefresh {
		return errCachePolicy
	}
	return nil
}
