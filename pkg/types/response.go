package types

import "time"

// CacheStatus is reported on every response, per spec §6 GLOSSARY.
type CacheStatus string

const (
	CacheHit     CacheStatus = "hit"
	CacheMiss    CacheStatus = "miss"
	CacheRefreshed CacheStatus = "refresh"
	CacheBypassed  CacheStatus = "bypass"
)

// TokenCounts reports prompt/completion token accounting. Either field may be
// nil if the backend did not report counts (spec §4.E) — callers must treat
// nil as "unknown", never as zero.
type TokenCounts struct {
	Prompt     *int `json:"prompt,omitempty"`
	Completion *int `json:"completion,omitempty"`
}

// GenerationResult is the success payload produced by the Request Pipeline
// and, after aggregation, returned to the client.
type GenerationResult struct {
	Response    string      `json:"response"`
	Model       string      `json:"model"`
	CacheStatus CacheStatus `json:"cache_status"`
	LatencyMS   int64       `json:"latency_ms"`
	Tokens      TokenCounts `json:"tokens"`
	RequestID   string      `json:"request_id,omitempty"`
}

// CacheEntry is the durable unit the Cache component stores, per spec §3.
type CacheEntry struct {
	Fingerprint        string      `json:"fingerprint"`
	ResponseText       string      `json:"response_text"`
	ModelUsed          string      `json:"model_used"`
	PromptTokens       *int        `json:"prompt_tokens,omitempty"`
	CompletionTokens   *int        `json:"completion_tokens,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	TTL                time.Duration `json:"ttl"`
	// Negative caches a structured failure instead of a completion; see §4.B.
	Negative    bool   `json:"negative,omitempty"`
	FailureKind string `json:"failure_kind,omitempty"`
	FailureMsg  string `json:"failure_message,omitempty"`
}

// Expired reports whether the entry's TTL has elapsed as of now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}
