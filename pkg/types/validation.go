package types

import "errors"

var (
	errModel            = errors.New("model is required")
	errPrompt           = errors.New("prompt is required and must be non-empty")
	errTemperature      = errors.New("temperature must be in [0, 2]")
	errMaxTokens        = errors.New("max_tokens must be positive")
	errMaxTokensCeiling = errors.New("max_tokens exceeds server-enforced ceiling")
	errCachePolicy      = errors.New("cache_policy must be one of use, bypass, refresh")
)
