// Package config provides configuration loading with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for
// zero-downtime updates, exactly as the teacher's internal/config package
// does; the schema itself is rebuilt to spec §6's recognized options
// instead of the teacher's multi-tenant LiteLLM-aligned surface (routing
// strategies, CORS, database, MCP, Vault, OIDC — see DESIGN.md for why
// each was dropped rather than adapted).
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/agentgate/internal/admission"
	"github.com/blueberrycongee/agentgate/internal/backend"
	"github.com/blueberrycongee/agentgate/internal/batch"
	"github.com/blueberrycongee/agentgate/internal/cache"
	"github.com/blueberrycongee/agentgate/internal/ratelimit"
	"github.com/blueberrycongee/agentgate/internal/router"
)

// Config is the complete gateway configuration, matching spec §6's
// recognized option list one section per component.
type Config struct {
	BindAddress         string                `yaml:"bind_address"`
	MetricsBindAddress  string                `yaml:"metrics_bind_address"`
	LogLevel            string                `yaml:"log_level"`
	SchemaVersion       byte                  `yaml:"schema_version"`
	APIKeys             []admission.KeyConfig `yaml:"api_keys"`
	AllowDevelopmentKey bool                  `yaml:"allow_development_default"`
	DefaultRate         DefaultRateConfig     `yaml:"default_rate"`
	Cache               cache.Config          `yaml:"cache"`
	Backend             backend.Config        `yaml:"backend"`
	Batch               batch.Config          `yaml:"batch"`
	Router              router.Config         `yaml:"router"`
	StrictStartup       StrictStartupConfig   `yaml:"strict_startup"`
}

// DefaultRateConfig is spec §6's default_rate: {capacity, refill_per_second}
// applied to any accepted key that doesn't carry its own override.
type DefaultRateConfig struct {
	Capacity       int     `yaml:"capacity"`
	RefillPerSecond float64 `yaml:"refill_per_second"`
}

// StrictStartupConfig controls whether an unreachable backend/cache at
// startup is fatal (exit 69/74, spec §6) or merely logged.
type StrictStartupConfig struct {
	Backend bool `yaml:"backend"`
	Cache   bool `yaml:"cache"`
}

// DefaultConfig returns a configuration with the same kind of conservative,
// locally-runnable defaults spec.md's examples assume: memory cache,
// localhost Ollama, a single development API key.
func DefaultConfig() *Config {
	return &Config{
		BindAddress:        ":8081",
		MetricsBindAddress: ":9090",
		LogLevel:           "info",
		SchemaVersion:      1,
		AllowDevelopmentKey: true,
		DefaultRate: DefaultRateConfig{
			Capacity:        10,
			RefillPerSecond: 5,
		},
		Cache:   cache.DefaultConfig(),
		Backend: backend.DefaultConfig(),
		Batch:   batch.DefaultConfig(),
		Router:  router.DefaultConfig(),
	}
}

// RatelimitConfig derives an internal/ratelimit.Config from the top-level
// default_rate section; ratelimit itself stays ignorant of YAML shape.
func (c *Config) RatelimitConfig() ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	if c.DefaultRate.Capacity > 0 {
		cfg.DefaultCapacity = c.DefaultRate.Capacity
	}
	if c.DefaultRate.RefillPerSecond > 0 {
		cfg.DefaultRate = c.DefaultRate.RefillPerSecond
	}
	return cfg
}

// AdmissionConfig derives an internal/admission.Config from the top-level
// key list.
func (c *Config) AdmissionConfig() admission.Config {
	return admission.Config{Keys: c.APIKeys, DevelopmentDefault: c.AllowDevelopmentKey}
}

// LoadFromFile reads and parses a YAML configuration file. Environment
// variables in the form ${VAR_NAME} are expanded before parsing, matching
// the teacher's convention for injecting secrets (backend URLs, Redis
// passwords) without committing them to the file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for the mistakes that would otherwise
// surface as a confusing runtime failure.
func (c *Config) Validate() error {
	if c.BindAddress == "" {
		return fmt.Errorf("bind_address is required")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.backend_url is required")
	}
	if c.Batch.MaxConcurrency <= 0 {
		return fmt.Errorf("batch.batch_max_concurrency must be positive")
	}
	if c.SchemaVersion == 0 {
		return fmt.Errorf("schema_version must be nonzero")
	}
	if len(c.APIKeys) == 0 && !c.AllowDevelopmentKey {
		return fmt.Errorf("api_keys must be non-empty unless allow_development_default is set")
	}
	if c.Router.RefreshInterval < 0 {
		return fmt.Errorf("router.model_refresh_interval_s must not be negative")
	}
	if c.DefaultRate.Capacity < 0 || c.DefaultRate.RefillPerSecond < 0 {
		return fmt.Errorf("default_rate values must not be negative")
	}
	if c.Cache.DefaultTTL < 0 || c.Cache.NegativeTTL < 0 {
		return fmt.Errorf("cache TTLs must not be negative")
	}
	return nil
}
