// Package admission implements component J: validating the inbound API key
// against a configured set and tagging the request with the quota identity
// the Rate Limiter keys on. It is grounded in the teacher's
// internal/auth/middleware.go for the "validate, then stamp the request
// context with an identity" shape, narrowed from that package's
// multi-tenant store/session/OIDC/casbin machinery (none of which this
// single-operator gateway needs — see DESIGN.md) down to spec §4.J's exact
// contract: a configured set of keys, each naming its own quota identity,
// with an optional default key for development.
package admission

import (
	"github.com/blueberrycongee/agentgate/pkg/gwerrors"
)

// KeyConfig describes one accepted key and the rate-limit quota it maps to
// (spec §6: "api_keys: set of accepted keys; may include per-key rate
// limits").
type KeyConfig struct {
	Key           string  `yaml:"key"`
	QuotaIdentity string  `yaml:"quota_identity"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateCapacity  int     `yaml:"rate_capacity"`
}

// Config holds the configured key set plus the development fallback.
type Config struct {
	Keys               []KeyConfig `yaml:"api_keys"`
	DevelopmentDefault bool        `yaml:"allow_development_default"`
}

const developmentDefaultKey = "dev-default-key"

// Identity is what a successfully admitted request carries forward: the
// quota identity the Rate Limiter buckets on, and any per-key rate
// override Admission knows about.
type Identity struct {
	QuotaIdentity string
	RatePerSecond float64
	RateCapacity  int
}

// Gate validates API keys against the configured set.
type Gate struct {
	byKey map[string]Identity
	devOK bool
}

// New builds a Gate from Config. In development mode, a fixed default key
// is accepted even with an empty configured set, per spec §4.J ("a default
// key only in development").
func New(cfg Config) *Gate {
	byKey := make(map[string]Identity, len(cfg.Keys))
	for _, k := range cfg.Keys {
		identity := k.QuotaIdentity
		if identity == "" {
			identity = k.Key
		}
		byKey[k.Key] = Identity{
			QuotaIdentity: identity,
			RatePerSecond: k.RatePerSecond,
			RateCapacity:  k.RateCapacity,
		}
	}
	if cfg.DevelopmentDefault {
		if _, exists := byKey[developmentDefaultKey]; !exists {
			byKey[developmentDefaultKey] = Identity{QuotaIdentity: developmentDefaultKey}
		}
	}
	return &Gate{byKey: byKey, devOK: cfg.DevelopmentDefault}
}

// Admit validates apiKey and, on success, returns the Identity to tag the
// request with. An unknown key is rejected with KindUnauthorized (spec
// §4.J, §7).
func (g *Gate) Admit(apiKey string) (Identity, *gwerrors.Error) {
	if apiKey == "" {
		return Identity{}, gwerrors.Unauthorized("missing api key")
	}
	identity, ok := g.byKey[apiKey]
	if !ok {
		return Identity{}, gwerrors.Unauthorized("unknown api key")
	}
	return identity, nil
}

// DevelopmentDefaultKey exposes the fixed development key so a dev config
// loader can print it at startup.
func DevelopmentDefaultKey() string { return developmentDefaultKey }
