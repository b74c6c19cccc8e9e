package observability

import (
	"os"
	"strings"
)

// EnvBool reads a boolean environment variable, falling back to
// defaultValue when it is unset or unparsable. Used by cmd/server to let a
// developer flip JSON logging off for a human-readable console during local
// work, without touching the YAML config (spec §9 ambient logging is
// JSON-formatted by default; this is a local override only).
func EnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if strings.EqualFold(value, "true") || value == "1" {
		return true
	}
	if strings.EqualFold(value, "false") || value == "0" {
		return false
	}
	return defaultValue
}
