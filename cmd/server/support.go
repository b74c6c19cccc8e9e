package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blueberrycongee/agentgate/internal/metrics"
)

// metricsHandler exposes m's registry on the metrics listener, separate
// from the request API listener per spec §6's metrics_bind_address.
func metricsHandler(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	return mux
}

// logLevel parses the configured log_level, defaulting to info on anything
// unrecognized rather than failing startup over a typo.
func logLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
