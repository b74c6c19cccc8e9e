// Package main is the entry point for the gateway server. It wires
// together every component named in spec §4 behind the HTTP surface in
// §6, matching the teacher's own cmd/server/main.go shape: flag-parsed
// config path, a hot-reloading config.Manager, a structured logger, a
// primary listener plus a separate metrics listener, and a signal-driven
// graceful shutdown — trimmed of the teacher's multi-tenant auth/secret/
// tracing/UI machinery this single-backend gateway has no use for (see
// DESIGN.md).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blueberrycongee/agentgate/internal/admission"
	"github.com/blueberrycongee/agentgate/internal/backend"
	"github.com/blueberrycongee/agentgate/internal/batch"
	"github.com/blueberrycongee/agentgate/internal/cache"
	"github.com/blueberrycongee/agentgate/internal/config"
	"github.com/blueberrycongee/agentgate/internal/httpapi"
	"github.com/blueberrycongee/agentgate/internal/metrics"
	"github.com/blueberrycongee/agentgate/internal/observability"
	"github.com/blueberrycongee/agentgate/internal/pipeline"
	"github.com/blueberrycongee/agentgate/internal/ratelimit"
	"github.com/blueberrycongee/agentgate/internal/router"
)

// Exit codes per spec §6.
const (
	exitOK             = 0
	exitServerError    = 1
	exitConfigError    = 64
	exitBackendStartup = 69
	exitCacheStartup   = 74
	exitInterrupted    = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env if present, for local development convenience; a missing
	// file is not an error, and real deployments set env vars directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	jsonLogging := observability.EnvBool("AGENTGATE_LOG_JSON", true)

	redactor := observability.NewRedactor()
	logger := observability.NewLogger(observability.LoggerConfig{JSONFormat: jsonLogging}, redactor)

	cfgManager, err := config.NewManager(*configPath, logger)
	if err != nil {
		logger.Error("failed to load configuration", "error", err, "path", *configPath)
		return exitConfigError
	}
	defer func() { _ = cfgManager.Close() }()

	cfg := cfgManager.Get()
	logger = observability.NewLogger(observability.LoggerConfig{JSONFormat: jsonLogging, Level: logLevel(cfg.LogLevel)}, redactor)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	admissionGate := admission.New(cfg.AdmissionConfig())

	limits := ratelimit.NewRegistry(cfg.RatelimitConfig())
	defer limits.Close()
	for _, k := range cfg.APIKeys {
		if k.RatePerSecond > 0 {
			identity := k.QuotaIdentity
			if identity == "" {
				identity = k.Key
			}
			limits.SetOverride(identity, k.RatePerSecond, k.RateCapacity)
		}
	}

	cacheBackend, err := cache.NewBackendFromConfig(cfg.Cache)
	if err != nil {
		logger.Error("failed to construct cache backend", "error", err)
		if cfg.StrictStartup.Cache {
			return exitCacheStartup
		}
		logger.Warn("falling back to in-memory cache backend")
		cacheBackend = cache.NewMemoryBackend(cfg.Cache.MemoryMaxSize, time.Minute)
	}
	store := cache.NewStore(cacheBackend, cfg.Cache)

	backendClient := backend.New(cfg.Backend)
	startupCtx, startupCancel := context.WithTimeout(ctx, 10*time.Second)
	startupErr := backendClient.Health(startupCtx)
	startupCancel()
	if startupErr != nil {
		logger.Warn("backend not reachable at startup", "error", startupErr, "backend_url", cfg.Backend.BaseURL)
		if cfg.StrictStartup.Backend {
			return exitBackendStartup
		}
	}

	modelRouter := router.New(backendClient, cfg.Router)
	modelRouter.Start(ctx)
	defer modelRouter.Close()

	m := metrics.New()

	pipe := pipeline.New(pipeline.Config{SchemaVersion: cfg.SchemaVersion}, store, modelRouter, backendClient, m, logger.Zerolog())

	coordinator := batch.New(pipe, cfg.Batch)

	health := metrics.NewHealth(backendClient, modelRouter)
	health.Start(ctx, 5*time.Second)
	defer health.Close()

	httpCfg := httpapi.DefaultConfig()
	srv := httpapi.New(httpCfg, admissionGate, limits, pipe, coordinator, modelRouter, health, m, logger)

	apiServer := &http.Server{
		Addr:         cfg.BindAddress,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Backend.TotalDeadline + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	metricsServer := &http.Server{
		Addr:    cfg.MetricsBindAddress,
		Handler: metricsHandler(m),
	}

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("gateway listening", "bind_address", cfg.BindAddress)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("api server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", "bind_address", cfg.MetricsBindAddress)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		return exitServerError
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}

	logger.Info("gateway stopped")
	if ctx.Err() != nil {
		return exitInterrupted
	}
	return exitOK
}
