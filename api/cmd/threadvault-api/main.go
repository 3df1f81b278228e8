package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/irgordon/threadvault/api/internal/adapters/artifacts"
	"github.com/irgordon/threadvault/api/internal/api/handlers"
	"github.com/irgordon/threadvault/api/internal/api/router"
	"github.com/irgordon/threadvault/api/internal/config"
	"github.com/irgordon/threadvault/api/internal/core/services"
	delivery "github.com/irgordon/threadvault/api/internal/delivery/http"
	"github.com/irgordon/threadvault/api/internal/infrastructure/crypto"
	"github.com/irgordon/threadvault/api/internal/telemetry"
)

func main() {
	// --- 1. Core Telemetry & Configuration ---
	config.LoadEnvFiles(config.Environment())

	cfg, err := config.Load()
	if err != nil {
		slog.Error("FATAL: invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("Booting threadvault API",
		"version", versioninfo.Short(),
		"env", cfg.Environment,
		"artifact_base_url", cfg.ArtifactBaseURL,
	)

	// --- 2. Outbound Infrastructure ---
	fetcher, err := artifacts.NewHTTPFetcher(cfg.ArtifactBaseURL, cfg.DataRoot, logger)
	if err != nil {
		logger.Error("FATAL: artifact fetcher", "error", err)
		os.Exit(1)
	}

	// --- 3. Dependency Injection ---
	telemetryHub := telemetry.NewHub()
	unlockService := services.NewUnlockService(fetcher, crypto.NewThreadService(), telemetryHub, logger, cfg.DecryptDelay)

	sessions, err := services.NewSessionService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("FATAL: sessions", "error", err)
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Info("SESSION_SECRET not set, sessions end with this process")
	}

	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		UnlockHandler:  handlers.NewUnlockHandler(unlockService, sessions, cfg.Sources, logger),
		ThreadHandler:  handlers.NewThreadHandler(unlockService),
		WSHandler:      handlers.NewWebSocketHandler(telemetryHub, cfg.AllowedOrigins, logger),
		HealthHandler:  delivery.NewHealthHandler(""),
		Sessions:       sessions,
		Logger:         logger,
	})

	// No WriteTimeout: unlock attempts and state streams run as long as they need.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	// --- 4. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("threadvault API active", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: Server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ERROR: Forced shutdown", "error", err)
	}
	logger.Info("threadvault API stopped")
}
