package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/lecternhq/lectern/internal/api"
	"github.com/lecternhq/lectern/internal/app"
	"github.com/lecternhq/lectern/internal/config"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // answer composition can be slow
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if err := a.VerifySchema(ctx); err != nil {
		return fmt.Errorf("verifying schema: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		SessionStore: a.SessionStore,
		Retriever:    a.Retriever,
		Composer:     a.Composer,
		CourseStore:  a.CourseStore,
		Translator:   a.Translator,
		Pool:         a.DBPool,
		CORSOrigins:  cfg.CORSOrigins,
		TrustProxy:   cfg.TrustProxy,
		RateRPS:      cfg.RateLimitRPS,
		RateBurst:    cfg.RateLimitBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
