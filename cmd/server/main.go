// Package main is the entry point for the querydesk HTTP server. It opens the
// SQLite metastore, wires the query orchestrator and serves the JSON API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"querydesk/internal/api"
	"querydesk/internal/app"
	"querydesk/internal/config"
	internaldb "querydesk/internal/db"
	"querydesk/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file (if present)
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// writeDB: single-connection pool for serialized writes.
	// readDB:  4-connection pool for concurrent history reads.
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		return fmt.Errorf("open metastore: %w", err)
	}
	defer writeDB.Close() //nolint:errcheck
	defer readDB.Close()  //nolint:errcheck

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return fmt.Errorf("migrate metastore: %w", err)
	}

	application, err := app.New(ctx, app.Deps{
		Cfg:     cfg,
		WriteDB: writeDB,
		ReadDB:  readDB,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	validator, err := newAuthValidator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	svc := application.Services
	handler := api.NewHandler(application, svc.Orchestrator, svc.Board, svc.Connections, svc.History, logger.With("component", "api"))
	router := api.NewRouter(handler, api.RouterOptions{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter: middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		Auth:   validator,
		Logger: logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		_ = application.Close(10 * time.Second)
	}()

	logger.Info("querydesk listening",
		"addr", cfg.ListenAddr,
		"meta_db", cfg.MetaDBPath,
		"query_timeout", cfg.QueryTimeout.String(),
		"auth", validator != nil,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cancel()
		<-shutdownDone
		return fmt.Errorf("server: %w", err)
	}
	<-shutdownDone
	return nil
}

// newAuthValidator picks OIDC when an issuer is configured, HS256 when only
// a shared secret is set, and nil when authentication is disabled.
func newAuthValidator(ctx context.Context, cfg *config.Config) (middleware.TokenValidator, error) {
	switch {
	case cfg.AuthIssuerURL != "":
		return middleware.NewOIDCValidator(ctx, cfg.AuthIssuerURL, cfg.AuthAudience)
	case cfg.AuthJWTSecret != "":
		return middleware.NewHS256Validator(cfg.AuthJWTSecret)
	default:
		return nil, nil
	}
}
