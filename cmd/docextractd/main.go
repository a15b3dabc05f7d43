package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/docextract/internal/app"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/server"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	const filesPrefix = "/files"
	opts := []server.Option{
		server.WithExporter(a.Export),
		server.WithFiles(a.Files.Handler(filesPrefix)),
	}
	if v := app.Verifier(cfg.Auth); v != nil {
		opts = append(opts, server.WithAuth(v))
	} else {
		logger.Warn("authentication disabled; all requests run as the local user")
	}
	srv := server.New(server.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		FilesPrefix:    filesPrefix,
	}, a.Ingest, a.Tasks, logger, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("docextractd listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var health *server.HealthServer
	if cfg.Server.GRPCHealthAddr != "" {
		health, err = server.ListenHealth(cfg.Server.GRPCHealthAddr, logger)
		if err != nil {
			logger.Error("failed to listen for grpc health", "addr", cfg.Server.GRPCHealthAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := health.Serve(); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if health != nil {
		health.Shutdown(shutdownCtx)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	// Drains queued submissions before the database closes.
	a.Close(shutdownCtx)
	logger.Info("stopped")
}
