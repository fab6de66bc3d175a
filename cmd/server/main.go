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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vehicle-sanctions/internal/app"
	"vehicle-sanctions/internal/platform/config"
	"vehicle-sanctions/internal/platform/httpserver"
	"vehicle-sanctions/internal/platform/logger"
	"vehicle-sanctions/internal/platform/metrics"
	"vehicle-sanctions/internal/platform/middleware"
	"vehicle-sanctions/internal/sanction/handler"
	request "vehicle-sanctions/pkg/platform/middleware/request"
	"vehicle-sanctions/pkg/platform/middleware/requesttime"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/sanction.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise sanction service", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.ClientMetadata)
	r.Use(request.Actor)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Latency(metrics.New()))

	handler.New(deps.Service, deps.Maintenance, log).Register(r)
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting vehicle-sanctions",
			"addr", cfg.Addr,
			"store", string(cfg.Store),
			"environment", cfg.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server error", "error", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
