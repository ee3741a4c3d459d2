// Command gardenqueued runs the offline-first garden work queue as a
// daemon: durable store, chain submission, connectivity-driven flushing,
// an admin HTTP API, and a Prometheus metrics endpoint.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/greengoods/gardenqueue"
	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/config"
	"github.com/greengoods/gardenqueue/metrics"
)

func main() {
	cfg := config.Load()

	var handler slog.Handler
	if cfg.Env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	client, err := chain.DialBundler(ctx, cfg.BundlerURL)
	if err != nil {
		slog.Error("Failed to connect to bundler", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	q, err := gardenqueue.New(ctx, cfg, client)
	if err != nil {
		slog.Error("Failed to assemble queue", "error", err)
		os.Exit(1)
	}
	if err := q.Start(ctx); err != nil {
		slog.Error("Failed to start queue", "error", err)
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      newRouter(q, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux(),
	}

	go func() {
		slog.Info("Admin API listening", "addr", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Admin API server failed", "error", err)
		}
	}()
	go func() {
		slog.Info("Metrics listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin API shutdown failed", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics shutdown failed", "error", err)
	}
	if err := q.Stop(); err != nil {
		slog.Error("Queue shutdown failed", "error", err)
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
