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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/callpath/callpath/internal/api"
	"github.com/callpath/callpath/internal/config"
	"github.com/callpath/callpath/internal/database"
	"github.com/callpath/callpath/internal/metrics"
	"github.com/callpath/callpath/internal/routing"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Configure structured logging.
	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting callpath",
		"http_port", cfg.HTTPPort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	extensions := database.NewExtensionRepository(db)
	groups := database.NewRingGroupRepository(db)
	rooms := database.NewConferenceRoomRepository(db)
	menus := database.NewIVRMenuRepository(db)
	schedules := database.NewScheduleRepository(db)
	routingLog := database.NewRoutingLogRepository(db)

	// Routing core. The cursor store outlives individual snapshots so
	// round-robin rotation persists across configuration reloads.
	loader := routing.NewLoader(extensions, groups, rooms, menus, schedules)
	cursors := routing.NewCursorStore()
	engine := routing.NewRingStrategyEngine(cursors, logger)
	evaluator := routing.NewScheduleEvaluator(logger)
	router := routing.NewRouter(engine, evaluator, routing.NewLogActions(logger), routingLog, logger)

	// Metrics registry with process/Go collectors plus the routing collector.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(metrics.NewCollector(router, routingLog, routingLog, cursors, startTime))

	// HTTP server using the api package.
	handler := api.NewServer(cfg, loader, engine, evaluator, routingLog, registry)
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("callpath stopped")
}
