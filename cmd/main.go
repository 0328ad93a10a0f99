package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/evoked/internal/adapters/api"
	"github.com/okian/evoked/internal/adapters/transport"
	app "github.com/okian/evoked/internal/app"
	"github.com/okian/evoked/internal/config"
	"github.com/okian/evoked/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
	statsLogInterval  = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Results leave the process through the loopback transport; a network
	// publisher can replace it without touching the pipeline.
	loop := transport.NewLoopback()
	defer loop.Close()
	go drainResults(ctx, loop, loggerInstance)

	// Create and start the pipeline with configuration options
	opts := append(app.OptionsFromConfig(cfg),
		app.WithLogger(loggerInstance),
		app.WithPublisher(loop),
	)
	pipeline := app.New(opts...)
	if err := pipeline.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start pipeline: " + err.Error() + "\n")
		return
	}
	defer pipeline.Stop()

	// Periodic stats logging keeps the daemon observable without scraping.
	go startStatsLogger(ctx, pipeline, loggerInstance)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(pipeline, pipeline)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// startStatsLogger logs a pipeline snapshot at a fixed cadence.
func startStatsLogger(ctx context.Context, pipeline *app.Pipeline, lg logger.Logger) {
	ticker := time.NewTicker(statsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lg.Info(ctx, "pipeline stats", logger.Any("stats", pipeline.Stats()))
		}
	}
}

// drainResults logs every published detection in its wire form.
func drainResults(ctx context.Context, loop *transport.Loopback, lg logger.Logger) {
	for r := range loop.Results() {
		lg.Info(ctx, "detection result",
			logger.String("marker", transport.EncodeResultMarker(r)),
			logger.String("resultID", r.ResultID),
		)
	}
}
