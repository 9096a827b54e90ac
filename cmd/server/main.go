/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the timeline server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, -config YAML file, TIMELINE_* env)
  2. Build the logger
  3. Open the store (memory, sqlite or postgres)
  4. Create the API handler and S3 exporter, load demo timelines
     (server.demo), start the forced-selection scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML configuration file (optional)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (server.shutdown_timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with the defaults (./timelines.db)
  ./server

  # Run in memory on another port
  TIMELINE_STORE_DRIVER=memory TIMELINE_SERVER_PORT=3000 ./server

  # Run against RDS with IAM auth
  ./server -config=/etc/timeline/prod.yaml

SEE ALSO:
  - config/config.go: Every setting and its env variable
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/timeline-engine/api"
	"github.com/warp/timeline-engine/config"
	"github.com/warp/timeline-engine/export"
	"github.com/warp/timeline-engine/store/postgres"
	"github.com/warp/timeline-engine/store/sqlite"
	"github.com/warp/timeline-engine/timeline"
	"github.com/warp/timeline-engine/timeline/store"
)

// backend is what every store driver provides.
type backend interface {
	timeline.Store
	timeline.FilterLog
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize store
	db, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()
	logger.Info("store ready", slog.String("driver", cfg.Store.Driver))

	// Initialize handler
	handler := api.NewHandler(db, db)
	handler.Logger = logger.With(slog.String("component", "api"))
	handler.DefaultPreset = cfg.Timeline.DefaultPreset

	if cfg.ExportEnabled() {
		exp, err := export.New(ctx, export.Config{
			Bucket:  cfg.Export.Bucket,
			Prefix:  cfg.Export.Prefix,
			Region:  cfg.Export.Region,
			Profile: cfg.Export.AWSProfile,
		})
		if err != nil {
			return err
		}
		handler.Exporter = exp
		logger.Info("export enabled", slog.String("bucket", cfg.Export.Bucket))
	}

	if cfg.Server.Demo {
		created, err := handler.LoadDemo(ctx)
		if err != nil {
			return fmt.Errorf("failed to load demo timelines: %w", err)
		}
		logger.Info("demo timelines loaded", slog.Int("created", created))
	}

	// Forced selections follow the date
	scheduler := api.NewForcedSelectionScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// openStore opens the configured driver. The returned func releases it.
func openStore(ctx context.Context, cfg config.StoreConfig) (backend, func() error, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), func() error { return nil }, nil

	case "sqlite":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "postgres":
		pg := cfg.Postgres
		db, err := postgres.Open(ctx, postgres.Config{
			DSN: pg.DSN,
			RDS: postgres.RDSConfig{
				Endpoint: pg.RDSHost,
				Port:     pg.RDSPort,
				User:     pg.RDSUser,
				Database: pg.RDSDB,
				Region:   pg.RDSRegion,
				Profile:  pg.AWSProfile,
			},
		})
		if err != nil {
			return nil, nil, err
		}
		s, err := postgres.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
