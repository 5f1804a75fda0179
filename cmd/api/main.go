package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/lorrc/clinic-queue/internal/adapters/primary/http"
	mw "github.com/lorrc/clinic-queue/internal/adapters/primary/http/middleware"
	"github.com/lorrc/clinic-queue/internal/adapters/primary/websocket"
	"github.com/lorrc/clinic-queue/internal/adapters/secondary/memory"
	"github.com/lorrc/clinic-queue/internal/adapters/secondary/postgres"
	"github.com/lorrc/clinic-queue/internal/adapters/secondary/sqlite"
	"github.com/lorrc/clinic-queue/internal/config"
	"github.com/lorrc/clinic-queue/internal/core/ports"
	"github.com/lorrc/clinic-queue/internal/core/services"
	"github.com/lorrc/clinic-queue/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"config", cfg.String(),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 3. Open the counter store
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open counter store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("counter store ready", "driver", cfg.Store.Driver)

	// 4. Real-time push to displays
	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	// 5. Core service
	queueService, err := services.NewQueueService(ctx, store, hub, logger,
		services.WithPersistBuffer(cfg.Queue.PersistBuffer),
		services.WithPersistTimeout(cfg.Queue.PersistTimeout),
	)
	if err != nil {
		logger.Error("failed to start queue service", "error", err)
		os.Exit(1)
	}
	defer queueService.Shutdown()

	// 6. Rate limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
		defer rateLimiter.Stop()
	}

	// 7. Router
	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Logger:       logger,
		QueueService: queueService,
		Store:        store,
		StoreName:    cfg.Store.Driver,
		Hub:          hub,
		Segments:     segmentsFS(cfg.Audio.SegmentsDir, logger),
		RateLimiter:  rateLimiter,
		CORSOrigins:  cfg.CORS.AllowedOrigins,
		WebSocket: httpAdapter.WebSocketConfig{
			AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			IsDevelopment:   cfg.IsDevelopment(),
		},
		Version: cfg.App.Version,
	})

	// 8. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		exitCode = 1
	}

	// Close displays, then drain pending writes before the store closes.
	stop()
	queueService.Shutdown()

	logger.Info("server shutdown complete")
	if exitCode != 0 {
		store.Close()
		os.Exit(exitCode)
	}
}

// openStore builds the configured counter store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ports.CounterStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL); err != nil {
				return nil, err
			}
			logger.Info("database migrations applied")
		}

		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return postgres.NewCounterStore(pool), nil

	case config.StoreDriverSQLite:
		return sqlite.Open(sqlite.Config{
			Path:     cfg.SQLite.Path,
			PoolSize: cfg.SQLite.PoolSize,
			Logger:   logger,
		})

	case config.StoreDriverMemory:
		logger.Warn("using in-memory counter store, numbering resets on restart")
		return memory.NewCounterStore(), nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// segmentsFS returns the announcement recordings directory, or nil when it
// is unset or missing.
func segmentsFS(dir string, logger *slog.Logger) fs.FS {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.Warn("audio segments directory not found, /audio disabled", "dir", dir)
		return nil
	}
	return os.DirFS(dir)
}
