package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lamiti/shopsync/internal/api"
	"github.com/lamiti/shopsync/internal/backup"
	"github.com/lamiti/shopsync/internal/config"
	"github.com/lamiti/shopsync/internal/lifecycle"
	"github.com/lamiti/shopsync/internal/queue"
	"github.com/lamiti/shopsync/internal/remote"
	"github.com/lamiti/shopsync/internal/store"
	syncworker "github.com/lamiti/shopsync/internal/sync"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "shopsync",
	Short: "ShopSync - offline-first storefront sync service",
	RunE:  run,
}

func run(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("configuration loaded")

	// 3. Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)
	slog.Info("logger initialized", "level", cfg.Log.Level)

	// 4. Initialize replica store (migrations, WAL mode)
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	// 5. Initialize remote client and outbox queue
	backend := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		time.Duration(cfg.Remote.Timeout))
	outbox := queue.New(db, cfg.Sync.MaxRejectedAttempts)
	slog.Info("remote client initialized", "base_url", cfg.Remote.BaseURL)

	// 6. Initialize lifecycle and sync coordinator
	lc := lifecycle.New()
	coordinator := syncworker.New(db, backend, outbox, lc, syncworker.Options{
		Interval:     time.Duration(cfg.Sync.Interval),
		InitialDelay: time.Duration(cfg.Sync.InitialDelay),
		Privileged:   cfg.Sync.Privileged,
	})
	if cfg.Sync.StartOnline {
		coordinator.SetOnline(ctx, true)
	}
	slog.Info("sync coordinator initialized",
		"interval", time.Duration(cfg.Sync.Interval).String(),
		"online", cfg.Sync.StartOnline)

	// 7. Initialize replica backup
	uploader, err := backup.NewUploader(cfg.Backup)
	if err != nil {
		return fmt.Errorf("initialize backup uploader: %w", err)
	}
	backupWorker := backup.NewCoordinator(db, uploader, cfg.Backup.DeviceID,
		time.Duration(cfg.Backup.Interval))

	// 8. Initialize HTTP router
	handler := api.NewHandler(coordinator, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	// 9. Configure HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 10. Start background workers
	var wg sync.WaitGroup
	startWorker(ctx, &wg, "sync", coordinator.Run)
	startWorker(ctx, &wg, "backup", backupWorker.Run)

	// 11. Start HTTP server in goroutine
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called gracefully.
		// Any other error indicates an actual server failure that should trigger shutdown.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel() // Trigger shutdown on server failure
		}
	}()

	// 12. Block until signal received
	<-ctx.Done()
	slog.Info("shutdown initiated")

	// 13. Graceful shutdown sequence
	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	// 13a. Stop HTTP server (drains in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// 13b. Wait for workers to complete
	wg.Wait()

	// 13c. Close store
	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context cancellation.
// Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}
