package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/trackmend/internal/api"
	"github.com/sydlexius/trackmend/internal/api/middleware"
	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/version"
	"github.com/sydlexius/trackmend/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the library watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, cctx *commandContext) error {
	cfg, err := cctx.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck
	logger := a.logger

	// Runs left open by a previous process can never finish.
	if n, err := a.jobStore.MarkAbandoned(ctx); err != nil {
		logger.Warn("marking abandoned jobs", "error", err)
	} else if n > 0 {
		logger.Info("marked abandoned jobs", "count", n)
	}

	logger.Info("starting trackmend",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("library", cfg.Music.LibraryPath),
	)

	if interval := cfg.Database.MaintenanceInterval; interval > 0 && cfg.Database.Path != database.MemoryPath {
		go a.maint.StartScheduler(ctx, interval)
	}

	if cfg.Scanner.Watch {
		w := watcher.NewService(func(ctx context.Context) error {
			_, err := a.engine.StartScan(ctx)
			return err
		}, logger, watcher.Options{
			Root:         cfg.Music.LibraryPath,
			Debounce:     cfg.Scanner.Debounce,
			PollInterval: cfg.Scanner.PollInterval,
			Accept:       a.scanner.Accepts,
		})
		go w.Start(ctx)
	}

	router := api.NewRouter(api.RouterDeps{
		Engine:         a.engine,
		LogManager:     a.logManager,
		Settings:       a.settings,
		EventBus:       a.bus,
		Maintenance:    a.maint,
		Backup:         a.backup,
		LidarrToken:    cfg.Webhooks.LidarrToken,
		TriggerLimiter: middleware.NewRateLimiter(ctx, 10*time.Second, 3),
		Logger:         logger,
		BasePath:       cfg.Server.BasePath,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", srv.Addr), slog.String("base_path", cfg.Server.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	srvErr := srv.Shutdown(shutdownCtx)
	if err := a.engine.Jobs().Shutdown(shutdownCtx); err != nil {
		logger.Warn("jobs did not stop before shutdown deadline", "error", err)
	}
	return srvErr
}
