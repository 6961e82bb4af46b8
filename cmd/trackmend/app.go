package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sydlexius/trackmend/internal/backup"
	"github.com/sydlexius/trackmend/internal/config"
	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/dedupe"
	"github.com/sydlexius/trackmend/internal/engine"
	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/job"
	"github.com/sydlexius/trackmend/internal/logging"
	"github.com/sydlexius/trackmend/internal/maintenance"
	"github.com/sydlexius/trackmend/internal/scanner"
	"github.com/sydlexius/trackmend/internal/settings"
	"github.com/sydlexius/trackmend/internal/track"
	"github.com/sydlexius/trackmend/internal/webhook"
	"github.com/sydlexius/trackmend/internal/wishlist"
)

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	logManager *logging.Manager
	logger     *slog.Logger
	bus        *event.Bus
	busDone    chan struct{}
	webhooks   *webhook.Dispatcher
	settings   *settings.Store
	jobStore   *job.Store
	scanner    *scanner.Service
	planner    *dedupe.Planner
	backup     *backup.Service
	maint      *maintenance.Service
	engine     *engine.Engine
}

// newApp opens the database and wires the services. A non-empty console
// overrides the configured console log stream.
func newApp(ctx context.Context, cfg *config.Config, console string) (*app, error) {
	logCfg := cfg.Logging
	if console != "" {
		logCfg.Console = console
	}
	logManager, logger := logging.NewManager(logCfg)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		_ = logManager.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		_ = logManager.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	logger.Debug("database ready", slog.String("path", cfg.Database.Path))

	// Persisted overrides from the API win over the config file.
	settingsStore := settings.NewStore(db)
	if applied := settingsStore.ApplyLogging(ctx, logManager.Config()); applied != logManager.Config() {
		logManager.Reconfigure(applied)
		logger.Info("applied stored logging overrides", "config", applied.String())
	}

	bus := event.NewBus(logger, 256)
	var hooks *webhook.Dispatcher
	if len(cfg.Webhooks.Outbound) > 0 {
		hooks = webhook.NewDispatcher(cfg.Webhooks.Outbound, logger)
		hooks.Subscribe(bus)
	}
	busDone := make(chan struct{})
	go func() {
		defer close(busDone)
		bus.Start()
	}()

	tracks := track.NewService(db)
	jobStore := job.NewStore(db)
	jobs := job.NewRegistry(logger, cfg.Jobs.LockDir)
	jobs.SetStore(jobStore)
	jobs.SetEventBus(bus)

	sc := scanner.NewService(tracks, logger, scanner.Options{
		LibraryPath: cfg.Music.LibraryPath,
		Workers:     cfg.Scanner.Workers,
		Extensions:  cfg.Scanner.Extensions,
	})
	sc.SetEventBus(bus)

	planner := dedupe.NewPlanner(tracks, logger)
	if cfg.Music.QuarantinePath != "" {
		planner.SetQuarantine(cfg.Music.LibraryPath, cfg.Music.QuarantinePath)
	}

	backups := backup.NewService(db, cfg.Database.BackupDir, cfg.Database.BackupRetention, logger)

	eng := engine.New(engine.Deps{
		Tracks:      tracks,
		Wishlist:    wishlist.NewService(db),
		Jobs:        jobs,
		Scanner:     sc,
		Planner:     planner,
		Backup:      backups,
		EventBus:    bus,
		MatchConfig: track.MatchConfig{MinConfidence: cfg.Matching.MinConfidence},
		Logger:      logger,
	})

	return &app{
		cfg:        cfg,
		db:         db,
		logManager: logManager,
		logger:     logger,
		bus:        bus,
		busDone:    busDone,
		webhooks:   hooks,
		settings:   settingsStore,
		jobStore:   jobStore,
		scanner:    sc,
		planner:    planner,
		backup:     backups,
		maint:      maintenance.NewService(db, cfg.Database.Path, settingsStore, logger),
		engine:     eng,
	}, nil
}

// Close drains the event bus, waits for webhook deliveries, and releases
// the database and log file.
func (a *app) Close() error {
	a.bus.Stop()
	<-a.busDone
	if a.webhooks != nil {
		a.webhooks.Wait()
	}
	return errors.Join(a.db.Close(), a.logManager.Close())
}
