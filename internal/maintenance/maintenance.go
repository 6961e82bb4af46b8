// Package maintenance keeps the SQLite store compact: periodic PRAGMA
// optimize with a WAL checkpoint, on-demand VACUUM, and size reporting.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sydlexius/trackmend/internal/database"
	"github.com/sydlexius/trackmend/internal/settings"
)

// KeyLastOptimize records when Optimize last succeeded.
const KeyLastOptimize = "db_maintenance.last_optimize_at"

// Status holds database size and maintenance information.
type Status struct {
	SchemaVersion  int64  `json:"schema_version"`
	DBFileSize     int64  `json:"db_file_size"`
	WALFileSize    int64  `json:"wal_file_size"`
	PageCount      int64  `json:"page_count"`
	PageSize       int64  `json:"page_size"`
	FreelistCount  int64  `json:"freelist_count"`
	LastOptimizeAt string `json:"last_optimize_at,omitempty"`
}

// Service provides database maintenance operations.
type Service struct {
	db       *sql.DB
	dbPath   string
	settings *settings.Store
	logger   *slog.Logger
}

// NewService creates a maintenance service for the database at dbPath.
func NewService(db *sql.DB, dbPath string, store *settings.Store, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		dbPath:   dbPath,
		settings: store,
		logger:   logger.With(slog.String("component", "maintenance")),
	}
}

// Status returns current database size information.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	st := &Status{}

	if info, err := os.Stat(s.dbPath); err == nil {
		st.DBFileSize = info.Size()
	}
	if info, err := os.Stat(s.dbPath + "-wal"); err == nil {
		st.WALFileSize = info.Size()
	}

	for _, p := range []struct {
		pragma string
		dst    *int64
	}{
		{"page_count", &st.PageCount},
		{"page_size", &st.PageSize},
		{"freelist_count", &st.FreelistCount},
	} {
		if err := s.db.QueryRowContext(ctx, "PRAGMA "+p.pragma).Scan(p.dst); err != nil {
			return nil, fmt.Errorf("reading %s: %w", p.pragma, err)
		}
	}

	v, err := database.SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	st.SchemaVersion = v
	st.LastOptimizeAt = s.settings.String(ctx, KeyLastOptimize, "")
	return st, nil
}

// Optimize runs PRAGMA optimize followed by a WAL checkpoint.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}

	if err := s.settings.Set(ctx, KeyLastOptimize, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("recording optimize timestamp", "error", err)
	}
	s.logger.Info("optimize complete")
	return nil
}

// Vacuum rebuilds the database file, returning freed pages to the OS.
func (s *Service) Vacuum(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("VACUUM: %w", err)
	}
	s.logger.Info("vacuum complete")
	return nil
}

// StartScheduler runs Optimize on a fixed interval until ctx is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("maintenance scheduler started", slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Optimize(ctx); err != nil {
				s.logger.Error("scheduled optimize failed", slog.Any("error", err))
			}
		}
	}
}
