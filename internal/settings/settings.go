// Package settings persists runtime overrides in the settings table so that
// changes made through the API survive a restart.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sydlexius/trackmend/internal/logging"
)

// Keys for persisted logging overrides.
const (
	KeyLogLevel      = "logging.level"
	KeyLogFormat     = "logging.format"
	KeyLogMaxSizeMB  = "logging.file_max_size_mb"
	KeyLogMaxFiles   = "logging.file_max_files"
	KeyLogMaxAgeDays = "logging.file_max_age_days"
)

// Store reads and writes key/value settings.
type Store struct {
	db *sql.DB
}

// NewStore creates a settings store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key and whether it was set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("writing setting %s: %w", key, err)
	}
	return nil
}

// String returns the value for key, or fallback when unset or empty.
func (s *Store) String(ctx context.Context, key, fallback string) string {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok || v == "" {
		return fallback
	}
	return v
}

// Int returns the integer value for key, or fallback when unset or invalid.
func (s *Store) Int(ctx context.Context, key string, fallback int) int {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ApplyLogging overlays persisted logging overrides on cfg. Invalid stored
// values are ignored. The file path is never overridden.
func (s *Store) ApplyLogging(ctx context.Context, cfg logging.Config) logging.Config {
	if v := s.String(ctx, KeyLogLevel, ""); logging.ValidLevel(v) {
		cfg.Level = v
	}
	if v := s.String(ctx, KeyLogFormat, ""); logging.ValidFormat(v) {
		cfg.Format = v
	}
	if v := s.Int(ctx, KeyLogMaxSizeMB, 0); v > 0 {
		cfg.FileMaxSizeMB = v
	}
	if v := s.Int(ctx, KeyLogMaxFiles, 0); v > 0 {
		cfg.FileMaxFiles = v
	}
	if v := s.Int(ctx, KeyLogMaxAgeDays, 0); v > 0 {
		cfg.FileMaxAgeDays = v
	}
	return cfg
}

// SaveLogging persists the runtime-adjustable logging fields in one
// transaction.
func (s *Store) SaveLogging(ctx context.Context, cfg logging.Config) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	values := map[string]string{
		KeyLogLevel:      cfg.Level,
		KeyLogFormat:     cfg.Format,
		KeyLogMaxSizeMB:  strconv.Itoa(cfg.FileMaxSizeMB),
		KeyLogMaxFiles:   strconv.Itoa(cfg.FileMaxFiles),
		KeyLogMaxAgeDays: strconv.Itoa(cfg.FileMaxAgeDays),
	}
	for k, v := range values {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, k, v, now); err != nil {
			return fmt.Errorf("writing setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}
