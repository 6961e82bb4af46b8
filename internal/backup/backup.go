// Package backup snapshots the trackmend database with VACUUM INTO so that
// records removed by a dedupe pass can be recovered.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const timeLayout = "20060102-150405.000"

// snapshotPattern matches trackmend-YYYYMMDD-HHMMSS.mmm-<reason>.db.
var snapshotPattern = regexp.MustCompile(`^trackmend-(\d{8}-\d{6}\.\d{3})-([a-z]+)\.db$`)

var reasonPattern = regexp.MustCompile(`^[a-z]+$`)

// Info describes a snapshot file.
type Info struct {
	Filename  string    `json:"filename"`
	Reason    string    `json:"reason"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes and prunes database snapshots in one directory.
type Service struct {
	db        *sql.DB
	dir       string
	retention int
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a snapshot service keeping at most retention files.
// A retention below 1 keeps every snapshot.
func NewService(db *sql.DB, dir string, retention int, logger *slog.Logger) *Service {
	return &Service{
		db:        db,
		dir:       dir,
		retention: retention,
		logger:    logger.With(slog.String("component", "backup")),
		now:       time.Now,
	}
}

// Dir returns the snapshot directory.
func (s *Service) Dir() string {
	return s.dir
}

// Snapshot writes a consistent copy of the database tagged with reason, a
// lowercase word such as "dedupe" or "manual".
func (s *Service) Snapshot(ctx context.Context, reason string) (*Info, error) {
	if !reasonPattern.MatchString(reason) {
		return nil, fmt.Errorf("invalid snapshot reason %q", reason)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := s.now().UTC()
	filename := fmt.Sprintf("trackmend-%s-%s.db", now.Format(timeLayout), reason)
	dest := filepath.Join(s.dir, filename)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	s.logger.Info("database snapshot written",
		slog.String("filename", filename),
		slog.String("reason", reason),
		slog.Int64("size", info.Size()))

	return &Info{Filename: filename, Reason: reason, Size: info.Size(), CreatedAt: now}, nil
}

// List returns snapshots newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var out []Info
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := snapshotPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		ts, err := time.Parse(timeLayout, m[1])
		if err != nil {
			ts = fi.ModTime()
		}
		out = append(out, Info{Filename: entry.Name(), Reason: m[2], Size: fi.Size(), CreatedAt: ts})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Prune removes the oldest snapshots beyond the retention count and returns
// how many were removed.
func (s *Service) Prune() (int, error) {
	if s.retention < 1 {
		return 0, nil
	}
	snaps, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= s.retention {
		return 0, nil
	}

	removed := 0
	for _, b := range snaps[s.retention:] {
		if err := os.Remove(filepath.Join(s.dir, b.Filename)); err != nil {
			s.logger.Warn("failed to remove old snapshot",
				slog.String("filename", b.Filename),
				slog.Any("error", err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("pruned old snapshots", slog.Int("count", removed))
	}
	return removed, nil
}

// IsValidFilename reports whether name looks like a snapshot and carries no
// path components.
func IsValidFilename(name string) bool {
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return snapshotPattern.MatchString(name)
}
