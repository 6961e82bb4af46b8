// Package scanner walks the music library and keeps the track store in sync
// with the audio files on disk.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/track"
)

// Store is the subset of the track store the scanner writes to.
type Store interface {
	Upsert(ctx context.Context, r *track.Record) (bool, error)
	DeleteMissing(ctx context.Context, root string, keep map[string]bool) (int, error)
}

// Options configures a scanner.
type Options struct {
	LibraryPath string
	Workers     int
	Extensions  []string
}

// Service runs filesystem scans against the music library.
type Service struct {
	store       Store
	logger      *slog.Logger
	libraryPath string
	workers     int
	extensions  map[string]bool
	eventBus    *event.Bus
	walkDir     func(root string, fn fs.WalkDirFunc) error
}

// NewService creates a scanner service.
func NewService(store Store, logger *slog.Logger, opts Options) *Service {
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	extMap := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		extMap[e] = true
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		store:       store,
		logger:      logger.With(slog.String("component", "scanner")),
		libraryPath: filepath.Clean(opts.LibraryPath),
		workers:     workers,
		extensions:  extMap,
		walkDir:     filepath.WalkDir,
	}
}

// SetEventBus sets the event bus for publishing scan events.
func (s *Service) SetEventBus(bus *event.Bus) {
	s.eventBus = bus
}

// LibraryPath returns the scanned root directory.
func (s *Service) LibraryPath() string {
	return s.libraryPath
}

// Accepts reports whether path has a scanned audio extension.
func (s *Service) Accepts(path string) bool {
	return s.extensions[strings.ToLower(filepath.Ext(path))]
}

// Run scans the library once. Files are read by a bounded pool of workers;
// a file that cannot be read is counted as failed and the scan continues.
// Records whose files were not found are removed only when the whole tree
// was walked without errors or cancellation. The result is nil when the
// library root itself cannot be walked.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	paths, partial, err := s.walk(ctx)
	if err != nil {
		return nil, err
	}
	result.Files = len(paths)
	result.Partial = partial

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, fallback, err := ReadRecord(s.libraryPath, path)
			if err != nil {
				s.logger.Warn("reading audio file", "path", path, "error", err)
				mu.Lock()
				result.Failed++
				mu.Unlock()
				return nil
			}
			created, err := s.store.Upsert(gctx, rec)
			mu.Lock()
			defer mu.Unlock()
			if fallback {
				result.TagFallback++
			}
			switch {
			case err != nil:
				s.logger.Warn("storing track", "path", path, "error", err)
				result.Failed++
			case created:
				result.Added++
			default:
				result.Updated++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	if partial {
		s.logger.Warn("library walk incomplete, keeping records for unseen files")
	} else {
		keep := make(map[string]bool, len(paths))
		for _, p := range paths {
			keep[p] = true
		}
		removed, err := s.store.DeleteMissing(ctx, s.libraryPath+string(filepath.Separator), keep)
		if err != nil {
			return result, fmt.Errorf("removing vanished tracks: %w", err)
		}
		result.Removed = removed
	}
	result.Duration = time.Since(start)

	s.logger.Info("scan complete",
		"files", result.Files,
		"added", result.Added,
		"updated", result.Updated,
		"removed", result.Removed,
		"failed", result.Failed,
		"partial", result.Partial,
		"duration", result.Duration.String())

	if s.eventBus != nil {
		s.eventBus.Publish(event.Event{
			Type: event.ScanCompleted,
			Data: map[string]any{
				"files":   result.Files,
				"added":   result.Added,
				"updated": result.Updated,
				"removed": result.Removed,
				"failed":  result.Failed,
				"partial": result.Partial,
			},
		})
	}
	return result, nil
}

// walk lists the accepted audio files under the library root. Errors below
// the root are logged and skipped; partial reports whether any occurred.
func (s *Service) walk(ctx context.Context) (paths []string, partial bool, err error) {
	err = s.walkDir(s.libraryPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.libraryPath {
				return err
			}
			s.logger.Warn("walking library", "path", path, "error", err)
			partial = true
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.libraryPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && s.Accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("walking library %s: %w", s.libraryPath, err)
	}
	return paths, partial, nil
}
