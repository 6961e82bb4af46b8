// Package watcher rescans the music library when audio files change on disk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sydlexius/trackmend/internal/job"
)

// Options configures a watcher.
type Options struct {
	Root         string
	Debounce     time.Duration
	PollInterval time.Duration
	// Accept filters which file paths count as library changes.
	Accept func(path string) bool
}

// Service watches the library tree and triggers a scan once changes settle.
// When fsnotify does not work for the root, it falls back to rescanning on a
// fixed interval.
type Service struct {
	trigger      func(ctx context.Context) error
	root         string
	accept       func(string) bool
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	probe        func(path string) bool
}

// NewService creates a watcher that calls trigger to start a scan.
func NewService(trigger func(ctx context.Context) error, logger *slog.Logger, opts Options) *Service {
	s := &Service{
		trigger:      trigger,
		root:         filepath.Clean(opts.Root),
		accept:       opts.Accept,
		logger:       logger.With(slog.String("component", "fs-watcher")),
		debounce:     opts.Debounce,
		pollInterval: opts.PollInterval,
		probe:        func(path string) bool { return ProbeFSNotify(path, 2*time.Second) },
	}
	if s.debounce <= 0 {
		s.debounce = 2 * time.Second
	}
	if s.accept == nil {
		s.accept = func(string) bool { return true }
	}
	return s
}

// Start blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) {
	var w *fsnotify.Watcher
	if s.probe(s.root) {
		var err error
		w, err = fsnotify.NewWatcher()
		if err != nil {
			s.logger.Warn("fsnotify unavailable, falling back to polling", "error", err)
			w = nil
		}
	} else {
		s.logger.Warn("fsnotify probe failed, falling back to polling", "path", s.root)
	}

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		defer w.Close() //nolint:errcheck
		n := s.addTree(w, s.root)
		s.logger.Info("watching library", "path", s.root, "directories", n)
		eventCh = w.Events
		errCh = w.Errors
	}

	var pollCh <-chan time.Time
	if w == nil && s.pollInterval > 0 {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		pollCh = ticker.C
		s.logger.Info("polling library", "path", s.root, "interval", s.pollInterval.String())
	}

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}
	defer debounceTimer.Stop()
	scanPending := false

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			if s.handle(w, ev) {
				resetTimer(debounceTimer, s.debounce)
				scanPending = true
			}

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			if scanPending {
				scanPending = false
				s.logger.Info("library changed, triggering scan")
				s.fire(ctx)
			}

		case <-pollCh:
			s.fire(ctx)
		}
	}
}

func (s *Service) fire(ctx context.Context) {
	err := s.trigger(ctx)
	switch {
	case err == nil:
	case errors.Is(err, job.ErrAlreadyRunning):
		s.logger.Info("scan already running, skipping trigger")
	default:
		s.logger.Error("scan triggered by watcher failed", "error", err)
	}
}

// handle reacts to one fsnotify event and reports whether it changes the
// library.
func (s *Service) handle(w *fsnotify.Watcher, ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			s.addTree(w, ev.Name)
			return true
		}
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		// A removed directory has no extension; treat it as a change.
		if filepath.Ext(ev.Name) == "" {
			return true
		}
	}
	return s.accept(ev.Name)
}

// addTree watches dir and every non-hidden directory below it. It returns the
// number of directories added.
func (s *Service) addTree(w *fsnotify.Watcher, dir string) int {
	added := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			s.logger.Warn("watching directory", "path", path, "error", err)
			return nil
		}
		added++
		return nil
	})
	return added
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
