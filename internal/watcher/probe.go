package watcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// ProbeFSNotify reports whether fsnotify sees changes under path. It drops a
// hidden marker file into path and waits up to timeout for its Create event.
// NFS and SMB mounts usually fail, and the watcher then polls instead.
func ProbeFSNotify(path string, timeout time.Duration) bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(path); err != nil {
		return false
	}

	marker := filepath.Join(path, ".trackmend-probe-"+uuid.NewString())
	if err := os.WriteFile(marker, nil, 0o600); err != nil {
		return false
	}
	defer os.Remove(marker) //nolint:errcheck

	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return false
			}
			if ev.Name == marker && ev.Has(fsnotify.Create) {
				return true
			}
		case <-w.Errors:
			return false
		case <-deadline:
			return false
		}
	}
}
