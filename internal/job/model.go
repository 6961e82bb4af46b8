// Package job runs the engine's mutating passes as single-flight background
// jobs and keeps their history.
package job

import (
	"errors"
	"fmt"
	"time"
)

// Kind names a family of jobs. At most one job of each kind runs at a time.
type Kind string

// Job kinds.
const (
	KindReconcile Kind = "reconcile"
	KindDedupe    Kind = "dedupe"
	KindScan      Kind = "scan"
)

// Kinds lists every job kind.
var Kinds = []Kind{KindReconcile, KindDedupe, KindScan}

// ParseKind validates a job kind string.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown job kind %q", s)
}

// State is the lifecycle state of a job kind.
type State string

// Job states. Complete, Cancelled, and Error are terminal for a run; the
// kind returns to Idle from the caller's point of view once a new run can
// start.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateComplete  State = "complete"
	StateCancelled State = "cancelled"
	StateError     State = "error"
)

// Sentinel errors returned by the Registry.
var (
	ErrAlreadyRunning = errors.New("job already running")
	ErrNotRunning     = errors.New("job not running")
)

// Snapshot is a point-in-time view of a job run.
type Snapshot struct {
	ID         string     `json:"id,omitempty"`
	Kind       Kind       `json:"kind"`
	State      State      `json:"state"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    any        `json:"summary,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Running reports whether the snapshot describes an in-flight run.
func (s Snapshot) Running() bool {
	return s.State == StateRunning
}
