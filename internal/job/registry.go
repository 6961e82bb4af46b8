package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/sydlexius/trackmend/internal/event"
)

// Func is the body of a job. It returns a JSON-encodable summary of the work
// done. Implementations observe ctx between top-level iterations.
type Func func(ctx context.Context) (any, error)

type run struct {
	snap   Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	lock   *flock.Flock
}

// Registry tracks one in-flight run per job kind. When a lock directory is
// configured, each kind also holds a file lock for the duration of the run so
// separate processes sharing the directory cannot overlap.
type Registry struct {
	logger  *slog.Logger
	lockDir string
	store   *Store
	bus     *event.Bus

	mu      sync.Mutex
	running map[Kind]*run
	last    map[Kind]Snapshot
}

// NewRegistry creates a Registry. An empty lockDir disables cross-process
// locking.
func NewRegistry(logger *slog.Logger, lockDir string) *Registry {
	return &Registry{
		logger:  logger.With(slog.String("component", "job-registry")),
		lockDir: lockDir,
		running: make(map[Kind]*run),
		last:    make(map[Kind]Snapshot),
	}
}

// SetStore enables persistent job history.
func (r *Registry) SetStore(s *Store) {
	r.store = s
}

// SetEventBus sets the bus used to announce failed jobs.
func (r *Registry) SetEventBus(bus *event.Bus) {
	r.bus = bus
}

// Start launches fn as the run for kind and returns the run ID. The run is
// detached from ctx's cancellation but keeps its values; use Cancel to stop
// it. ErrAlreadyRunning is returned if a run of kind is in flight in this
// process or holds the kind's lock file in another.
func (r *Registry) Start(ctx context.Context, kind Kind, fn Func) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.running[kind]; ok {
		return "", fmt.Errorf("%s %s: %w", kind, cur.snap.ID, ErrAlreadyRunning)
	}

	lock, err := r.acquire(kind)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cur := &run{
		snap: Snapshot{
			ID:        uuid.New().String(),
			Kind:      kind,
			State:     StateRunning,
			StartedAt: &now,
		},
		cancel: cancel,
		done:   make(chan struct{}),
		lock:   lock,
	}
	r.running[kind] = cur

	if r.store != nil {
		if err := r.store.Begin(jobCtx, cur.snap); err != nil {
			r.logger.Warn("recording job start", "kind", kind, "job_id", cur.snap.ID, "error", err)
		}
	}
	r.logger.Info("job started", "kind", kind, "job_id", cur.snap.ID)

	go r.execute(jobCtx, cur, fn)
	return cur.snap.ID, nil
}

// Cancel asks the in-flight run of kind to stop.
func (r *Registry) Cancel(kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.running[kind]
	if !ok {
		return fmt.Errorf("%s: %w", kind, ErrNotRunning)
	}
	cur.cancel()
	return nil
}

// Status returns the in-flight run of kind, else its most recent finished
// run, else an idle snapshot.
func (r *Registry) Status(kind Kind) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.running[kind]; ok {
		return cur.snap
	}
	if snap, ok := r.last[kind]; ok {
		return snap
	}
	return Snapshot{Kind: kind, State: StateIdle}
}

// Wait blocks until the in-flight run of kind finishes or ctx ends, then
// returns the kind's status.
func (r *Registry) Wait(ctx context.Context, kind Kind) (Snapshot, error) {
	r.mu.Lock()
	cur, ok := r.running[kind]
	r.mu.Unlock()

	if ok {
		select {
		case <-cur.done:
		case <-ctx.Done():
			return r.Status(kind), ctx.Err()
		}
	}
	return r.Status(kind), nil
}

// Run starts fn for kind and waits for it to finish.
func (r *Registry) Run(ctx context.Context, kind Kind, fn Func) (Snapshot, error) {
	if _, err := r.Start(ctx, kind, fn); err != nil {
		return Snapshot{Kind: kind, State: StateIdle}, err
	}
	return r.Wait(ctx, kind)
}

// History returns recent persisted runs of kind, newest first.
func (r *Registry) History(ctx context.Context, kind Kind, limit int) ([]Snapshot, error) {
	if r.store == nil {
		return nil, nil
	}
	return r.store.List(ctx, kind, limit)
}

// Shutdown cancels every in-flight run and waits for them to finish or for
// ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	pending := make([]*run, 0, len(r.running))
	for _, cur := range r.running {
		cur.cancel()
		pending = append(pending, cur)
	}
	r.mu.Unlock()

	for _, cur := range pending {
		select {
		case <-cur.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *Registry) acquire(kind Kind) (*flock.Flock, error) {
	if r.lockDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(r.lockDir, 0o755); err != nil { //nolint:gosec // G301: lock directory is not secret
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(r.lockDir, string(kind)+".lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s lock: %w", kind, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s held by another process: %w", kind, ErrAlreadyRunning)
	}
	return lock, nil
}

func (r *Registry) execute(ctx context.Context, cur *run, fn Func) {
	summary, err := r.invoke(ctx, fn)

	finished := time.Now().UTC()
	snap := cur.snap
	snap.FinishedAt = &finished
	snap.Summary = summary
	switch {
	case err == nil:
		snap.State = StateComplete
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		snap.State = StateCancelled
	default:
		snap.State = StateError
		snap.Error = err.Error()
	}

	if cur.lock != nil {
		if uerr := cur.lock.Unlock(); uerr != nil {
			r.logger.Warn("releasing job lock", "kind", snap.Kind, "error", uerr)
		}
	}
	if r.store != nil {
		if serr := r.store.Finish(context.WithoutCancel(ctx), snap); serr != nil {
			r.logger.Warn("recording job outcome", "kind", snap.Kind, "job_id", snap.ID, "error", serr)
		}
	}

	switch snap.State {
	case StateError:
		r.logger.Error("job failed", "kind", snap.Kind, "job_id", snap.ID, "error", snap.Error)
		r.bus.Publish(event.Event{
			Type: event.JobFailed,
			Data: map[string]any{"kind": string(snap.Kind), "job_id": snap.ID, "error": snap.Error},
		})
	default:
		r.logger.Info("job finished", "kind", snap.Kind, "job_id", snap.ID, "state", snap.State,
			"duration", finished.Sub(*snap.StartedAt).String())
	}

	r.mu.Lock()
	delete(r.running, snap.Kind)
	r.last[snap.Kind] = snap
	r.mu.Unlock()
	cur.cancel()
	close(cur.done)
}

func (r *Registry) invoke(ctx context.Context, fn Func) (summary any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx)
}
