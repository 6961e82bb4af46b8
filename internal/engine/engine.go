// Package engine wires the library store, matcher, duplicate planner, and
// wishlist reconciliation into the operations exposed by the CLI and API.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sydlexius/trackmend/internal/backup"
	"github.com/sydlexius/trackmend/internal/dedupe"
	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/job"
	"github.com/sydlexius/trackmend/internal/reconcile"
	"github.com/sydlexius/trackmend/internal/scanner"
	"github.com/sydlexius/trackmend/internal/track"
	"github.com/sydlexius/trackmend/internal/wishlist"
)

// Deps bundles the services an Engine drives.
type Deps struct {
	Tracks      *track.Service
	Wishlist    *wishlist.Service
	Jobs        *job.Registry
	Scanner     *scanner.Service
	Planner     *dedupe.Planner
	Backup      *backup.Service
	EventBus    *event.Bus
	MatchConfig track.MatchConfig
	Logger      *slog.Logger
}

// Engine runs trackmend operations.
type Engine struct {
	tracks     *track.Service
	wishlist   *wishlist.Service
	jobs       *job.Registry
	scanner    *scanner.Service
	planner    *dedupe.Planner
	backup     *backup.Service
	reconciler *reconcile.Driver
	bus        *event.Bus
	config     track.MatchConfig
	logger     *slog.Logger
}

// New creates an Engine.
func New(deps Deps) *Engine {
	reconciler := reconcile.NewDriver(deps.Tracks, deps.Wishlist, deps.MatchConfig, deps.Logger)
	reconciler.SetEventBus(deps.EventBus)
	return &Engine{
		tracks:     deps.Tracks,
		wishlist:   deps.Wishlist,
		jobs:       deps.Jobs,
		scanner:    deps.Scanner,
		planner:    deps.Planner,
		backup:     deps.Backup,
		reconciler: reconciler,
		bus:        deps.EventBus,
		config:     deps.MatchConfig,
		logger:     deps.Logger.With(slog.String("component", "engine")),
	}
}

// Tracks returns the library store.
func (e *Engine) Tracks() *track.Service { return e.tracks }

// Wishlist returns the wishlist store.
func (e *Engine) Wishlist() *wishlist.Service { return e.wishlist }

// Jobs returns the job registry.
func (e *Engine) Jobs() *job.Registry { return e.jobs }

// StartScan launches a library scan job.
func (e *Engine) StartScan(ctx context.Context) (string, error) {
	return e.jobs.Start(ctx, job.KindScan, e.scanJob)
}

// StartReconcile launches a wishlist reconciliation job.
func (e *Engine) StartReconcile(ctx context.Context) (string, error) {
	return e.jobs.Start(ctx, job.KindReconcile, e.reconcileJob)
}

// StartDedupe launches a job that removes every non-keeper duplicate.
func (e *Engine) StartDedupe(ctx context.Context) (string, error) {
	return e.jobs.Start(ctx, job.KindDedupe, e.dedupeJob)
}

// Scan runs a scan job and waits for it.
func (e *Engine) Scan(ctx context.Context) (job.Snapshot, error) {
	return e.jobs.Run(ctx, job.KindScan, e.scanJob)
}

// Reconcile runs a reconciliation job and waits for it.
func (e *Engine) Reconcile(ctx context.Context) (job.Snapshot, error) {
	return e.jobs.Run(ctx, job.KindReconcile, e.reconcileJob)
}

// Dedupe runs a removal job and waits for it.
func (e *Engine) Dedupe(ctx context.Context) (job.Snapshot, error) {
	return e.jobs.Run(ctx, job.KindDedupe, e.dedupeJob)
}

// Duplicates detects duplicate groups in the current library.
func (e *Engine) Duplicates(ctx context.Context) (*dedupe.Report, error) {
	records, err := e.tracks.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading library snapshot: %w", err)
	}
	return dedupe.FindDuplicates(records), nil
}

// PlanRemoval returns what a removal pass would do, without side effects.
func (e *Engine) PlanRemoval(ctx context.Context) (*dedupe.Report, *dedupe.Plan, error) {
	report, err := e.Duplicates(ctx)
	if err != nil {
		return nil, nil, err
	}
	return report, e.planner.DryRun(report.Groups), nil
}

// Match looks q up in a fresh index of the library. It returns nil when
// nothing matches at the configured confidence.
func (e *Engine) Match(ctx context.Context, q track.Query) (*track.MatchResult, *track.Record, error) {
	records, err := e.tracks.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading library snapshot: %w", err)
	}
	m := track.NewMatcher(track.BuildIndex(records), e.config, e.logger)
	result := m.Match(q)
	if result == nil {
		return nil, nil, nil
	}
	rec, err := e.tracks.GetByID(ctx, result.RecordID)
	if err != nil {
		return nil, nil, err
	}
	return result, rec, nil
}

func (e *Engine) scanJob(ctx context.Context) (any, error) {
	result, err := e.scanner.Run(ctx)
	if result == nil {
		return nil, err
	}
	return result, err
}

func (e *Engine) reconcileJob(ctx context.Context) (any, error) {
	result, err := e.reconciler.Run(ctx)
	if result == nil {
		return nil, err
	}
	return result, err
}

func (e *Engine) dedupeJob(ctx context.Context) (any, error) {
	report, err := e.Duplicates(ctx)
	if err != nil {
		return nil, err
	}
	if report.DuplicateCount > 0 {
		if err := e.snapshot(ctx, "dedupe"); err != nil {
			return nil, err
		}
	}
	plan, err := e.planner.Execute(ctx, report.Groups)
	if err != nil {
		return plan, err
	}
	e.bus.Publish(event.Event{
		Type: event.DedupeCompleted,
		Data: map[string]any{
			"groups":            len(report.Groups),
			"files_removed":     plan.FilesRemoved,
			"space_freed_bytes": plan.SpaceFreedBytes,
			"errors":            len(plan.Errors),
		},
	})
	return plan, nil
}

// snapshot backs up the database before a destructive job. A nil backup
// service disables snapshots.
func (e *Engine) snapshot(ctx context.Context, reason string) error {
	if e.backup == nil {
		return nil
	}
	if _, err := e.backup.Snapshot(ctx, reason); err != nil {
		return fmt.Errorf("pre-%s snapshot: %w", reason, err)
	}
	if n, err := e.backup.Prune(); err != nil {
		e.logger.Warn("pruning snapshots", slog.Any("error", err))
	} else if n > 0 {
		e.logger.Debug("pruned old snapshots", slog.Int("count", n))
	}
	return nil
}
