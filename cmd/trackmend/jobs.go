package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sydlexius/trackmend/internal/job"
)

// runJob runs a job to completion. When the command is interrupted the job is
// cancelled and given a short grace period to record its outcome.
func runJob(ctx context.Context, a *app, kind job.Kind, run func(context.Context) (job.Snapshot, error)) (job.Snapshot, error) {
	snap, err := run(ctx)
	if errors.Is(err, job.ErrAlreadyRunning) {
		return snap, fmt.Errorf("%s is already running, possibly in the server: %w", kind, err)
	}
	if err != nil && ctx.Err() != nil {
		_ = a.engine.Jobs().Cancel(kind)
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		snap, _ = a.engine.Jobs().Wait(waitCtx, kind)
		return snap, context.Canceled
	}
	if err != nil {
		return snap, err
	}

	switch snap.State {
	case job.StateCancelled:
		return snap, context.Canceled
	case job.StateError:
		return snap, fmt.Errorf("%s failed: %s", kind, snap.Error)
	}
	return snap, nil
}
