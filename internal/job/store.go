package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Store persists job run history.
type Store struct {
	db *sql.DB
}

// NewStore creates a job history store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, snap Snapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, state, started_at)
		VALUES (?, ?, ?, ?)
	`, snap.ID, string(snap.Kind), string(snap.State), formatTime(snap.StartedAt))
	if err != nil {
		return fmt.Errorf("recording job start: %w", err)
	}
	return nil
}

// Finish records the outcome of a run.
func (s *Store) Finish(ctx context.Context, snap Snapshot) error {
	summary := ""
	if snap.Summary != nil {
		data, err := json.Marshal(snap.Summary)
		if err != nil {
			return fmt.Errorf("encoding job summary: %w", err)
		}
		summary = string(data)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, summary = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(snap.State), summary, snap.Error, formatTime(snap.FinishedAt), snap.ID)
	if err != nil {
		return fmt.Errorf("recording job outcome: %w", err)
	}
	return nil
}

// List returns up to limit runs of kind, newest first. The summary of each
// run is decoded as raw JSON.
func (s *Store) List(ctx context.Context, kind Kind, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, state, summary, error, started_at, finished_at
		FROM jobs WHERE kind = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var k, state, summary, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&snap.ID, &k, &state, &summary, &snap.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		snap.Kind = Kind(k)
		snap.State = State(state)
		if summary != "" {
			snap.Summary = json.RawMessage(summary)
		}
		snap.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			snap.FinishedAt = parseTime(finishedAt.String)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// MarkAbandoned flags runs left in the running state by a previous process
// as errored. It returns the number of rows changed.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, error = 'interrupted by shutdown', finished_at = ?
		WHERE state = ?
	`, string(StateError), now, string(StateRunning))
	if err != nil {
		return 0, fmt.Errorf("marking abandoned jobs: %w", err)
	}
	return result.RowsAffected()
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
