package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/trackmend/internal/track"
)

// ErrCompleted is returned when a status change would leave the completed state.
var ErrCompleted = errors.New("wishlist item already completed")

const itemColumns = `id, artist, title, album, isrc, status, source, matched_track_id, created_at, updated_at, completed_at`

// Service provides wishlist data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a wishlist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new pending item.
func (s *Service) Create(ctx context.Context, item *Item) error {
	if strings.TrimSpace(item.Title) == "" && track.NormalizeISRC(item.ISRC) == "" {
		return fmt.Errorf("wishlist item needs a title or an ISRC")
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.Status == "" {
		item.Status = StatusPending
	}
	if !item.Status.Open() {
		return fmt.Errorf("new wishlist item must be pending or downloading, got %q", item.Status)
	}
	item.ISRC = track.NormalizeISRC(item.ISRC)
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wishlist_items (`+itemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, NULL)
	`,
		item.ID, item.Artist, item.Title, item.Album, item.ISRC, string(item.Status), item.Source,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating wishlist item: %w", err)
	}
	return nil
}

// Get returns an item by ID, or nil if it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM wishlist_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting wishlist item: %w", err)
	}
	return item, nil
}

// List returns items in creation order. With no statuses every item is
// returned.
func (s *Service) List(ctx context.Context, statuses ...Status) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM wishlist_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist items: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning wishlist item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Pending returns every item still waiting to be satisfied.
func (s *Service) Pending(ctx context.Context) ([]Item, error) {
	return s.List(ctx, StatusPending, StatusDownloading)
}

// SetStatus moves an open item to another open state. Completion goes
// through MarkCompleted; a completed item never changes state again.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	if !status.Open() {
		return fmt.Errorf("use MarkCompleted to complete wishlist items")
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE wishlist_items SET status = ?, updated_at = ?
		WHERE id = ? AND status != 'completed'
	`, string(status), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating wishlist status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("wishlist item not found: %s", id)
		}
		return ErrCompleted
	}
	return nil
}

// MarkCompleted completes every listed item in a single transaction and
// returns the number of items that changed. Items that are already
// completed or do not exist are skipped.
func (s *Service) MarkCompleted(ctx context.Context, completions []Completion) (int, error) {
	if len(completions) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE wishlist_items
		SET status = 'completed', matched_track_id = ?, updated_at = ?, completed_at = ?
		WHERE id = ? AND status != 'completed'
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing completion: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339)
	changed := 0
	for _, c := range completions {
		var trackID any
		if c.TrackID != "" {
			trackID = c.TrackID
		}
		result, err := stmt.ExecContext(ctx, trackID, now, now, c.ItemID)
		if err != nil {
			return 0, fmt.Errorf("completing wishlist item %s: %w", c.ItemID, err)
		}
		n, _ := result.RowsAffected()
		changed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing completions: %w", err)
	}
	return changed, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM wishlist_items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting wishlist item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("wishlist item not found: %s", id)
	}
	return nil
}

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var status, createdAt, updatedAt string
	var matched, completedAt sql.NullString
	err := row.Scan(&item.ID, &item.Artist, &item.Title, &item.Album, &item.ISRC, &status, &item.Source,
		&matched, &createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	item.Status = Status(status)
	item.MatchedTrackID = matched.String
	item.CreatedAt = parseTime(createdAt)
	item.UpdatedAt = parseTime(updatedAt)
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		item.CompletedAt = &t
	}
	return &item, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
