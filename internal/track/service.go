package track

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const trackColumns = `id, artist, title, album, format, file_size, bitrate, isrc, file_path, created_at, updated_at`

// Service provides library track data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a track service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Create inserts a new track record.
func (s *Service) Create(ctx context.Context, r *Record) error {
	if r.FilePath == "" {
		return fmt.Errorf("track file path is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.ISRC = NormalizeISRC(r.ISRC)
	r.Format = strings.ToUpper(r.Format)
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracks (`+trackColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, r.Artist, r.Title, r.Album, r.Format, r.FileSize, r.BitrateKbps, r.ISRC, r.FilePath,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating track: %w", err)
	}
	return nil
}

// Update modifies an existing track record.
func (s *Service) Update(ctx context.Context, r *Record) error {
	r.ISRC = NormalizeISRC(r.ISRC)
	r.Format = strings.ToUpper(r.Format)
	r.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE tracks SET artist = ?, title = ?, album = ?, format = ?, file_size = ?,
			bitrate = ?, isrc = ?, file_path = ?, updated_at = ?
		WHERE id = ?
	`,
		r.Artist, r.Title, r.Album, r.Format, r.FileSize,
		r.BitrateKbps, r.ISRC, r.FilePath, r.UpdatedAt.Format(time.RFC3339),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("updating track: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("track not found: %s", r.ID)
	}
	return nil
}

// Upsert creates the record, or updates the existing record at the same file
// path. It reports whether a new record was created.
func (s *Service) Upsert(ctx context.Context, r *Record) (bool, error) {
	existing, err := s.GetByPath(ctx, r.FilePath)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return true, s.Create(ctx, r)
	}
	r.ID = existing.ID
	r.CreatedAt = existing.CreatedAt
	return false, s.Update(ctx, r)
}

// GetByID retrieves a track by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("track not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting track by id: %w", err)
	}
	return r, nil
}

// GetByPath retrieves a track by file path.
// Returns nil, nil when no track matches the path.
func (s *Service) GetByPath(ctx context.Context, path string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE file_path = ?`, path)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting track by path: %w", err)
	}
	return r, nil
}

// List returns a page of tracks ordered by artist, album, title.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY artist, album, title, rowid LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	return collect(rows)
}

// Snapshot returns every track in insertion order. The index and duplicate
// detection are built from this snapshot.
func (s *Service) Snapshot(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("snapshotting tracks: %w", err)
	}
	return collect(rows)
}

// Count returns the number of tracks in the library.
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting tracks: %w", err)
	}
	return n, nil
}

// Delete removes a track by ID.
func (s *Service) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting track: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("track not found: %s", id)
	}
	return nil
}

// DeleteMissing removes every track under root whose file path is not in
// keep. It returns the number of rows removed.
func (s *Service) DeleteMissing(ctx context.Context, root string, keep map[string]bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_path FROM tracks`)
	if err != nil {
		return 0, fmt.Errorf("listing track paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			rows.Close() //nolint:errcheck,gosec
			return 0, fmt.Errorf("scanning track path: %w", err)
		}
		if strings.HasPrefix(path, root) && !keep[path] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
			return 0, fmt.Errorf("deleting stale track: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing stale delete: %w", err)
	}
	return len(stale), nil
}

func collect(rows *sql.Rows) ([]Record, error) {
	defer rows.Close() //nolint:errcheck

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// scanRecord scans a database row into a Record.
func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var r Record
	var createdAt, updatedAt string

	err := row.Scan(
		&r.ID, &r.Artist, &r.Title, &r.Album, &r.Format,
		&r.FileSize, &r.BitrateKbps, &r.ISRC, &r.FilePath,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
