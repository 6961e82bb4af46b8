// Package wishlist stores requested recordings and tracks their lifecycle
// from pending through completed.
package wishlist

import (
	"fmt"
	"time"

	"github.com/sydlexius/trackmend/internal/track"
)

// Status is the lifecycle state of a wishlist item.
type Status string

// Status values. Completed is terminal.
const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusDownloading, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("invalid wishlist status %q", s)
	}
}

// Open reports whether the item is still waiting to be satisfied.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusDownloading
}

// Item is a recording someone asked for.
type Item struct {
	ID             string     `json:"id"`
	Artist         string     `json:"artist"`
	Title          string     `json:"title"`
	Album          string     `json:"album,omitempty"`
	ISRC           string     `json:"isrc,omitempty"`
	Status         Status     `json:"status"`
	Source         string     `json:"source,omitempty"`
	MatchedTrackID string     `json:"matched_track_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Query returns the match query seeded from the item.
func (i Item) Query() track.Query {
	return track.Query{
		Artist: i.Artist,
		Title:  i.Title,
		Album:  i.Album,
		ISRC:   i.ISRC,
	}
}

// Completion pairs a wishlist item with the library track that satisfied it.
type Completion struct {
	ItemID  string `json:"item_id"`
	TrackID string `json:"track_id"`
}
