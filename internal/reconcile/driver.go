// Package reconcile completes wishlist items that the local library already
// satisfies.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sydlexius/trackmend/internal/event"
	"github.com/sydlexius/trackmend/internal/track"
	"github.com/sydlexius/trackmend/internal/wishlist"
)

// Library supplies a consistent snapshot of library records.
type Library interface {
	Snapshot(ctx context.Context) ([]track.Record, error)
}

// Wishlist supplies open items and records their completion.
type Wishlist interface {
	Pending(ctx context.Context) ([]wishlist.Item, error)
	MarkCompleted(ctx context.Context, completions []wishlist.Completion) (int, error)
}

// ItemMatch is one wishlist item satisfied by a library record.
type ItemMatch struct {
	ItemID string            `json:"item_id"`
	Artist string            `json:"artist"`
	Title  string            `json:"title"`
	Match  track.MatchResult `json:"match"`
}

// Result summarizes one reconciliation pass.
type Result struct {
	Checked      int           `json:"checked"`
	Matched      int           `json:"matched"`
	Unmatched    int           `json:"unmatched"`
	Skipped      int           `json:"skipped"`
	Completed    int           `json:"completed"`
	CompletedIDs []string      `json:"completed_ids"`
	Matches      []ItemMatch   `json:"matches"`
	Duration     time.Duration `json:"duration"`
}

// Driver runs reconciliation passes.
type Driver struct {
	library  Library
	wishlist Wishlist
	config   track.MatchConfig
	bus      *event.Bus
	logger   *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(library Library, wl Wishlist, config track.MatchConfig, logger *slog.Logger) *Driver {
	return &Driver{
		library:  library,
		wishlist: wl,
		config:   config,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// SetEventBus sets the bus that receives completion events.
func (d *Driver) SetEventBus(bus *event.Bus) {
	d.bus = bus
}

// Run matches every open wishlist item against a fresh index of the library
// and completes the matched items in one batch. Unmatched items are left
// alone and retried on the next pass. When ctx is cancelled between items,
// nothing is written and the partial result is returned with ctx's error.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	records, err := d.library.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading library snapshot: %w", err)
	}
	matcher := track.NewMatcher(track.BuildIndex(records), d.config, d.logger)

	items, err := d.wishlist.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading pending wishlist items: %w", err)
	}

	result := &Result{
		CompletedIDs: []string{},
		Matches:      []ItemMatch{},
	}
	var completions []wishlist.Completion
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			d.logger.Info("reconciliation canceled", "checked", result.Checked)
			result.Duration = time.Since(start)
			return result, err
		}
		result.Checked++

		// Items missing a seed artist or title are never matched, even by ISRC.
		if strings.TrimSpace(item.Artist) == "" || strings.TrimSpace(item.Title) == "" {
			result.Skipped++
			continue
		}

		m := matcher.Match(item.Query())
		if m == nil {
			result.Unmatched++
			continue
		}
		result.Matched++
		result.Matches = append(result.Matches, ItemMatch{
			ItemID: item.ID,
			Artist: item.Artist,
			Title:  item.Title,
			Match:  *m,
		})
		completions = append(completions, wishlist.Completion{ItemID: item.ID, TrackID: m.RecordID})
		result.CompletedIDs = append(result.CompletedIDs, item.ID)
	}

	if len(completions) > 0 {
		n, err := d.wishlist.MarkCompleted(ctx, completions)
		if err != nil {
			return result, fmt.Errorf("completing wishlist items: %w", err)
		}
		result.Completed = n
	}
	result.Duration = time.Since(start)

	d.logger.Info("reconciliation complete",
		"library", matcher.Index().Len(),
		"checked", result.Checked,
		"matched", result.Matched,
		"unmatched", result.Unmatched,
		"skipped", result.Skipped,
		"duration", result.Duration.String())

	for _, m := range result.Matches {
		d.bus.Publish(event.Event{
			Type: event.WishlistCompleted,
			Data: map[string]any{
				"item_id":  m.ItemID,
				"artist":   m.Artist,
				"title":    m.Title,
				"track_id": m.Match.RecordID,
				"method":   string(m.Match.Method),
			},
		})
	}
	d.bus.Publish(event.Event{
		Type: event.ReconcileCompleted,
		Data: map[string]any{
			"checked":   result.Checked,
			"matched":   result.Matched,
			"unmatched": result.Unmatched,
			"skipped":   result.Skipped,
		},
	})
	return result, nil
}
