// Package dedupe finds duplicate copies of the same recording inside the local
// library, ranks the copies by quality, and plans removal of all but the best.
package dedupe

import (
	"strings"

	"github.com/sydlexius/trackmend/internal/normalize"
	"github.com/sydlexius/trackmend/internal/track"
)

// GroupKey identifies a duplicate group by normalized artist, album, and title.
type GroupKey struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Title  string `json:"title"`
}

// KeyFor returns the grouping key of a record.
func KeyFor(r track.Record) GroupKey {
	return GroupKey{
		Artist: normalize.Normalize(r.Artist),
		Album:  normalize.Normalize(r.Album),
		Title:  normalize.Normalize(r.Title),
	}
}

// Group is a set of two or more library records for the same recording,
// ordered best first. Members[0] is the keeper.
type Group struct {
	Key     GroupKey       `json:"key"`
	Members []track.Record `json:"members"`
}

// Keeper returns the member that is retained.
func (g Group) Keeper() track.Record {
	return g.Members[0]
}

// Removable returns every member except the keeper.
func (g Group) Removable() []track.Record {
	return g.Members[1:]
}

// Report is the result of one duplicate detection pass.
type Report struct {
	Groups         []Group        `json:"groups"`
	DuplicateCount int            `json:"duplicate_count"`
	WastedBytes    int64          `json:"wasted_bytes"`
	FormatCounts   map[string]int `json:"format_counts"`
}

// FindDuplicates partitions records by exact GroupKey equality. Groups with a
// single member are dropped. Groups appear in the order their key first
// occurs in records, and each group's members are ranked by quality.
func FindDuplicates(records []track.Record) *Report {
	buckets := make(map[GroupKey][]track.Record)
	var order []GroupKey
	for _, r := range records {
		key := KeyFor(r)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], r)
	}

	report := &Report{
		Groups:       []Group{},
		FormatCounts: make(map[string]int),
	}
	for _, key := range order {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		g := Group{Key: key, Members: Rank(members)}
		report.Groups = append(report.Groups, g)
		report.DuplicateCount += len(g.Members) - 1
		for _, m := range g.Removable() {
			report.WastedBytes += m.FileSize
		}
		for _, m := range g.Members {
			report.FormatCounts[strings.ToUpper(m.Format)]++
		}
	}
	return report
}
