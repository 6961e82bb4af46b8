package track

import (
	"testing"

	"github.com/sydlexius/trackmend/internal/normalize"
)

func TestBuildIndex(t *testing.T) {
	records := []Record{
		{ID: "1", Artist: "Daft Punk", Title: "One More Time", ISRC: "gbduw0000059"},
		{ID: "2", Artist: "Air", Title: "Sexy Boy"},
		{ID: "3", Artist: "DAFT PUNK", Title: "one more time (Remastered)"},
	}
	idx := BuildIndex(records)

	if idx.Len() != 3 {
		t.Fatalf("Len = %d, want 3", idx.Len())
	}

	id, ok := idx.LookupISRC("GBDUW0000059")
	if !ok || id != "1" {
		t.Errorf("LookupISRC = %q, %v; want 1, true", id, ok)
	}
	if _, ok := idx.LookupISRC(""); ok {
		t.Error("empty ISRC should never be found")
	}

	// Later record wins on key collision.
	id, ok = idx.LookupKey(normalize.Key{Artist: "daft punk", Title: "one more time"})
	if !ok || id != "3" {
		t.Errorf("LookupKey = %q, %v; want 3, true", id, ok)
	}

	// Candidates keep insertion order.
	for i, want := range []string{"1", "2", "3"} {
		if idx.candidates[i].ID != want {
			t.Errorf("candidates[%d].ID = %q, want %q", i, idx.candidates[i].ID, want)
		}
	}
	if idx.candidates[1].NormalizedArtist != "air" || idx.candidates[1].NormalizedTitle != "sexy boy" {
		t.Errorf("candidate normalization = %+v", idx.candidates[1])
	}
}

func TestBuildIndex_SeparatorInTitle(t *testing.T) {
	// A title containing a separator-like token must not collide with a
	// different artist/title split.
	idx := BuildIndex([]Record{
		{ID: "1", Artist: "a", Title: "b c"},
		{ID: "2", Artist: "a b", Title: "c"},
	})
	id1, _ := idx.LookupKey(normalize.Key{Artist: "a", Title: "b c"})
	id2, _ := idx.LookupKey(normalize.Key{Artist: "a b", Title: "c"})
	if id1 != "1" || id2 != "2" {
		t.Errorf("keys collided: %q %q", id1, id2)
	}
}

func TestNormalizeISRC(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"USUM70901234", "USUM70901234"},
		{" usum70901234 ", "USUM70901234"},
		{"US-UM7-09-01234", "USUM70901234"},
		{"", ""},
		{"USUM7090123", ""},
		{"USUM709012345", ""},
		{"USUM7090123!", ""},
	}
	for _, tt := range tests {
		if got := NormalizeISRC(tt.in); got != tt.want {
			t.Errorf("NormalizeISRC(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
