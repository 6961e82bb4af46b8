package track

import "github.com/sydlexius/trackmend/internal/normalize"

// Candidate is a library record prepared for the fallback scan.
type Candidate struct {
	ID               string
	Artist           string
	Title            string
	NormalizedArtist string
	NormalizedTitle  string
}

// Index is a read-only lookup structure over a library snapshot. It is safe
// for concurrent use once built and is never modified after BuildIndex.
type Index struct {
	byISRC     map[string]string
	byKey      map[normalize.Key]string
	candidates []Candidate
}

// BuildIndex builds an Index from records in a single pass. Records without a
// valid ISRC are left out of the ISRC map. When two records share a key the
// later one wins; such collisions are true duplicates and are handled by
// duplicate detection, not matching.
func BuildIndex(records []Record) *Index {
	idx := &Index{
		byISRC:     make(map[string]string, len(records)),
		byKey:      make(map[normalize.Key]string, len(records)),
		candidates: make([]Candidate, 0, len(records)),
	}
	for _, r := range records {
		if isrc := NormalizeISRC(r.ISRC); isrc != "" {
			idx.byISRC[isrc] = r.ID
		}
		key := normalize.TitleKey(r.Artist, r.Title)
		idx.byKey[key] = r.ID
		idx.candidates = append(idx.candidates, Candidate{
			ID:               r.ID,
			Artist:           r.Artist,
			Title:            r.Title,
			NormalizedArtist: key.Artist,
			NormalizedTitle:  key.Title,
		})
	}
	return idx
}

// Len returns the number of records indexed.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.candidates)
}

// LookupISRC returns the record id for an ISRC, if indexed.
func (idx *Index) LookupISRC(isrc string) (string, bool) {
	id, ok := idx.byISRC[NormalizeISRC(isrc)]
	return id, ok
}

// LookupKey returns the record id for a normalized key, if indexed.
func (idx *Index) LookupKey(key normalize.Key) (string, bool) {
	id, ok := idx.byKey[key]
	return id, ok
}
