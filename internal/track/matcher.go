package track

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sydlexius/trackmend/internal/normalize"
)

// Match looks up q in idx, trying ISRC, then the exact normalized
// artist/title key, then a partial scan of the candidate list. It returns nil
// when nothing matches. Match never modifies idx.
//
// The partial scan is first-fit in index insertion order: it returns the
// first plausible candidate, not the best one.
func Match(q Query, idx *Index) *MatchResult {
	if idx == nil {
		return nil
	}

	if isrc := NormalizeISRC(q.ISRC); isrc != "" {
		if id, ok := idx.byISRC[isrc]; ok {
			return &MatchResult{RecordID: id, Method: MatchMethodISRC, Confidence: ConfidenceISRC}
		}
	}

	key := normalize.TitleKey(q.Artist, q.Title)
	if key.Artist == "" || key.Title == "" {
		return nil
	}

	if id, ok := idx.byKey[key]; ok {
		return &MatchResult{RecordID: id, Method: MatchMethodExactNormalized, Confidence: ConfidenceExactNormalized}
	}

	if c := partialMatch(key, idx.candidates); c != nil {
		return &MatchResult{RecordID: c.ID, Method: MatchMethodPartialFuzzy, Confidence: ConfidencePartialFuzzy}
	}

	return nil
}

// partialMatch returns the first candidate whose artist contains the query's
// leading artist words and whose title equals or contains (or is contained
// by) the query title.
func partialMatch(key normalize.Key, candidates []Candidate) *Candidate {
	tokens := strings.Fields(key.Artist)
	if len(tokens) == 0 || utf8.RuneCountInString(tokens[0]) < minFuzzyArtistToken {
		return nil
	}
	if len(tokens) > 2 {
		tokens = tokens[:2]
	}
	prefix := strings.Join(tokens, " ")

	for i := range candidates {
		c := &candidates[i]
		if c.NormalizedTitle == "" || !strings.Contains(c.NormalizedArtist, prefix) {
			continue
		}
		if c.NormalizedTitle == key.Title ||
			strings.Contains(c.NormalizedTitle, key.Title) ||
			strings.Contains(key.Title, c.NormalizedTitle) {
			return c
		}
	}
	return nil
}

// Matcher applies Match against a fixed index and filters results below the
// configured confidence.
type Matcher struct {
	index  *Index
	config MatchConfig
	logger *slog.Logger
}

// NewMatcher creates a matcher over idx.
func NewMatcher(idx *Index, config MatchConfig, logger *slog.Logger) *Matcher {
	return &Matcher{
		index:  idx,
		config: config,
		logger: logger.With(slog.String("component", "matcher")),
	}
}

// Match returns the match for q, or nil if none meets the minimum confidence.
func (m *Matcher) Match(q Query) *MatchResult {
	result := Match(q, m.index)
	if result == nil {
		m.logger.Debug("no match", "artist", q.Artist, "title", q.Title)
		return nil
	}
	if result.Confidence < m.config.MinConfidence {
		m.logger.Debug("match below threshold",
			"artist", q.Artist, "title", q.Title,
			"method", string(result.Method), "confidence", result.Confidence)
		return nil
	}
	m.logger.Debug("matched",
		"artist", q.Artist, "title", q.Title,
		"record_id", result.RecordID, "method", string(result.Method))
	return result
}

// Index returns the index the matcher was built with.
func (m *Matcher) Index() *Index {
	return m.index
}
