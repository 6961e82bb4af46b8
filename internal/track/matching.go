package track

// MatchMethod describes which strategy produced a match.
type MatchMethod string

// Match methods, in priority order.
const (
	MatchMethodISRC            MatchMethod = "isrc"
	MatchMethodExactNormalized MatchMethod = "exact_normalized"
	MatchMethodPartialFuzzy    MatchMethod = "partial_fuzzy"
)

// Confidence tiers. Each method always reports the same value.
const (
	ConfidenceISRC            = 1.0
	ConfidenceExactNormalized = 0.95
	ConfidencePartialFuzzy    = 0.70
)

// minFuzzyArtistToken is the shortest leading artist token for which the
// partial fuzzy scan is attempted.
const minFuzzyArtistToken = 3

// MatchResult holds the outcome of a matching attempt.
type MatchResult struct {
	RecordID   string      `json:"record_id"`
	Method     MatchMethod `json:"method"`
	Confidence float64     `json:"confidence"`
}

// MatchConfig holds configuration for the Matcher.
type MatchConfig struct {
	MinConfidence float64
}

// DefaultMatchConfig returns the default matching configuration, which
// accepts every tier.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		MinConfidence: ConfidencePartialFuzzy,
	}
}
