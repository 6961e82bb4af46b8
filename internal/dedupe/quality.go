package dedupe

import (
	"sort"
	"strings"

	"github.com/sydlexius/trackmend/internal/track"
)

// UnknownFormatRank is the rank of any format missing from formatRanks.
// Unknown formats always sort below every known format.
const UnknownFormatRank = 0

// formatRanks orders container/codec tags from best to worst. Lossless
// formats outrank every lossy one.
var formatRanks = map[string]int{
	"DSF":  100,
	"DFF":  100,
	"DSD":  100,
	"WAV":  95,
	"AIFF": 95,
	"AIF":  95,
	"FLAC": 90,
	"ALAC": 90,
	"APE":  90,
	"WV":   90,
	"OPUS": 60,
	"AAC":  55,
	"M4A":  55,
	"OGG":  50,
	"MP3":  40,
	"WMA":  30,
}

// FormatRank returns the quality rank for a format tag such as "flac" or ".MP3".
func FormatRank(format string) int {
	tag := strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(format), "."))
	if rank, ok := formatRanks[tag]; ok {
		return rank
	}
	return UnknownFormatRank
}

// QualityScore is the sort key for a library copy.
type QualityScore struct {
	FormatRank int   `json:"format_rank"`
	FileSize   int64 `json:"file_size"`
}

// Score computes the quality score of r.
func Score(r track.Record) QualityScore {
	return QualityScore{FormatRank: FormatRank(r.Format), FileSize: r.FileSize}
}

// Better reports whether s sorts strictly ahead of o.
func (s QualityScore) Better(o QualityScore) bool {
	if s.FormatRank != o.FormatRank {
		return s.FormatRank > o.FormatRank
	}
	return s.FileSize > o.FileSize
}

// Rank returns a copy of members ordered best first: higher format rank, then
// larger file. Members with equal scores keep their input order.
func Rank(members []track.Record) []track.Record {
	ranked := make([]track.Record, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		return Score(ranked[i]).Better(Score(ranked[j]))
	})
	return ranked
}
