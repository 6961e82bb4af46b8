package scanner

import "time"

// Result summarizes one library scan.
type Result struct {
	Files       int           `json:"files"`
	Added       int           `json:"added"`
	Updated     int           `json:"updated"`
	Removed     int           `json:"removed"`
	Failed      int           `json:"failed"`
	TagFallback int           `json:"tag_fallback"`
	// Partial is set when part of the library could not be walked; no
	// records are removed on a partial scan.
	Partial     bool          `json:"partial"`
	Duration    time.Duration `json:"duration"`
}

// DefaultExtensions are the audio file extensions scanned when none are
// configured.
var DefaultExtensions = []string{
	".mp3", ".flac", ".m4a", ".aac", ".ogg", ".opus", ".wav", ".aiff", ".aif",
	".wma", ".ape", ".wv", ".alac", ".dsf", ".dff",
}
