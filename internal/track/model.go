package track

import (
	"strings"
	"time"
)

// Record is a snapshot of one audio file in the local library.
type Record struct {
	ID          string    `json:"id"`
	Artist      string    `json:"artist"`
	Title       string    `json:"title"`
	Album       string    `json:"album"`
	Format      string    `json:"format"`
	FileSize    int64     `json:"file_size"`
	BitrateKbps int       `json:"bitrate_kbps"`
	ISRC        string    `json:"isrc,omitempty"`
	FilePath    string    `json:"file_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Query describes a recording being looked for in the library.
type Query struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Album  string `json:"album,omitempty"`
	ISRC   string `json:"isrc,omitempty"`
}

// NormalizeISRC upper-cases and trims an ISRC. It returns "" when the code is
// not 12 characters of A-Z and 0-9, so callers can treat a malformed code as
// absent.
func NormalizeISRC(isrc string) string {
	s := strings.ToUpper(strings.TrimSpace(isrc))
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != 12 {
		return ""
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return s
}
