// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time via -ldflags "-X github.com/sydlexius/trackmend/internal/version.Version=...".
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
