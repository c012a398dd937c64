// Package version carries build metadata injected at link time.
package version

import "fmt"

// Set via -ldflags "-X github.com/quorumlabs/quorum/internal/version.Version=...".
var (
	Version   = "0.1.0"
	Commit    = "dev"
	BuildDate = "unknown"
)

// Full renders the version with commit and build date.
func Full() string {
	return fmt.Sprintf("quorum %s (commit %s, built %s)", Version, Commit, BuildDate)
}
