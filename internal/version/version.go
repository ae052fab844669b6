// Package version provides build-time version information for ci-buglist.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set via ldflags.
// Example: go build -ldflags="-X github.com/andywolf/ci-buglist/internal/version.Version=v1.0.0"
var (
	// Version is the semantic version (e.g., "v1.2.3"). Set via ldflags.
	Version = "dev"

	// Commit is the git commit SHA. Set via ldflags.
	Commit = "unknown"

	// BuildDate is the RFC3339 timestamp of the build. Set via ldflags.
	BuildDate = "unknown"
)

// Info returns a single-line version string used by --version.
// Format: "v1.2.3 (commit: abc1234, built: 2024-01-15T10:30:00Z, go: go1.23.x)"
func Info() string {
	commitShort := Commit
	if len(commitShort) > 7 {
		commitShort = commitShort[:7]
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)",
		Version, commitShort, BuildDate, runtime.Version())
}

// UserAgent returns the User-Agent sent with every tracker request.
func UserAgent() string {
	return fmt.Sprintf("ci-buglist/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
