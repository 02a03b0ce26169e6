// Package version reports build information for the monitor binaries.
package version

import "fmt"

// Set at build time with -ldflags "-X turbidity-monitor/internal/version.Version=...".
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns a one-line build description.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
