package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is the semantic version of axget. Overridden via ldflags on release builds.
	Version = "1.0.0"
	// Commit is the short git SHA embedded at build time.
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the semantic version string.
func Short() string {
	return Version
}

// Full returns the version line printed by `axget version`.
func Full() string {
	return fmt.Sprintf("axget %s (commit %s, built %s, %s/%s)",
		Version, Commit, BuildTime, runtime.GOOS, runtime.GOARCH)
}
