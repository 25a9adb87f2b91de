// Package version exposes the build identity stamped in at link time via
// -ldflags "-X github.com/domwxyz/marxist-search/pkg/version.version=...".
package version

import "fmt"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Short returns just the version string, e.g. "1.4.0" or "dev".
func Short() string {
	return version
}

// Full returns the version with commit and build date. The root command's
// `--version` prints Short, not Full.
func Full() string {
	return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}
