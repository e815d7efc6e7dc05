// Package version holds build metadata injected via ldflags.
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build metadata as "chemdex <version> (<commit>, <date>)".
func String() string {
	return fmt.Sprintf("chemdex %s (%s, %s)", Version, Commit, Date)
}
