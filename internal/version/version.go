// Package version holds build metadata injected via ldflags.
package version

import "fmt"

// Service is the name every log entry and the health report carry.
const Service = "lazysearch"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String renders the build as "lazysearch <version> (<commit>, <date>)".
func String() string {
	return fmt.Sprintf("%s %s (%s, %s)", Service, Version, Commit, Date)
}
