// Package version exposes build information injected via -ldflags.
package version

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Full returns the human-readable version line printed by the CLI.
func Full() string {
	return fmt.Sprintf("catchup-voice %s, commit %s, built at %s", Version, Commit, Date)
}
