package version

import "fmt"

var (
	// Version is the current application version.
	// It is populated by the build system via ldflags.
	Version = "v0.1.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the build identity for -version output.
func String() string {
	return fmt.Sprintf("voicecab %s (commit %s, built %s)", Version, Commit, Date)
}
