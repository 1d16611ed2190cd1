// Package version holds the gitstamp binary's own version. Release builds set
// it via: go build -ldflags "-X gitstamp/cli/internal/version.Version=v1.0.0
// -X gitstamp/cli/internal/version.Commit=abc1234 -X gitstamp/cli/internal/version.BuildID=..."
// (the values gitstamp itself prints for its own repository).
package version

// Version is the gitstamp version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash. Set at build time.
var Commit = ""

// BuildID is the "{version}-{timestamp}-{revision}" identifier of this binary.
var BuildID = ""

// String returns the version string for --version.
// "dev (abc1234)" for dev builds with a commit, Version otherwise; a BuildID,
// when stamped, is appended as "build <id>".
func String() string {
	s := Version
	if Version == "dev" && Commit != "" {
		s += " (" + Commit + ")"
	}
	if BuildID != "" {
		s += ", build " + BuildID
	}
	return s
}
