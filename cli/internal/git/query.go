// Package git (query.go) runs the git queries used for version stamping.
// Every query goes through a shell.Executor with a bounded timeout and reports
// failure as ok=false rather than an error: a missing git binary, a directory
// that is not a repository, and a repository without tags are all normal.
package git

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gitstamp/cli/internal/shell"
)

// Default timeouts for each query.
const (
	DescribeTimeout    = 5 * time.Second
	RevisionTimeout    = 3 * time.Second
	CommitCountTimeout = 5 * time.Second
)

// Unknown is the revision placeholder used when HEAD cannot be resolved.
const Unknown = "unknown"

var (
	describeArgs    = []string{"git", "describe", "--tags", "--long", "--dirty"}
	revisionArgs    = []string{"git", "rev-parse", "--short", "HEAD"}
	commitCountArgs = []string{"git", "rev-list", "--count", "HEAD"}
	topLevelArgs    = []string{"git", "rev-parse", "--show-toplevel"}
)

// output runs args in dir and returns the trimmed merged output. ok is false
// on timeout, non-zero exit, spawn failure, or blank output.
func output(ctx context.Context, ex shell.Executor, dir string, timeout time.Duration, args []string) (string, bool) {
	res := ex.Run(ctx, shell.Command{Args: args, Dir: dir, Timeout: timeout})
	if !res.OK() {
		return "", false
	}
	out := strings.TrimSpace(res.Output)
	if out == "" {
		return "", false
	}
	return out, true
}

// Describe runs "git describe --tags --long --dirty" in dir.
func Describe(ctx context.Context, ex shell.Executor, dir string, timeout time.Duration) (string, bool) {
	return output(ctx, ex, dir, timeout, describeArgs)
}

// ShortRevision runs "git rev-parse --short HEAD" in dir.
func ShortRevision(ctx context.Context, ex shell.Executor, dir string, timeout time.Duration) (string, bool) {
	return output(ctx, ex, dir, timeout, revisionArgs)
}

// CommitCount runs "git rev-list --count HEAD" in dir. Non-numeric output
// counts as a failure.
func CommitCount(ctx context.Context, ex shell.Executor, dir string, timeout time.Duration) (int, bool) {
	out, ok := output(ctx, ex, dir, timeout, commitCountArgs)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(out)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// TopLevel returns the absolute root of the work tree containing dir.
func TopLevel(ctx context.Context, ex shell.Executor, dir string, timeout time.Duration) (string, bool) {
	out, ok := output(ctx, ex, dir, timeout, topLevelArgs)
	if !ok {
		return "", false
	}
	return filepath.Clean(out), true
}
