// Package resolver derives the build version and build identifier from git
// metadata. Git being unavailable is never an error: every lookup degrades to
// a fallback value (base version, "unknown" revision, zero commits).
package resolver

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gitstamp/cli/internal/git"
	"gitstamp/cli/internal/shell"
)

// DefaultBaseVersion is used when the caller supplies a blank base version.
const DefaultBaseVersion = "1.0.0"

// TimestampLayout is yyyyMMddHHmmss.
const TimestampLayout = "20060102150405"

// Source records where a resolved version came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceGit      Source = "git"
	SourceFallback Source = "fallback"
)

// Timeouts bounds each git query. Zero fields use the git package defaults.
type Timeouts struct {
	Describe    time.Duration
	Revision    time.Duration
	CommitCount time.Duration
}

func (t Timeouts) describe() time.Duration {
	if t.Describe > 0 {
		return t.Describe
	}
	return git.DescribeTimeout
}

func (t Timeouts) revision() time.Duration {
	if t.Revision > 0 {
		return t.Revision
	}
	return git.RevisionTimeout
}

func (t Timeouts) commitCount() time.Duration {
	if t.CommitCount > 0 {
		return t.CommitCount
	}
	return git.CommitCountTimeout
}

// Request is the input to ResolveVersion.
type Request struct {
	// Base is the fallback when git metadata is unavailable.
	Base string
	// Override, when non-nil and non-blank, is returned verbatim and git is
	// not consulted.
	Override *string
	// Dir is the repository directory the git commands run in.
	Dir      string
	Timeouts Timeouts
}

// ResolvedVersion is the outcome of ResolveVersion. Value is never blank.
type ResolvedVersion struct {
	Value    string              `json:"value"`
	Source   Source              `json:"source"`
	Describe *git.DescribeResult `json:"describe,omitempty"`
}

func (v ResolvedVersion) String() string { return v.Value }

// ResolveVersion returns the override, the git-derived version, or the base
// version, in that order of preference.
func ResolveVersion(ctx context.Context, req Request, ex shell.Executor) ResolvedVersion {
	if req.Override != nil && strings.TrimSpace(*req.Override) != "" {
		return ResolvedVersion{Value: *req.Override, Source: SourceOverride}
	}
	if d, ok := Describe(ctx, req.Dir, req.Timeouts, ex); ok {
		return ResolvedVersion{Value: d.Version(), Source: SourceGit, Describe: &d}
	}
	base := req.Base
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseVersion
	}
	zerolog.Ctx(ctx).Debug().Str("base_version", base).Msg("git version unavailable; using base version")
	return ResolvedVersion{Value: base, Source: SourceFallback}
}

// Describe runs git describe in dir and parses the result.
func Describe(ctx context.Context, dir string, timeouts Timeouts, ex shell.Executor) (git.DescribeResult, bool) {
	out, ok := git.Describe(ctx, ex, dir, timeouts.describe())
	if !ok {
		return git.DescribeResult{}, false
	}
	d, ok := git.ParseDescribe(out)
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("describe", out).Msg("describe output has no usable tag")
	}
	return d, ok
}

// CountCommits returns the number of commits reachable from HEAD, or 0 when
// git cannot answer.
func CountCommits(ctx context.Context, dir string, timeouts Timeouts, ex shell.Executor) int {
	n, ok := git.CommitCount(ctx, ex, dir, timeouts.commitCount())
	if !ok {
		zerolog.Ctx(ctx).Debug().Msg("commit count unavailable; using 0")
	}
	return n
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns T.
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// BuildIdentifier names one build output: version, UTC timestamp and short
// revision. Revision is git.Unknown when HEAD could not be resolved.
type BuildIdentifier struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Revision  string `json:"revision"`
}

// String returns "{version}-{timestamp}-{revision}".
func (b BuildIdentifier) String() string {
	return b.Version + "-" + b.Timestamp + "-" + b.Revision
}

// ResolveBuildIdentifier stamps version with the clock's UTC time and the
// short HEAD revision.
func ResolveBuildIdentifier(ctx context.Context, version, dir string, timeouts Timeouts, ex shell.Executor, clock Clock) BuildIdentifier {
	rev, ok := git.ShortRevision(ctx, ex, dir, timeouts.revision())
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("revision", git.Unknown).Msg("git revision unavailable")
		rev = git.Unknown
	}
	return BuildIdentifier{
		Version:   version,
		Timestamp: clock.Now().UTC().Format(TimestampLayout),
		Revision:  rev,
	}
}
