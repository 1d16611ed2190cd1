// Package stamp assembles the build properties handed to packaging steps:
// user-configured properties plus the resolved version, build identifier and
// git metadata.
package stamp

import (
	"sort"
	"strconv"
	"strings"

	"github.com/blang/semver"

	"gitstamp/cli/internal/resolver"
)

// Keys computed by Build. They take precedence over user properties with the
// same name.
const (
	KeyVersion               = "version"
	KeyVersionSource         = "version_source"
	KeyBuildID               = "build_id"
	KeyBuildTimestamp        = "build_timestamp"
	KeyGitRevision           = "git_revision"
	KeyGitCommitCount        = "git_commit_count"
	KeyImplementationVersion = "implementation_version"
	KeyVersionMajor          = "version_major"
	KeyVersionMinor          = "version_minor"
	KeyVersionPatch          = "version_patch"
	KeyVersionPrerelease     = "version_prerelease"
)

// Property is one key/value pair.
type Property struct {
	Key   string
	Value string
}

// Properties is an ordered property list.
type Properties []Property

// Get returns the value for key.
func (p Properties) Get(key string) (string, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Map returns p as a map.
func (p Properties) Map() map[string]string {
	m := make(map[string]string, len(p))
	for _, kv := range p {
		m[kv.Key] = kv.Value
	}
	return m
}

// Input is everything Build needs. CommitSHA is the CI-provided commit (may be blank).
type Input struct {
	Version     resolver.ResolvedVersion
	BuildID     resolver.BuildIdentifier
	CommitCount int
	CommitSHA   string
	User        map[string]string
}

// Build returns user properties (sorted by key) followed by the computed ones.
func Build(in Input) Properties {
	computed := Properties{
		{KeyVersion, in.Version.Value},
		{KeyVersionSource, string(in.Version.Source)},
		{KeyBuildID, in.BuildID.String()},
		{KeyBuildTimestamp, in.BuildID.Timestamp},
		{KeyGitRevision, in.BuildID.Revision},
		{KeyGitCommitCount, strconv.Itoa(in.CommitCount)},
		{KeyImplementationVersion, ImplementationVersion(in.Version.Value, in.CommitSHA)},
	}
	computed = append(computed, semverProperties(in.Version.Value)...)

	reserved := make(map[string]struct{}, len(computed))
	for _, kv := range computed {
		reserved[kv.Key] = struct{}{}
	}
	keys := make([]string, 0, len(in.User))
	for k := range in.User {
		if _, ok := reserved[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Properties, 0, len(keys)+len(computed))
	for _, k := range keys {
		out = append(out, Property{k, in.User[k]})
	}
	return append(out, computed...)
}

// ImplementationVersion is "{version}-{sha}" when sha is non-blank, else version.
func ImplementationVersion(version, sha string) string {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return version
	}
	return version + "-" + sha
}

// semverProperties decomposes version when it parses as semver (tolerantly:
// a leading "v" and missing minor/patch are accepted). Returns nil otherwise.
func semverProperties(version string) Properties {
	v, err := semver.ParseTolerant(version)
	if err != nil {
		return nil
	}
	pre := make([]string, len(v.Pre))
	for i, p := range v.Pre {
		pre[i] = p.String()
	}
	return Properties{
		{KeyVersionMajor, strconv.FormatUint(v.Major, 10)},
		{KeyVersionMinor, strconv.FormatUint(v.Minor, 10)},
		{KeyVersionPatch, strconv.FormatUint(v.Patch, 10)},
		{KeyVersionPrerelease, strings.Join(pre, ".")},
	}
}
