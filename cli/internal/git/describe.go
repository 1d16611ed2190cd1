// Package git (describe.go) parses "git describe --tags --long --dirty" output.
package git

import (
	"strconv"
	"strings"
)

const dirtySuffix = "-dirty"

// DescribeResult is a decomposed describe string. Long is false when the
// string had fewer than three dash-separated segments; only BaseTag is
// meaningful then.
type DescribeResult struct {
	Raw         string `json:"raw"`
	BaseTag     string `json:"base_tag"`
	CommitCount int    `json:"commit_count"`
	ShortHash   string `json:"short_hash,omitempty"`
	Dirty       bool   `json:"dirty"`
	Long        bool   `json:"long"`
}

// ParseDescribe decomposes s. It returns false when s carries no usable tag
// (blank input, or a blank tag once the "v" prefix is removed).
//
// The string is split on every "-", so a tag that itself contains dashes
// (v1.2.3-rc1-4-gabc) yields segment 1 = "rc1", which counts as 0 commits.
func ParseDescribe(s string) (DescribeResult, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return DescribeResult{}, false
	}
	d := DescribeResult{Raw: trimmed}
	clean := trimmed
	if strings.HasSuffix(clean, dirtySuffix) {
		d.Dirty = true
		clean = strings.TrimSuffix(clean, dirtySuffix)
	}

	segments := strings.Split(clean, "-")
	d.BaseTag = strings.TrimPrefix(segments[0], "v")
	if d.BaseTag == "" {
		return DescribeResult{}, false
	}
	if len(segments) < 3 {
		return d, true
	}

	d.Long = true
	if n, err := strconv.Atoi(segments[1]); err == nil && n > 0 {
		d.CommitCount = n
	}
	d.ShortHash = strings.TrimPrefix(segments[len(segments)-1], "g")
	return d, true
}

// Exact reports whether HEAD is exactly the tagged commit with a clean tree.
func (d DescribeResult) Exact() bool {
	return d.Long && d.CommitCount == 0 && !d.Dirty
}

// Version applies the release/dev policy:
//
//	0 commits, clean  -> 1.2.3
//	0 commits, dirty  -> 1.2.3-dev
//	N commits         -> 1.2.3-dev-N
//
// Short describe strings return BaseTag unchanged.
func (d DescribeResult) Version() string {
	if !d.Long || d.Exact() {
		return d.BaseTag
	}
	if d.CommitCount > 0 {
		return d.BaseTag + "-dev-" + strconv.Itoa(d.CommitCount)
	}
	return d.BaseTag + "-dev"
}
