// Package shelltest provides a scripted shell.Executor for tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"gitstamp/cli/internal/shell"
)

// Fake returns canned results keyed by the space-joined command line and
// records every call. Commands without a canned result get Default, or a
// non-zero exit when Default is nil.
type Fake struct {
	mu      sync.Mutex
	results map[string]shell.Result
	calls   []shell.Command

	Default *shell.Result
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{results: make(map[string]shell.Result)}
}

// On registers res for the command line args.
func (f *Fake) On(res shell.Result, args ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[strings.Join(args, " ")] = res
	return f
}

// OnOutput registers a successful run of args printing out.
func (f *Fake) OnOutput(out string, args ...string) *Fake {
	return f.On(shell.Result{Output: out}, args...)
}

// Run implements shell.Executor.
func (f *Fake) Run(_ context.Context, c shell.Command) shell.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if res, ok := f.results[strings.Join(c.Args, " ")]; ok {
		return res
	}
	if f.Default != nil {
		return *f.Default
	}
	return shell.Result{ExitCode: 128, Output: "fatal: not a git repository"}
}

// Calls returns a copy of the recorded commands.
func (f *Fake) Calls() []shell.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Command(nil), f.calls...)
}

// TimedOut is the result of a command killed at its timeout.
func TimedOut() shell.Result {
	return shell.Result{ExitCode: -1, TimedOut: true}
}
