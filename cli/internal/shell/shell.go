// Package shell runs external commands with a timeout. Stdout and stderr are
// merged; a command still running when its timeout expires is killed and its
// pipes are closed so no process or goroutine outlives the call.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/rs/zerolog"
)

// Command describes one invocation. Args[0] is the program name.
type Command struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Result is the outcome of Run. ExitCode is -1 when the process never
// exited normally (spawn failure, timeout, signal).
type Result struct {
	ExitCode int
	Output   string
	TimedOut bool
	// Err is set when the process could not be started or waited on.
	Err error
}

// OK reports whether the command exited 0 within its timeout.
func (r Result) OK() bool {
	return r.Err == nil && !r.TimedOut && r.ExitCode == 0
}

// Executor runs commands. Implementations never return Go errors for command
// failure; the Result describes what happened.
type Executor interface {
	Run(ctx context.Context, c Command) Result
}

// ErrNoArgs is reported in Result.Err when Command.Args is empty.
var ErrNoArgs = errors.New("shell: empty command")

// waitDelay bounds how long Run waits for pipes to drain after the process
// has been killed (a grandchild may still hold them open).
const waitDelay = 500 * time.Millisecond

// Exec is the Executor backed by os/exec.
type Exec struct {
	// Env overrides the subprocess environment; nil means MinimalEnv().
	Env []string
}

// Run starts c and waits up to c.Timeout (no limit when zero).
func (e Exec) Run(ctx context.Context, c Command) Result {
	if len(c.Args) == 0 {
		return Result{ExitCode: -1, Err: ErrNoArgs}
	}
	logger := zerolog.Ctx(ctx)
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = e.Env
	if cmd.Env == nil {
		cmd.Env = MinimalEnv()
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	res := Result{ExitCode: -1, Output: out.String()}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case res.TimedOut:
	case errors.As(err, &exitErr):
	default:
		res.Err = err
	}

	logger.Debug().
		Strs("args", c.Args).
		Str("dir", c.Dir).
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Dur("elapsed", time.Since(start)).
		Err(res.Err).
		Msg("command finished")
	return res
}

// MinimalEnv returns the environment used for subprocesses: PATH and HOME
// only, with git prompts and pagers disabled.
func MinimalEnv() []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_PAGER=cat",
	}
	if home := os.Getenv("HOME"); home != "" {
		env = append(env, "HOME="+home)
	} else if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			env = append(env, "HOME="+profile)
		}
	}
	return env
}
