// Package logging configures the zerolog logger used by the CLI. Diagnostics
// go to stderr so stdout carries only command output.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Options selects the logger level and encoding.
type Options struct {
	Verbose bool
	// JSON emits structured lines instead of the console format.
	JSON bool
}

// New returns a logger writing to w. Info level by default, debug when verbose.
func New(w io.Writer, opts Options) zerolog.Logger {
	out := w
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
