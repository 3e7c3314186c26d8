// Package logging builds the structured loggers used by the runner and the fake app.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a logger.
type Options struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Prefix names the component, e.g. "executor".
	Prefix string
	// ReportTimestamp adds timestamps to log entries.
	ReportTimestamp bool
}

func DefaultOptions() Options {
	return Options{
		Level:           "info",
		Output:          os.Stderr,
		ReportTimestamp: true,
	}
}

// ParseLevel maps a level name to log.Level, falling back to info.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		TimeFormat:      time.Kitchen,
		ReportTimestamp: opts.ReportTimestamp,
	})
}

// Discard returns a logger that writes nowhere. Handy in tests.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
