// Package logging wires up the shared log/slog setup for both CLI fronts:
// a plain-text stderr handler always on, plus an optional JSON handler
// writing to Options.JSONWriter (arf's --log-file), fanned out with
// samber/slog-multi the way a pipeline with more than one sink should be.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures New.
type Options struct {
	// Debug enables slog.LevelDebug on the stderr handler.
	Debug bool
	// JSONWriter, when non-nil, receives a second JSON-formatted handler
	// fanned out alongside stderr.
	JSONWriter io.Writer
}

// New builds the root logger for an `arf` or `drvpack` CLI invocation.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if opts.JSONWriter == nil {
		return slog.New(stderrHandler)
	}

	jsonHandler := slog.NewJSONHandler(opts.JSONWriter, &slog.HandlerOptions{Level: level})
	fanout := slogmulti.Fanout(stderrHandler, jsonHandler)
	return slog.New(fanout)
}
