// Package cli implements the automation command-line interface.
//
// The commands drive a composition root from the terminal: rendering model
// attributes to markup, diffing two renders, serving a root over HTTP with a
// websocket hub, and watching it re-render live. The CLI is built using
// cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - render: Mount items and print the markup, tree outline, DOT or SVG
//   - diff: Print the patch set between two attribute objects
//   - serve: Serve a composition root over HTTP
//   - watch: serve plus a live terminal view
//   - cache: Manage the backing-data response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// attached to the command context and handed to every root, source and
// server the command builds.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger with "HH:MM:SS.ms" timestamps that writes to w
// and filters messages below level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the completion of an operation with its elapsed time.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress starts a progress tracker.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Fetched 3 documents (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

// loggerKey is the context key for storing a logger.
const loggerKey ctxKey = 0

// withLogger attaches l to ctx.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
