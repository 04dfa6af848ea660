// Package logging assembles structured slog loggers and formatting helpers used
// across demoflow.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session code can tag log lines
// with session IDs, step slugs and stream ids. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
