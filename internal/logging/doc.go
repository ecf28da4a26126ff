// Package logging assembles structured slog loggers and formatting helpers used
// across stockmeta.
//
// It owns the console and JSON handlers, fans records out to an optional JSON
// log file, and exposes context-aware helpers so batch and server code can tag
// log lines with run, item, and session identifiers. Logs go to stderr so that
// JSON results printed on stdout stay parseable.
package logging
