// Package logging assembles structured slog loggers and formatting helpers used
// across filesort.
//
// It owns the console and JSON handlers, the fan-out that mirrors console
// output into a JSON log file, and context helpers that tag lines with the
// run identifier and extension bucket. NewNop gives tests and optional wiring
// a logger that cannot fail.
package logging
