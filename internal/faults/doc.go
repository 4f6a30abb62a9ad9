// Package faults defines the error markers shared by the walker, copier, and
// sorter.
//
// Every failure that leaves a component is tagged with one sentinel so callers
// can separate fatal setup problems from per-file failures with errors.Is,
// and so log lines can carry a consistent error_hint. Raw filesystem errors
// are mapped onto markers with Classify.
package faults
