// Package main hosts the filesort CLI entrypoint and command graph.
//
// The root command sorts a source folder into per-extension folders under a
// destination. Subcommands inspect the run journal, run read-only preflight
// checks, and scaffold configuration. Configuration resolution and logger
// construction live in commandContext so each command only wires flags to
// the internal packages.
package main
