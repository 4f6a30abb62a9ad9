// Package config loads, normalizes, and validates filesort configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// FILESORT_CONCURRENCY. Command-line flags are layered on top by the CLI;
// everything below the CLI receives plain values derived from Config.
package config
