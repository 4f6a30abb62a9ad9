// Package journal keeps a history of sort runs in SQLite.
//
// Each finished or cancelled run is recorded with its counters and the list
// of files that failed, so `filesort history` can show what happened after
// the terminal output is gone. The journal is history only; runs are never
// resumed from it.
package journal
