// Package sorter runs the copy pipeline: a walker feeds discovered files
// through an unbuffered channel to a fixed pool of workers, each worker
// classifies its file, ensures the bucket folder, and copies, and a single
// collector folds the results into a Report.
//
// Failures of individual files are isolated. They are logged, recorded in
// the report, and never stop other copies.
package sorter
