// Package preflight provides readiness checks for the directories a sort run
// touches.
//
// These checks run in two contexts:
//   - The sorter calls CheckSource and EnsureDestination before copying; a
//     failure there aborts the run with faults.ErrSetup.
//   - The CLI "filesort check" command uses RunAll to display every check
//     without copying anything.
package preflight
