package preflight

import (
	"filesort/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every read-only check for a prospective run from source to
// destination. A missing destination passes when its parent is writable,
// because the run creates it.
func RunAll(cfg *config.Config, source, destination string) []Result {
	results := []Result{
		CheckReadable("Source folder", source),
		CheckCreatable("Destination folder", destination),
	}
	if cfg != nil {
		results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	}
	results = append(results, CheckFreeSpace("Destination space", destination))
	return results
}
