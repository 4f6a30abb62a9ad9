package sorter

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"filesort/internal/config"
	"filesort/internal/fileutil"
)

const (
	// DefaultConcurrency is the worker count used when Options leaves it unset.
	DefaultConcurrency = 64
	// MaxConcurrency bounds the worker pool so a typo cannot exhaust descriptors.
	MaxConcurrency = 4096
)

// Options configures a single sort run.
type Options struct {
	SourceRoot    string
	DestRoot      string
	Concurrency   int
	Collision     fileutil.CollisionPolicy
	PreserveMode  bool
	Deadline      time.Duration
	ProgressEvery int
}

// OptionsFromConfig seeds run options from the loaded configuration. The CLI
// overlays flags on the result.
func OptionsFromConfig(cfg *config.Config, source, destination string) (Options, error) {
	opts := Options{
		SourceRoot:   source,
		DestRoot:     destination,
		Concurrency:  DefaultConcurrency,
		Collision:    fileutil.CollisionOverwrite,
		PreserveMode: true,
	}
	if cfg == nil {
		return opts, nil
	}
	policy, err := fileutil.ParseCollisionPolicy(cfg.Sort.OnCollision)
	if err != nil {
		return Options{}, err
	}
	opts.Concurrency = cfg.Sort.Concurrency
	opts.Collision = policy
	opts.PreserveMode = cfg.Sort.PreserveMode
	opts.Deadline = cfg.Deadline()
	opts.ProgressEvery = cfg.Sort.ProgressEvery
	return opts, nil
}

func (o Options) validate() error {
	if strings.TrimSpace(o.SourceRoot) == "" {
		return fmt.Errorf("source folder is required")
	}
	if strings.TrimSpace(o.DestRoot) == "" {
		return fmt.Errorf("destination folder is required")
	}
	if o.Concurrency < 1 || o.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between 1 and %d, got %d", MaxConcurrency, o.Concurrency)
	}
	if o.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative")
	}
	switch o.Collision {
	case "", fileutil.CollisionOverwrite, fileutil.CollisionRename:
	default:
		return fmt.Errorf("unknown collision policy %q", o.Collision)
	}
	return nil
}

// Option customizes a Sorter.
type Option func(*Sorter)

// WithLogger sets the logger used for per-file and summary lines.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sorter) {
		s.baseLogger = logger
	}
}

// WithCopier replaces the disk copier, mainly for tests.
func WithCopier(copier FileCopier) Option {
	return func(s *Sorter) {
		if copier != nil {
			s.copier = copier
		}
	}
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(s *Sorter) {
		if id = strings.TrimSpace(id); id != "" {
			s.runID = id
		}
	}
}
