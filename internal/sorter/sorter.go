package sorter

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"filesort/internal/faults"
	"filesort/internal/fileutil"
	"filesort/internal/logging"
	"filesort/internal/preflight"
	"filesort/internal/walker"
)

// Sorter copies every file under a source root into per-extension folders
// under a destination root.
type Sorter struct {
	opts       Options
	copier     FileCopier
	baseLogger *slog.Logger
	runID      string
}

// New builds a Sorter. Zero Concurrency and Collision fall back to defaults.
func New(opts Options, options ...Option) *Sorter {
	if opts.Concurrency == 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Collision == "" {
		opts.Collision = fileutil.CollisionOverwrite
	}
	s := &Sorter{opts: opts}
	for _, opt := range options {
		opt(s)
	}
	if s.copier == nil {
		s.copier = DiskCopier{Options: fileutil.CopyOptions{
			PreserveMode: opts.PreserveMode,
			Collision:    opts.Collision,
		}}
	}
	if s.runID == "" {
		s.runID = NewRunID()
	}
	return s
}

// RunID returns the identifier attached to this run's logs and report.
func (s *Sorter) RunID() string {
	return s.runID
}

// Run performs the sort. Setup problems return a faults.ErrSetup error and no
// report. Per-file failures are collected in the report and never fail the
// run. When ctx is cancelled or the deadline passes, the partial report is
// returned with an error wrapping faults.ErrCancelled.
func (s *Sorter) Run(ctx context.Context) (*Report, error) {
	if err := s.opts.validate(); err != nil {
		return nil, faults.Wrap(faults.ErrSetup, "sorter", "validate options", err.Error(), nil)
	}
	source, err := filepath.Abs(s.opts.SourceRoot)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSetup, "sorter", "resolve source", s.opts.SourceRoot, err)
	}
	dest, err := filepath.Abs(s.opts.DestRoot)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSetup, "sorter", "resolve destination", s.opts.DestRoot, err)
	}
	if err := preflight.CheckSource(source); err != nil {
		return nil, err
	}
	if err := preflight.EnsureDestination(dest); err != nil {
		return nil, err
	}

	// The destination is pruned from the walk when it sits inside the source.
	w, err := walker.New(source, logging.WithContext(faults.WithRunID(ctx, s.runID), s.baseLogger), dest)
	if err != nil {
		return nil, faults.Wrap(faults.ErrSetup, "sorter", "prepare walk", source, err)
	}

	if s.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Deadline)
		defer cancel()
	}
	ctx = faults.WithRunID(ctx, s.runID)
	logger := logging.WithContext(ctx, logging.NewComponentLogger(s.baseLogger, "sorter"))

	report := newReport(s.runID, source, dest, time.Now())
	logger.Info("sort run started",
		logging.String("source_root", w.Root()),
		logging.String("dest_root", dest),
		logging.Int("concurrency", s.opts.Concurrency),
		logging.String("on_collision", string(s.opts.Collision)),
		logging.String(logging.FieldEventType, "run_start"),
	)

	jobs := make(chan walker.SourceFile)
	results := make(chan Result)
	var interrupted atomic.Bool

	go func() {
		defer close(jobs)
		for file := range w.Files(ctx) {
			select {
			case jobs <- file:
			case <-ctx.Done():
				interrupted.Store(true)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(s.opts.Concurrency)
	for range s.opts.Concurrency {
		go func() {
			defer wg.Done()
			for file := range jobs {
				results <- s.process(ctx, logger, dest, file)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	sampler := logging.NewProgressSampler(s.opts.ProgressEvery)
	for res := range results {
		report.add(res)
		if faults.Classify(res.Err) == faults.ErrCancelled {
			interrupted.Store(true)
		}
		if sampler.ShouldLog(report.Discovered) {
			logger.Info("sort progress",
				logging.Int("discovered", report.Discovered),
				logging.Int("copied", report.Copied),
				logging.Int("failed", report.Failed),
				logging.String(logging.FieldEventType, "run_progress"),
			)
		}
	}

	// A cancel that lands after the last file was handed out drops nothing.
	cancelled := interrupted.Load() || w.Interrupted()
	report.finish(time.Now(), w.Skipped(), cancelled)
	s.logSummary(logger, report)

	if cancelled {
		return report, faults.Wrap(faults.ErrCancelled, "sorter", "run", "run interrupted before all files were copied", context.Cause(ctx))
	}
	return report, nil
}

func (s *Sorter) process(ctx context.Context, logger *slog.Logger, dest string, file walker.SourceFile) Result {
	bucket := file.Bucket()
	res := Result{Source: file.Path, Bucket: bucket}
	if err := ctx.Err(); err != nil {
		res.Err = faults.Wrap(faults.ErrCancelled, "sorter", "copy", "not started: "+file.Path, err)
		return res
	}

	dir, err := fileutil.EnsureDir(dest, bucket)
	if err != nil {
		res.Err = err
		s.logFailure(logger, res)
		return res
	}

	outcome, err := s.copier.Copy(faults.WithBucket(ctx, bucket), file, dir)
	if err != nil {
		if !faults.IsMarked(err) {
			err = faults.Wrap(faults.Classify(err), "sorter", "copy", file.Path, err)
		}
		res.Err = err
		s.logFailure(logger, res)
		return res
	}

	res.Destination = outcome.Path
	res.Bytes = outcome.Bytes
	res.Renamed = outcome.Renamed
	attrs := []logging.Attr{
		logging.String(logging.FieldSource, res.Source),
		logging.String(logging.FieldDestination, res.Destination),
		logging.String(logging.FieldBucket, bucket),
		logging.Int64("bytes", res.Bytes),
		logging.String(logging.FieldEventType, "file_copied"),
	}
	if res.Renamed {
		attrs = append(attrs, logging.Bool("renamed", true))
	}
	logger.Info("file copied", logging.Args(attrs...)...)
	return res
}

func (s *Sorter) logFailure(logger *slog.Logger, res Result) {
	logging.ErrorWithContext(logger, "file copy failed", "file_copy_failed",
		logging.String(logging.FieldSource, res.Source),
		logging.String(logging.FieldBucket, res.Bucket),
		logging.Error(res.Err),
		logging.String(logging.FieldErrorHint, faults.Hint(res.Err)),
	)
}

func (s *Sorter) logSummary(logger *slog.Logger, report *Report) {
	attrs := []logging.Attr{
		logging.Int("discovered", report.Discovered),
		logging.Int("copied", report.Copied),
		logging.Int("failed", report.Failed),
		logging.Int("renamed", report.Renamed),
		logging.Int64("bytes", report.Bytes),
		logging.Int("walk_skipped", report.WalkSkipped),
		logging.Duration("duration", report.Duration()),
	}
	switch {
	case report.Cancelled:
		logging.WarnWithContext(logger, "sort run cancelled", "run_cancelled", append(attrs,
			logging.String(logging.FieldErrorHint, faults.Hint(faults.ErrCancelled)),
			logging.String(logging.FieldImpact, "remaining files were not copied"),
		)...)
	case report.Failed > 0:
		logging.WarnWithContext(logger, "sort run finished with failures", "run_finished", append(attrs,
			logging.String(logging.FieldErrorHint, "see file copy failed lines for each path"),
			logging.String(logging.FieldImpact, "failed files are missing from the destination"),
		)...)
	default:
		logger.Info("sort run finished", logging.Args(append(attrs, logging.String(logging.FieldEventType, "run_finished"))...)...)
	}
}
