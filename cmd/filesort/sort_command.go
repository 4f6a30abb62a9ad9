package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"filesort/internal/destlock"
	"filesort/internal/fileutil"
	"filesort/internal/journal"
	"filesort/internal/logging"
	"filesort/internal/preflight"
	"filesort/internal/sorter"
)

type sortFlags struct {
	concurrency    int
	onCollision    string
	deadline       time.Duration
	noPreserveMode bool
	noJournal      bool
	jsonOutput     bool
}

func newSortCommand(ctx *commandContext) *cobra.Command {
	var flags sortFlags

	cmd := &cobra.Command{
		Use:   "filesort <source> <destination>",
		Short: "Copy every file under source into per-extension folders under destination",
		Long: `Copy every regular file below <source> into <destination>/<extension>/<name>.

Extensions are lowercased and files without one go to no_extension. Sources
are never modified. Files that fail to copy are reported without stopping the
run; the command exits non-zero when any file failed.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSort(cmd, ctx, args[0], args[1], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "j", 0, "Maximum concurrent copies (default from config)")
	cmd.Flags().StringVar(&flags.onCollision, "on-collision", "", "Name clash handling: overwrite or rename (default from config)")
	cmd.Flags().DurationVar(&flags.deadline, "deadline", 0, "Abort the run after this long (0 = no limit)")
	cmd.Flags().BoolVar(&flags.noPreserveMode, "no-preserve-mode", false, "Do not copy permission bits from the source files")
	cmd.Flags().BoolVar(&flags.noJournal, "no-journal", false, "Do not record this run in the journal")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Print the run report as JSON")
	return cmd
}

func runSort(cmd *cobra.Command, ctx *commandContext, source, destination string, flags sortFlags) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}

	opts, err := sorter.OptionsFromConfig(cfg, source, destination)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		opts.Concurrency = flags.concurrency
	}
	if cmd.Flags().Changed("on-collision") {
		policy, err := fileutil.ParseCollisionPolicy(flags.onCollision)
		if err != nil {
			return err
		}
		opts.Collision = policy
	}
	if cmd.Flags().Changed("deadline") {
		opts.Deadline = flags.deadline
	}
	if flags.noPreserveMode {
		opts.PreserveMode = false
	}

	logger, err := ctx.newLogger(cmd)
	if err != nil {
		return err
	}

	// A missing source is reported before any lock or destination work.
	if err := preflight.CheckSource(source); err != nil {
		return err
	}
	lock, err := destlock.Acquire(cfg.LockDir(), destination)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("destination lock release failed", logging.Error(err))
		}
	}()

	s := sorter.New(opts, sorter.WithLogger(logger))
	report, runErr := s.Run(cmd.Context())
	if report == nil {
		return runErr
	}

	if cfg.Journal.Enabled && !flags.noJournal {
		recordRun(cfg.Journal.Path, report, logger)
	}

	if flags.jsonOutput {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, line := range reportLines(report, shouldColorize(out)) {
			fmt.Fprintln(out, line)
		}
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, report.Discovered)
	}
	return nil
}

// recordRun stores the report in the journal. A journal problem is logged
// and never changes the outcome of the run.
func recordRun(path string, report *sorter.Report, logger *slog.Logger) {
	store, err := journal.Open(path)
	if err == nil {
		defer store.Close()
		// The run context may already be cancelled; the record is still wanted.
		err = store.RecordRun(context.Background(), report)
	}
	if err != nil {
		logging.WarnWithContext(logger, "run journal write failed", "journal_write_failed",
			logging.String(logging.FieldRunID, report.RunID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check journal.path permissions"),
			logging.String(logging.FieldImpact, "run missing from filesort history"),
		)
	}
}
