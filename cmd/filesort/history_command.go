package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"filesort/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sort runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, runViews(runs))
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, historyTable(runs))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	cmd.AddCommand(newHistoryShowCommand(ctx))
	cmd.AddCommand(newHistoryPruneCommand(ctx))
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and the files it failed to copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withJournal(func(store *journal.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				failures, err := store.Failures(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					view := runViewOf(*run)
					view.Failures = failureViews(failures)
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range runLines(*run, colorize) {
					fmt.Fprintln(out, line)
				}
				if len(failures) > 0 {
					rows := make([][]string, 0, len(failures))
					for _, f := range failures {
						rows = append(rows, []string{f.Path, f.Bucket, f.Error})
					}
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable([]column{{"Path", text.AlignLeft}, {"Folder", text.AlignLeft}, {"Error", text.AlignLeft}}, rows))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the most recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep < 0 {
				return fmt.Errorf("--keep must be >= 0")
			}
			return ctx.withJournal(func(store *journal.Store) error {
				removed, err := store.Prune(cmd.Context(), keep)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 50, "Number of most recent runs to keep")
	return cmd
}

func historyTable(runs []journal.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			strconv.Itoa(run.Copied),
			strconv.Itoa(run.Failed),
			humanize.IBytes(uint64(max(run.Bytes, 0))),
			runState(run),
			run.DestRoot,
		})
	}
	return renderTable([]column{
		{"Run", text.AlignLeft},
		{"Started", text.AlignLeft},
		{"Copied", text.AlignRight},
		{"Failed", text.AlignRight},
		{"Size", text.AlignRight},
		{"State", text.AlignLeft},
		{"Destination", text.AlignLeft},
	}, rows)
}

func runLines(run journal.Run, colorize bool) []string {
	lines := renderSectionHeader("Run "+run.ID, colorize)
	stateKind := statusOK
	switch {
	case run.Cancelled:
		stateKind = statusError
	case run.Failed > 0:
		stateKind = statusWarn
	}
	lines = append(lines,
		renderStatusLine("State", stateKind, runState(run), colorize),
		renderStatusLine("Started", statusInfo, run.StartedAt.Local().Format(time.DateTime), colorize),
		renderStatusLine("Duration", statusInfo, run.Duration().Round(time.Millisecond).String(), colorize),
		renderStatusLine("Source", statusInfo, run.SourceRoot, colorize),
		renderStatusLine("Destination", statusInfo, run.DestRoot, colorize),
		renderStatusLine("Copied", statusInfo, fmt.Sprintf("%d of %d files (%s)", run.Copied, run.Discovered, humanize.IBytes(uint64(max(run.Bytes, 0)))), colorize),
		renderStatusLine("Failed", statusInfo, strconv.Itoa(run.Failed), colorize),
	)
	if run.Renamed > 0 {
		lines = append(lines, renderStatusLine("Renamed", statusInfo, strconv.Itoa(run.Renamed), colorize))
	}
	if run.WalkSkipped > 0 {
		lines = append(lines, renderStatusLine("Skipped", statusInfo, strconv.Itoa(run.WalkSkipped), colorize))
	}
	return lines
}

func runState(run journal.Run) string {
	switch {
	case run.Cancelled:
		return "cancelled"
	case run.Failed > 0:
		return "partial"
	default:
		return "complete"
	}
}

type runView struct {
	ID          string        `json:"run_id"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Discovered  int           `json:"discovered"`
	Copied      int           `json:"copied"`
	Failed      int           `json:"failed"`
	Renamed     int           `json:"renamed"`
	Bytes       int64         `json:"bytes"`
	WalkSkipped int           `json:"walk_skipped"`
	State       string        `json:"state"`
	Failures    []failureView `json:"failures,omitempty"`
}

type failureView struct {
	Path   string `json:"path"`
	Bucket string `json:"bucket"`
	Error  string `json:"error"`
}

func runViewOf(run journal.Run) runView {
	return runView{
		ID:          run.ID,
		Source:      run.SourceRoot,
		Destination: run.DestRoot,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Discovered:  run.Discovered,
		Copied:      run.Copied,
		Failed:      run.Failed,
		Renamed:     run.Renamed,
		Bytes:       run.Bytes,
		WalkSkipped: run.WalkSkipped,
		State:       runState(run),
	}
}

func runViews(runs []journal.Run) []runView {
	views := make([]runView, 0, len(runs))
	for _, run := range runs {
		views = append(views, runViewOf(run))
	}
	return views
}

func failureViews(failures []journal.Failure) []failureView {
	views := make([]failureView, 0, len(failures))
	for _, f := range failures {
		views = append(views, failureView{Path: f.Path, Bucket: f.Bucket, Error: f.Error})
	}
	return views
}
