package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"filesort/internal/sorter"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, source_root, dest_root, started_at, finished_at, discovered, copied, failed, renamed, bytes, walk_skipped, cancelled"

// ErrAmbiguousRunID is returned when a run id prefix matches several runs.
var ErrAmbiguousRunID = errors.New("ambiguous run id")

// Run is one recorded sort run.
type Run struct {
	ID          string
	SourceRoot  string
	DestRoot    string
	StartedAt   time.Time
	FinishedAt  time.Time
	Discovered  int
	Copied      int
	Failed      int
	Renamed     int
	Bytes       int64
	WalkSkipped int
	Cancelled   bool
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Failure is one file a run could not place.
type Failure struct {
	Path   string
	Bucket string
	Error  string
}

// RecordRun stores report and its failures in a single transaction.
func (s *Store) RecordRun(ctx context.Context, report *sorter.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	return retryOnBusy(ctx, func() error {
		return s.recordRun(ctx, report)
	})
}

func (s *Store) recordRun(ctx context.Context, report *sorter.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.SourceRoot,
		report.DestRoot,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Discovered,
		report.Copied,
		report.Failed,
		report.Renamed,
		report.Bytes,
		report.WalkSkipped,
		boolToInt(report.Cancelled),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(report.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_failures (run_id, path, bucket, error) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare failure insert: %w", err)
		}
		defer stmt.Close()
		for _, failure := range report.Failures {
			msg := ""
			if failure.Err != nil {
				msg = failure.Err.Error()
			}
			if _, err := stmt.ExecContext(ctx, report.RunID, failure.Path, failure.Bucket, msg); err != nil {
				return fmt.Errorf("insert failure: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun looks a run up by full id or unique prefix. A missing run returns
// nil without error.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, errors.New("run id is empty")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, nil
	case matches[0].ID == idOrPrefix || len(matches) == 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %q matches more than one run", ErrAmbiguousRunID, idOrPrefix)
	}
}

// Failures returns the failed files of a run ordered by path.
func (s *Store) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, bucket, error FROM run_failures WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Path, &f.Bucket, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}

// Prune deletes all but the newest keep runs and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw string
		cancelled   sql.NullInt64
	)
	if err := scanner.Scan(
		&run.ID,
		&run.SourceRoot,
		&run.DestRoot,
		&startedRaw,
		&finishedRaw,
		&run.Discovered,
		&run.Copied,
		&run.Failed,
		&run.Renamed,
		&run.Bytes,
		&run.WalkSkipped,
		&cancelled,
	); err != nil {
		return Run{}, err
	}
	run.StartedAt = parseTime(startedRaw)
	run.FinishedAt = parseTime(finishedRaw)
	run.Cancelled = cancelled.Valid && cancelled.Int64 != 0
	return run, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
