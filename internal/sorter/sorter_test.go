package sorter_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"filesort/internal/faults"
	"filesort/internal/fileutil"
	"filesort/internal/sorter"
	"filesort/internal/testsupport"
	"filesort/internal/walker"
)

type copierFunc func(ctx context.Context, file walker.SourceFile, destDir string) (fileutil.CopyOutcome, error)

func (f copierFunc) Copy(ctx context.Context, file walker.SourceFile, destDir string) (fileutil.CopyOutcome, error) {
	return f(ctx, file, destDir)
}

var disk = sorter.DiskCopier{Options: fileutil.CopyOptions{PreserveMode: true}}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	slices.Sort(out)
	return out
}

func manyFiles(t *testing.T, n int) string {
	t.Helper()
	files := make(map[string]string, n)
	for i := range n {
		files[fmt.Sprintf("d%d/file%03d.dat", i%5, i)] = "x"
	}
	return testsupport.WriteTree(t, t.TempDir(), files)
}

func TestRunSortsByExtension(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{
		"a.txt":     "a",
		"sub/b.TXT": "bb",
		"c":         "ccc",
	})
	dest := filepath.Join(t.TempDir(), "sorted")

	recorder, logger := testsupport.NewLogRecorder()
	s := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest, Concurrency: 4}, sorter.WithLogger(logger))
	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"no_extension/c", "txt/a.txt", "txt/b.TXT"}
	if got := listTree(t, dest); !slices.Equal(got, want) {
		t.Fatalf("unexpected layout %v, want %v", got, want)
	}
	if got := testsupport.ReadFile(t, filepath.Join(dest, "txt", "b.TXT")); got != "bb" {
		t.Fatalf("unexpected content %q", got)
	}
	if report.Discovered != 3 || report.Copied != 3 || report.Failed != 0 || report.Bytes != 6 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Buckets["txt"] != 2 || report.Buckets["no_extension"] != 1 {
		t.Fatalf("unexpected buckets %v", report.Buckets)
	}
	if !report.OK() || report.Cancelled {
		t.Fatal("expected clean report")
	}
	if report.RunID != s.RunID() || report.FinishedAt.Before(report.StartedAt) {
		t.Fatalf("unexpected run metadata %+v", report)
	}

	if n := recorder.Count(slog.LevelInfo, "file copied"); n != 3 {
		t.Fatalf("expected 3 copy lines, got %d", n)
	}
	rec, ok := recorder.Find("sort run finished")
	if !ok || rec.Attrs["run_id"] != s.RunID() || rec.Attrs["copied"] != "3" {
		t.Fatalf("unexpected summary line %+v", rec)
	}
}

func TestRunEmptySourceCreatesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	report, err := sorter.New(sorter.Options{SourceRoot: t.TempDir(), DestRoot: dest}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Discovered != 0 {
		t.Fatalf("expected nothing discovered, got %d", report.Discovered)
	}
	if entries, err := os.ReadDir(dest); err != nil || len(entries) != 0 {
		t.Fatalf("expected empty destination, entries=%v err=%v", entries, err)
	}
}

func TestRunMissingSourceAbortsBeforeDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")
	report, err := sorter.New(sorter.Options{
		SourceRoot: filepath.Join(t.TempDir(), "missing"),
		DestRoot:   dest,
	}).Run(context.Background())
	if !errors.Is(err, faults.ErrSetup) {
		t.Fatalf("expected setup error, got %v", err)
	}
	if report != nil {
		t.Fatalf("expected no report, got %+v", report)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, fs.ErrNotExist) {
		t.Fatalf("destination should not be created, stat err=%v", statErr)
	}
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	cases := map[string]sorter.Options{
		"no source":   {DestRoot: t.TempDir()},
		"no dest":     {SourceRoot: t.TempDir()},
		"negative":    {SourceRoot: t.TempDir(), DestRoot: t.TempDir(), Concurrency: -1},
		"too many":    {SourceRoot: t.TempDir(), DestRoot: t.TempDir(), Concurrency: sorter.MaxConcurrency + 1},
		"bad policy":  {SourceRoot: t.TempDir(), DestRoot: t.TempDir(), Collision: "skip"},
		"neg timeout": {SourceRoot: t.TempDir(), DestRoot: t.TempDir(), Deadline: -time.Second},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := sorter.New(opts).Run(context.Background()); !errors.Is(err, faults.ErrSetup) {
				t.Fatalf("expected setup error, got %v", err)
			}
		})
	}
}

func TestRunCollisionOverwriteKeepsOneFile(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{
		"x/report.pdf": "one",
		"y/report.pdf": "two",
	})
	dest := t.TempDir()
	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := listTree(t, dest); !slices.Equal(got, []string{"pdf/report.pdf"}) {
		t.Fatalf("unexpected layout %v", got)
	}
	content := testsupport.ReadFile(t, filepath.Join(dest, "pdf", "report.pdf"))
	if content != "one" && content != "two" {
		t.Fatalf("expected one complete source, got %q", content)
	}
	if report.Copied != 2 || report.Failed != 0 || report.Renamed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestRunCollisionRenameKeepsBoth(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{
		"x/report.pdf": "one",
		"y/report.pdf": "two",
	})
	dest := t.TempDir()
	report, err := sorter.New(sorter.Options{
		SourceRoot: src,
		DestRoot:   dest,
		Collision:  fileutil.CollisionRename,
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := listTree(t, dest); !slices.Equal(got, []string{"pdf/report.pdf", "pdf/report_1.pdf"}) {
		t.Fatalf("unexpected layout %v", got)
	}
	contents := []string{
		testsupport.ReadFile(t, filepath.Join(dest, "pdf", "report.pdf")),
		testsupport.ReadFile(t, filepath.Join(dest, "pdf", "report_1.pdf")),
	}
	slices.Sort(contents)
	if !slices.Equal(contents, []string{"one", "two"}) {
		t.Fatalf("expected both sources kept, got %v", contents)
	}
	if report.Renamed != 1 {
		t.Fatalf("expected one renamed copy, got %d", report.Renamed)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{
		"keep1.txt": "1",
		"gone.txt":  "2",
		"keep2.md":  "3",
		"denied.go": "4",
	})
	src, err := filepath.EvalSymlinks(src)
	if err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	copier := copierFunc(func(ctx context.Context, file walker.SourceFile, dir string) (fileutil.CopyOutcome, error) {
		switch file.Name {
		case "gone.txt":
			// Removed after discovery.
			if err := os.Remove(file.Path); err != nil {
				return fileutil.CopyOutcome{}, err
			}
		case "denied.go":
			return fileutil.CopyOutcome{}, &fs.PathError{Op: "open", Path: file.Path, Err: fs.ErrPermission}
		}
		return disk.Copy(ctx, file, dir)
	})

	recorder, logger := testsupport.NewLogRecorder()
	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest},
		sorter.WithCopier(copier), sorter.WithLogger(logger)).Run(context.Background())
	if err != nil {
		t.Fatalf("per-file failures must not fail the run: %v", err)
	}
	if report.Copied != 2 || report.Failed != 2 || report.OK() {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := listTree(t, dest); !slices.Equal(got, []string{"md/keep2.md", "txt/keep1.txt"}) {
		t.Fatalf("unexpected layout %v", got)
	}

	// Failures are sorted by path.
	if report.Failures[0].Path != filepath.Join(src, "denied.go") || report.Failures[1].Path != filepath.Join(src, "gone.txt") {
		t.Fatalf("unexpected failures %+v", report.Failures)
	}
	if !errors.Is(report.Failures[0].Err, faults.ErrPermission) {
		t.Fatalf("expected permission failure, got %v", report.Failures[0].Err)
	}
	if !errors.Is(report.Failures[1].Err, faults.ErrNotFound) {
		t.Fatalf("expected not-found failure, got %v", report.Failures[1].Err)
	}

	if n := recorder.Count(slog.LevelError, "file copy failed"); n != 2 {
		t.Fatalf("expected 2 failure lines, got %d", n)
	}
	rec, _ := recorder.Find("file copy failed")
	if rec.Attrs["error_hint"] == "" || rec.Attrs["source"] == "" {
		t.Fatalf("failure line missing context %+v", rec)
	}
	if recorder.Count(slog.LevelWarn, "sort run finished with failures") != 1 {
		t.Fatal("expected warning summary")
	}
}

func TestRunBucketBlockedByFile(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a", "b.md": "b"})
	dest := testsupport.WriteTree(t, t.TempDir(), map[string]string{"txt": "not a directory"})

	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Copied != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if !errors.Is(report.Failures[0].Err, faults.ErrCollision) {
		t.Fatalf("expected collision failure, got %v", report.Failures[0].Err)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const limit = 4
	src := manyFiles(t, 40)
	var inflight, peak atomic.Int32
	copier := copierFunc(func(ctx context.Context, file walker.SourceFile, dir string) (fileutil.CopyOutcome, error) {
		n := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return disk.Copy(ctx, file, dir)
	})

	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: t.TempDir(), Concurrency: limit},
		sorter.WithCopier(copier)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Copied != 40 {
		t.Fatalf("expected 40 copies, got %d", report.Copied)
	}
	if p := peak.Load(); p > limit || p < 2 {
		t.Fatalf("expected between 2 and %d copies in flight, peak was %d", limit, p)
	}
}

func TestRunCancellationReturnsPartialReport(t *testing.T) {
	src := manyFiles(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	copier := copierFunc(func(ctx context.Context, file walker.SourceFile, dir string) (fileutil.CopyOutcome, error) {
		if calls.Add(1) == 3 {
			cancel()
		}
		return disk.Copy(ctx, file, dir)
	})

	dest := t.TempDir()
	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest, Concurrency: 1},
		sorter.WithCopier(copier)).Run(ctx)
	if !errors.Is(err, faults.ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if report == nil || !report.Cancelled {
		t.Fatalf("expected cancelled report, got %+v", report)
	}
	// The copy in flight when cancel fired still completes.
	if report.Copied != 3 {
		t.Fatalf("expected 3 completed copies, got %d", report.Copied)
	}
	if n := len(listTree(t, dest)); n != 3 {
		t.Fatalf("expected written files to stay, found %d", n)
	}
}

func TestRunCancelAfterLastFileIsNotCancelled(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{"only.txt": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The walker has already handed out its only file when cancel fires.
	copier := copierFunc(func(ctx context.Context, file walker.SourceFile, dir string) (fileutil.CopyOutcome, error) {
		cancel()
		return disk.Copy(ctx, file, dir)
	})
	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: t.TempDir(), Concurrency: 2},
		sorter.WithCopier(copier)).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Cancelled || report.Copied != 1 || !report.OK() {
		t.Fatalf("expected a complete run, got %+v", report)
	}
}

func TestRunLongFileName(t *testing.T) {
	name := strings.Repeat("a", 240) + ".txt"
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{name: "long"})

	for _, policy := range []fileutil.CollisionPolicy{fileutil.CollisionOverwrite, fileutil.CollisionRename} {
		t.Run(string(policy), func(t *testing.T) {
			dest := t.TempDir()
			report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest, Concurrency: 2, Collision: policy}).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Copied != 1 || report.Failed != 0 {
				t.Fatalf("expected one copy, got %+v", report)
			}
			if got := testsupport.ReadFile(t, filepath.Join(dest, "txt", name)); got != "long" {
				t.Fatalf("unexpected content %q", got)
			}
		})
	}
}

func TestRunDeadline(t *testing.T) {
	src := manyFiles(t, 30)
	copier := copierFunc(func(ctx context.Context, file walker.SourceFile, dir string) (fileutil.CopyOutcome, error) {
		time.Sleep(20 * time.Millisecond)
		return disk.Copy(ctx, file, dir)
	})
	report, err := sorter.New(sorter.Options{
		SourceRoot:  src,
		DestRoot:    t.TempDir(),
		Concurrency: 1,
		Deadline:    50 * time.Millisecond,
	}, sorter.WithCopier(copier)).Run(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if !report.Cancelled || report.Copied >= 30 {
		t.Fatalf("expected partial cancelled report, got copied=%d cancelled=%v", report.Copied, report.Cancelled)
	}
}

func TestRunSkipsDestinationInsideSource(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a", "b/c.md": "c"})
	dest := filepath.Join(src, "sorted")

	for i := range 2 {
		report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: dest}).Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if report.Discovered != 2 {
			t.Fatalf("run %d: expected 2 files, got %d", i, report.Discovered)
		}
	}
	if got := listTree(t, dest); !slices.Equal(got, []string{"md/c.md", "txt/a.txt"}) {
		t.Fatalf("unexpected layout %v", got)
	}
}

func TestRunCountsWalkSkips(t *testing.T) {
	src := testsupport.WriteTree(t, t.TempDir(), map[string]string{"a.txt": "a"})
	if err := os.Symlink(filepath.Join(src, "missing"), filepath.Join(src, "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	report, err := sorter.New(sorter.Options{SourceRoot: src, DestRoot: t.TempDir()}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.WalkSkipped != 1 || report.Copied != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestWithRunID(t *testing.T) {
	s := sorter.New(sorter.Options{}, sorter.WithRunID("fixed-id"))
	if s.RunID() != "fixed-id" {
		t.Fatalf("unexpected run id %q", s.RunID())
	}
	if a, b := sorter.NewRunID(), sorter.NewRunID(); a == b || len(a) != 36 {
		t.Fatalf("expected distinct uuids, got %q and %q", a, b)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(7))
	cfg.Sort.OnCollision = "rename"
	cfg.Sort.PreserveMode = false
	cfg.Sort.DeadlineSeconds = 5

	opts, err := sorter.OptionsFromConfig(cfg, "/src", "/dst")
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	if opts.Concurrency != 7 || opts.Collision != fileutil.CollisionRename || opts.PreserveMode || opts.Deadline != 5*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.SourceRoot != "/src" || opts.DestRoot != "/dst" {
		t.Fatalf("unexpected roots %+v", opts)
	}

	cfg.Sort.OnCollision = "skip"
	if _, err := sorter.OptionsFromConfig(cfg, "/src", "/dst"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
