package walker_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"filesort/internal/testsupport"
	"filesort/internal/walker"
)

func collect(ctx context.Context, w *walker.Walker) []walker.SourceFile {
	var files []walker.SourceFile
	for file := range w.Files(ctx) {
		files = append(files, file)
	}
	return files
}

func relPaths(t *testing.T, root string, files []walker.SourceFile) []string {
	t.Helper()
	out := make([]string, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	slices.Sort(out)
	return out
}

func realRoot(t *testing.T) string {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFilesFindsNestedRegularFiles(t *testing.T) {
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{
		"a.txt":           "a",
		"sub/b.TXT":       "bb",
		"c":               "ccc",
		"sub/deep/x/y.md": "y",
	})
	if err := os.MkdirAll(filepath.Join(root, "empty", "dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	w, err := walker.New(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	files := collect(context.Background(), w)

	got := relPaths(t, root, files)
	want := []string{"a.txt", "c", "sub/b.TXT", "sub/deep/x/y.md"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected files %v, want %v", got, want)
	}
	for _, f := range files {
		if !filepath.IsAbs(f.Path) {
			t.Fatalf("expected absolute path, got %q", f.Path)
		}
		if f.Name == "b.TXT" {
			if f.Size != 2 || f.Bucket() != "txt" {
				t.Fatalf("unexpected attributes %+v", f)
			}
		}
	}
	if w.Skipped() != 0 {
		t.Fatalf("expected nothing skipped, got %d", w.Skipped())
	}
}

func TestFilesIsRestartable(t *testing.T) {
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{"a.txt": "a", "b/c.go": "c"})
	w, err := walker.New(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	seq := w.Files(context.Background())

	first, second := 0, 0
	for range seq {
		first++
	}
	for range seq {
		second++
	}
	if first != 2 || second != 2 {
		t.Fatalf("expected two files per walk, got %d and %d", first, second)
	}
}

func TestFilesSymlinkPolicy(t *testing.T) {
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{"real/file.txt": "x"})
	outside := testsupport.WriteTree(t, realRoot(t), map[string]string{"target.bin": "data", "dir/inner.txt": "i"})

	links := map[string]string{
		"link.bin":  filepath.Join(outside, "target.bin"),
		"linkdir":   filepath.Join(outside, "dir"),
		"loop":      root,
		"dangling":  filepath.Join(outside, "missing"),
		"real/self": filepath.Join(root, "real", "file.txt"),
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(root, name)); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}
	}

	recorder, logger := testsupport.NewLogRecorder()
	w, err := walker.New(root, logger)
	if err != nil {
		t.Fatal(err)
	}
	files := collect(context.Background(), w)

	got := relPaths(t, root, files)
	want := []string{"link.bin", "real/file.txt", "real/self"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected files %v, want %v", got, want)
	}
	for _, f := range files {
		if f.Name == "link.bin" && (!f.Symlink || f.Size != 4) {
			t.Fatalf("expected symlinked file attributes from target, got %+v", f)
		}
	}
	// linkdir, loop, and dangling are skipped.
	if w.Skipped() != 3 {
		t.Fatalf("expected 3 skipped entries, got %d", w.Skipped())
	}
	if recorder.Count(slog.LevelWarn, "broken symlink skipped") != 1 {
		t.Fatalf("expected one broken symlink warning, got %+v", recorder.Records())
	}
}

func TestFilesSkipsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks are bypassed for root")
	}
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{
		"ok/a.txt":     "a",
		"locked/b.txt": "b",
		"z.txt":        "z",
	})
	locked := filepath.Join(root, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	recorder, logger := testsupport.NewLogRecorder()
	w, err := walker.New(root, logger)
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(t, root, collect(context.Background(), w))
	want := []string{"ok/a.txt", "z.txt"}
	if !slices.Equal(got, want) {
		t.Fatalf("unexpected files %v, want %v", got, want)
	}
	if w.Skipped() != 1 {
		t.Fatalf("expected one skipped directory, got %d", w.Skipped())
	}
	rec, ok := recorder.Find("unreadable path skipped")
	if !ok || rec.Attrs["path"] != locked {
		t.Fatalf("expected warning for locked dir, got %+v", recorder.Records())
	}
}

func TestFilesPrunesExcludedDirectory(t *testing.T) {
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{
		"a.txt":         "a",
		"out/txt/a.txt": "a",
	})
	w, err := walker.New(root, nil, filepath.Join(root, "out"))
	if err != nil {
		t.Fatal(err)
	}
	got := relPaths(t, root, collect(context.Background(), w))
	if !slices.Equal(got, []string{"a.txt"}) {
		t.Fatalf("expected excluded directory to be pruned, got %v", got)
	}
}

func TestFilesStopsEarly(t *testing.T) {
	root := testsupport.WriteTree(t, realRoot(t), map[string]string{"a": "1", "b": "2", "c": "3", "d/e": "4"})
	w, err := walker.New(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	seen := 0
	for range w.Files(context.Background()) {
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Fatalf("expected to stop after two files, saw %d", seen)
	}
	if w.Interrupted() {
		t.Fatal("a consumer break is not a cancellation")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if files := collect(ctx, w); len(files) != 0 {
		t.Fatalf("expected no files from cancelled walk, got %d", len(files))
	}
	if !w.Interrupted() {
		t.Fatal("expected cancelled walk to report interruption")
	}
	if files := collect(context.Background(), w); len(files) != 4 || w.Interrupted() {
		t.Fatalf("expected full walk of 4 files without interruption, got %d", len(files))
	}
}

func TestFilesMissingRoot(t *testing.T) {
	w, err := walker.New(filepath.Join(t.TempDir(), "missing"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if files := collect(context.Background(), w); len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
	if w.Skipped() != 1 {
		t.Fatalf("expected missing root counted as skipped, got %d", w.Skipped())
	}
}
