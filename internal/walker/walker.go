package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"filesort/internal/classify"
	"filesort/internal/faults"
	"filesort/internal/logging"
)

// SourceFile is a regular file discovered under the source root.
type SourceFile struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
	// Symlink is set when Path is a link resolving to a regular file.
	Symlink bool
}

// Bucket returns the extension bucket the file sorts into.
func (f SourceFile) Bucket() string {
	return classify.Bucket(f.Name)
}

// Walker enumerates regular files below a root directory.
//
// Directory symlinks are never followed. Symlinks to regular files are
// reported as files. Unreadable directories, broken links, and special files
// are logged and skipped without stopping the walk.
type Walker struct {
	root    string
	exclude map[string]struct{}
	logger  *slog.Logger
	skipped atomic.Int64
	stopped atomic.Bool
}

// New prepares a walker for root. Paths in exclude are pruned from the walk
// when they are directories below root.
func New(root string, logger *slog.Logger, exclude ...string) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve walk root: %w", err)
	}
	abs = resolveLinks(abs)
	w := &Walker{
		root:    abs,
		exclude: make(map[string]struct{}, len(exclude)),
		logger:  logging.NewComponentLogger(logger, "walker"),
	}
	for _, path := range exclude {
		if path == "" {
			continue
		}
		if absExclude, err := filepath.Abs(path); err == nil {
			if absExclude = resolveLinks(absExclude); absExclude != abs {
				w.exclude[absExclude] = struct{}{}
			}
		}
	}
	return w, nil
}

// Root returns the absolute walk root.
func (w *Walker) Root() string {
	return w.root
}

// Skipped reports how many entries the most recent walk passed over.
func (w *Walker) Skipped() int {
	return int(w.skipped.Load())
}

// Interrupted reports whether the most recent walk ended because its context
// was cancelled before the tree was exhausted.
func (w *Walker) Interrupted() bool {
	return w.stopped.Load()
}

var errStopWalk = errors.New("walk stopped")

// Files returns a lazy sequence of every regular file below the root. Each
// range over the sequence performs a fresh traversal; iteration ends early
// when the consumer breaks or ctx is cancelled. Order is unspecified.
func (w *Walker) Files(ctx context.Context) iter.Seq[SourceFile] {
	return func(yield func(SourceFile) bool) {
		w.skipped.Store(0)
		w.stopped.Store(false)
		err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				w.stopped.Store(true)
				return errStopWalk
			}
			if err != nil {
				w.skipEntry(path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if _, excluded := w.exclude[path]; excluded {
					w.logger.Debug("excluded directory pruned", logging.String("path", path))
					return fs.SkipDir
				}
				return nil
			}

			file, ok := w.inspect(path, d)
			if !ok {
				return nil
			}
			if !yield(file) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			w.skipEntry(w.root, err)
		}
	}
}

func (w *Walker) inspect(path string, d fs.DirEntry) (SourceFile, bool) {
	if d.Type()&fs.ModeSymlink != 0 {
		info, err := os.Stat(path)
		if err != nil {
			w.skipped.Add(1)
			logging.WarnWithContext(w.logger, "broken symlink skipped", "walk_broken_symlink",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "fix or remove the dangling link"),
				logging.String(logging.FieldImpact, "link target not copied"),
			)
			return SourceFile{}, false
		}
		if info.IsDir() {
			w.skipped.Add(1)
			w.logger.Debug("directory symlink not followed", logging.String("path", path))
			return SourceFile{}, false
		}
		if !info.Mode().IsRegular() {
			w.skipSpecial(path, info.Mode())
			return SourceFile{}, false
		}
		return newSourceFile(path, info, true), true
	}

	if !d.Type().IsRegular() {
		w.skipSpecial(path, d.Type())
		return SourceFile{}, false
	}
	info, err := d.Info()
	if err != nil {
		// Removed between directory read and stat.
		w.skipEntry(path, err)
		return SourceFile{}, false
	}
	return newSourceFile(path, info, false), true
}

func (w *Walker) skipEntry(path string, err error) {
	w.skipped.Add(1)
	logging.WarnWithContext(w.logger, "unreadable path skipped", "walk_skip",
		logging.String("path", path),
		logging.Error(faults.Wrap(faults.ErrWalk, "walker", "read", path, err)),
		logging.String(logging.FieldErrorHint, faults.Hint(err)),
		logging.String(logging.FieldImpact, "files below this path are not copied"),
	)
}

func (w *Walker) skipSpecial(path string, mode fs.FileMode) {
	w.skipped.Add(1)
	logging.WarnWithContext(w.logger, "special file skipped", "walk_special_file",
		logging.String("path", path),
		logging.String("mode", mode.Type().String()),
		logging.String(logging.FieldErrorHint, "only regular files are sorted"),
		logging.String(logging.FieldImpact, "entry not copied"),
	)
}

// resolveLinks follows symlinks in path when it exists, so a symlinked root is
// walked and exclusions compare against real paths.
func resolveLinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

func newSourceFile(path string, info fs.FileInfo, symlink bool) SourceFile {
	return SourceFile{
		Path:    path,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
		Symlink: symlink,
	}
}
