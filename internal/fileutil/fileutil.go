package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filesort/internal/classify"
	"filesort/internal/faults"
)

// CollisionPolicy selects what happens when the destination name is taken.
type CollisionPolicy string

const (
	// CollisionOverwrite replaces the existing file (last writer wins).
	CollisionOverwrite CollisionPolicy = "overwrite"
	// CollisionRename keeps the existing file and picks name_N.ext instead.
	CollisionRename CollisionPolicy = "rename"
)

// MaxRenameAttempts bounds the suffix search in rename mode.
const MaxRenameAttempts = 1000

const defaultFileMode = 0o644

// tempPattern names in-progress copies inside the bucket folder.
const tempPattern = ".filesort-*.tmp"

// ParseCollisionPolicy accepts the config and flag spellings of a policy.
func ParseCollisionPolicy(value string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(CollisionOverwrite):
		return CollisionOverwrite, nil
	case string(CollisionRename):
		return CollisionRename, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q (want overwrite or rename)", value)
	}
}

// CopyOptions tunes CopyFile.
type CopyOptions struct {
	PreserveMode bool
	Collision    CollisionPolicy
}

// CopyOutcome describes a completed copy.
type CopyOutcome struct {
	Path    string
	Bytes   int64
	Renamed bool
}

// EnsureDir creates root/label if needed. An existing directory counts as
// success, so any number of callers may race on the same label.
func EnsureDir(root, label string) (string, error) {
	if label == "" || label == "." || label == ".." || strings.ContainsRune(label, filepath.Separator) {
		return "", faults.Wrap(faults.ErrCollision, "fileutil", "ensure dir", fmt.Sprintf("invalid folder label %q", label), nil)
	}
	dir := filepath.Join(root, label)
	err := os.Mkdir(dir, 0o755)
	if err == nil {
		return dir, nil
	}
	if errors.Is(err, fs.ErrExist) {
		info, statErr := os.Stat(dir)
		if statErr == nil && info.IsDir() {
			return dir, nil
		}
		return "", faults.Wrap(faults.ErrCollision, "fileutil", "ensure dir", dir+" exists and is not a directory", err)
	}
	return "", faults.Wrap(faults.Classify(err), "fileutil", "ensure dir", dir, err)
}

// CopyFile copies src into dstDir under its own base name. Content lands in a
// temporary file first and is moved into place only once complete, so an
// existing destination is never left half-written. The modification time is
// carried over; permission bits too when opts.PreserveMode is set.
func CopyFile(src, dstDir string, opts CopyOptions) (outcome CopyOutcome, err error) {
	name := filepath.Base(src)

	in, err := os.Open(src)
	if err != nil {
		return CopyOutcome{}, copyError("open source", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return CopyOutcome{}, copyError("stat source", src, err)
	}
	if !info.Mode().IsRegular() {
		return CopyOutcome{}, faults.Wrap(faults.ErrTransient, "fileutil", "copy", src+" is not a regular file", nil)
	}

	// The temp name is independent of name so long names still fit NAME_MAX.
	tmp, err := os.CreateTemp(dstDir, tempPattern)
	if err != nil {
		return CopyOutcome{}, copyError("create temp", dstDir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, in)
	if err != nil {
		return CopyOutcome{}, copyError("write", src, err)
	}
	if err := tmp.Sync(); err != nil {
		return CopyOutcome{}, copyError("sync", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return CopyOutcome{}, copyError("close", tmpPath, err)
	}

	mode := os.FileMode(defaultFileMode)
	if opts.PreserveMode {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return CopyOutcome{}, copyError("chmod", tmpPath, err)
	}
	if err := os.Chtimes(tmpPath, time.Time{}, info.ModTime()); err != nil {
		return CopyOutcome{}, copyError("chtimes", tmpPath, err)
	}

	final := filepath.Join(dstDir, name)
	renamed := false
	switch opts.Collision {
	case CollisionRename:
		final, renamed, err = claimName(tmpPath, dstDir, name)
		if err != nil {
			return CopyOutcome{}, err
		}
		_ = os.Remove(tmpPath)
	default:
		if err := os.Rename(tmpPath, final); err != nil {
			return CopyOutcome{}, copyError("rename into place", final, err)
		}
	}

	return CopyOutcome{Path: final, Bytes: written, Renamed: renamed}, nil
}

// claimName hard-links tmpPath to the first free candidate name. Link fails
// atomically when the name exists, so concurrent writers never share a name.
func claimName(tmpPath, dstDir, name string) (string, bool, error) {
	for attempt := 0; attempt < MaxRenameAttempts; attempt++ {
		candidate := filepath.Join(dstDir, candidateName(name, attempt))
		err := os.Link(tmpPath, candidate)
		if err == nil {
			return candidate, attempt > 0, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return "", false, copyError("link into place", candidate, err)
	}
	return "", false, faults.Wrap(faults.ErrCollision, "fileutil", "copy", fmt.Sprintf("no free name for %s after %d attempts", name, MaxRenameAttempts), nil)
}

func candidateName(name string, attempt int) string {
	if attempt == 0 {
		return name
	}
	stem, ext := name, ""
	if classify.HasExtension(name) {
		ext = filepath.Ext(name)
		stem = strings.TrimSuffix(name, ext)
	}
	return fmt.Sprintf("%s_%d%s", stem, attempt, ext)
}

func copyError(operation, path string, err error) error {
	return faults.Wrap(faults.Classify(err), "fileutil", operation, path, err)
}
