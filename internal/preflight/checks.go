package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"filesort/internal/faults"
)

// CheckSource verifies the source root exists, is a directory, and can be
// listed. Failures are tagged faults.ErrSetup.
func CheckSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return faults.Wrap(faults.ErrSetup, "preflight", "source", "source folder does not exist: "+path, err)
		}
		return faults.Wrap(faults.ErrSetup, "preflight", "source", "stat "+path, err)
	}
	if !info.IsDir() {
		return faults.Wrap(faults.ErrSetup, "preflight", "source", path+" is not a directory", nil)
	}
	if err := unix.Access(path, unix.R_OK|unix.X_OK); err != nil {
		return faults.Wrap(faults.ErrSetup, "preflight", "source", "source folder is not readable: "+path, err)
	}
	return nil
}

// EnsureDestination creates the destination root if needed and verifies it
// is a writable directory. Failures are tagged faults.ErrSetup.
func EnsureDestination(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return faults.Wrap(faults.ErrSetup, "preflight", "destination", "create "+path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return faults.Wrap(faults.ErrSetup, "preflight", "destination", "stat "+path, err)
	}
	if !info.IsDir() {
		return faults.Wrap(faults.ErrSetup, "preflight", "destination", path+" is not a directory", nil)
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		return faults.Wrap(faults.ErrSetup, "preflight", "destination", "destination folder is not writable: "+path, err)
	}
	return nil
}

// CheckReadable is the reporting form of CheckSource.
func CheckReadable(name, path string) Result {
	if err := CheckSource(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read ok)", path)}
}

// CheckCreatable passes for a writable directory, or for a missing directory
// whose nearest existing ancestor is writable.
func CheckCreatable(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	case err == nil:
		return CheckDirectoryAccess(name, path)
	case !errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}

	parent := nearestExisting(path)
	if err := unix.Access(parent, unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: cannot create under %s: %v)", path, parent, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (will be created)", path)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace reports the free space on the volume holding path (or its
// nearest existing ancestor).
func CheckFreeSpace(name, path string) Result {
	target := nearestExisting(path)
	var stat unix.Statfs_t
	if err := unix.Statfs(target, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", target, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: volume is full)", target)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s free", humanize.IBytes(free))}
}

func nearestExisting(path string) string {
	current := filepath.Clean(path)
	for {
		if _, err := os.Stat(current); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return current
		}
		current = parent
	}
}
