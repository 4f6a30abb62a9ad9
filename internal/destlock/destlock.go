// Package destlock keeps two sort runs from writing into the same
// destination at once.
package destlock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"filesort/internal/faults"
)

// Lock is a held advisory lock on one destination root.
type Lock struct {
	path string
	lock *flock.Flock
}

// PathFor returns the lock file used for destRoot inside lockDir.
func PathFor(lockDir, destRoot string) (string, error) {
	abs, err := filepath.Abs(destRoot)
	if err != nil {
		return "", fmt.Errorf("resolve destination: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock"), nil
}

// Acquire takes the lock for destRoot without blocking. A destination already
// held by another process returns an error marked faults.ErrLocked.
func Acquire(lockDir, destRoot string) (*Lock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path, err := PathFor(lockDir, destRoot)
	if err != nil {
		return nil, err
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrLocked, "destlock", "acquire", destRoot+" is in use by another run", nil)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock. Releasing a nil or already released lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
