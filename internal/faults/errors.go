package faults

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

var (
	ErrSetup      = errors.New("setup error")
	ErrWalk       = errors.New("walk error")
	ErrNotFound   = errors.New("not found")
	ErrPermission = errors.New("permission denied")
	ErrNoSpace    = errors.New("no space left")
	ErrCollision  = errors.New("path collision")
	ErrTransient  = errors.New("transient failure")
	ErrCancelled  = errors.New("cancelled")
	ErrLocked     = errors.New("destination locked")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps raw filesystem errors onto a marker. Errors already carrying a
// marker keep it.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsMarked(err):
		return markerOf(err)
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return ErrNoSpace
	case errors.Is(err, syscall.ENOTDIR), errors.Is(err, fs.ErrExist):
		return ErrCollision
	default:
		return ErrTransient
	}
}

// IsMarked reports whether err already carries one of the package markers.
func IsMarked(err error) bool {
	return markerOf(err) != nil
}

// Hint returns a short operator-facing remediation for err.
func Hint(err error) string {
	switch Classify(err) {
	case ErrSetup:
		return "check that the source exists and the destination is writable"
	case ErrNotFound:
		return "source file disappeared during the run"
	case ErrPermission:
		return "check file and directory permissions"
	case ErrNoSpace:
		return "free space on the destination volume"
	case ErrCollision:
		return "a non-directory occupies the destination folder path"
	case ErrCancelled:
		return "run was interrupted; re-run to copy remaining files"
	case ErrLocked:
		return "another run is writing to this destination"
	default:
		return "check logs for details"
	}
}

var markers = []error{
	ErrSetup,
	ErrWalk,
	ErrNotFound,
	ErrPermission,
	ErrNoSpace,
	ErrCollision,
	ErrCancelled,
	ErrLocked,
	ErrTransient,
}

func markerOf(err error) error {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return nil
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failure"
	}
	return strings.Join(parts, ": ")
}
