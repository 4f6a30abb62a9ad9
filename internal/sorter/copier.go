package sorter

import (
	"context"

	"filesort/internal/fileutil"
	"filesort/internal/walker"
)

// FileCopier places one source file into its bucket directory.
type FileCopier interface {
	Copy(ctx context.Context, file walker.SourceFile, destDir string) (fileutil.CopyOutcome, error)
}

// DiskCopier copies through fileutil.CopyFile. A copy that has started runs
// to completion even if ctx is cancelled meanwhile.
type DiskCopier struct {
	Options fileutil.CopyOptions
}

// Copy implements FileCopier.
func (c DiskCopier) Copy(_ context.Context, file walker.SourceFile, destDir string) (fileutil.CopyOutcome, error) {
	return fileutil.CopyFile(file.Path, destDir, c.Options)
}
