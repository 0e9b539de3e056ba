package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotDirectory is returned when a store directory path names a file.
var ErrNotDirectory = errors.New("not a directory")

// DirChecker verifies that the directory holding a store file exists, or can
// be created, and accepts new files. Store writes go through a temp file in
// the same directory, so both conditions must hold.
type DirChecker struct {
	dir string
}

// NewDirChecker returns a checker for the directory containing storePath.
func NewDirChecker(storePath string) *DirChecker {
	return &DirChecker{dir: filepath.Dir(storePath)}
}

// Dir returns the checked directory.
func (d *DirChecker) Dir() string {
	return d.dir
}

// HealthCheck creates and removes a probe file in the directory.
func (d *DirChecker) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := os.Stat(d.dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(d.dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d.dir, err)
		}
	case err != nil:
		return fmt.Errorf("stat %s: %w", d.dir, err)
	case !info.IsDir():
		return fmt.Errorf("%s: %w", d.dir, ErrNotDirectory)
	}

	f, err := os.CreateTemp(d.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("write probe in %s: %w", d.dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
