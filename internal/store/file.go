package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Store errors.
var (
	// ErrStoreRead means an existing store file could not be read. Callers
	// treat the store as empty.
	ErrStoreRead = errors.New("store read failed")
	// ErrPersist means the store file could not be written. The batch that
	// produced the rows must be considered lost.
	ErrPersist = errors.New("store persist failed")
)

// FileStore reads and writes rows as newline-delimited text.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the stored rows in file order with blank lines dropped.
// A missing file yields no rows and no error.
func (f *FileStore) Load() ([]string, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreRead, f.path, err)
	}
	return splitRows(string(data)), nil
}

// Persist replaces the file with rows joined by newlines. The parent
// directory is created if needed and the write goes through a temporary
// file renamed over the target.
func (f *FileStore) Persist(rows []string) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersist, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(strings.Join(rows, "\n")); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrPersist, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync %s: %v", ErrPersist, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersist, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrPersist, tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", ErrPersist, f.path, err)
	}
	return nil
}

func splitRows(data string) []string {
	lines := strings.Split(data, "\n")
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}
