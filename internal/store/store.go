package store

import (
	"errors"
	"log/slog"
	"sync"
)

// Store owns one persisted window. MergeAndPersist calls are serialized so
// concurrent batches cannot lose each other's rows.
type Store struct {
	name     string
	file     *FileStore
	key      KeyFunc
	capacity int
	logger   *slog.Logger

	mu sync.Mutex
}

// New creates a Store. name identifies the store in logs and metrics.
func New(name string, file *FileStore, key KeyFunc, capacity int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		name:     name,
		file:     file,
		key:      key,
		capacity: capacity,
		logger:   logger,
	}
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.file.Path()
}

// MergeAndPersist merges rows into the persisted window and rewrites the
// file. An unreadable file is treated as empty. On persist failure the
// error wraps ErrPersist and the file is left as it was.
func (s *Store) MergeAndPersist(rows []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.file.Load()
	if err != nil {
		if !errors.Is(err, ErrStoreRead) {
			return nil, err
		}
		s.logger.Warn("store unreadable, starting from empty window",
			slog.String("store", s.name),
			slog.String("error", err.Error()))
		existing = nil
	}

	merged := Merge(existing, rows, s.key, s.capacity)
	if err := s.file.Persist(merged); err != nil {
		s.logger.Error("store persist failed",
			slog.String("store", s.name),
			slog.String("error", err.Error()))
		return nil, err
	}

	s.logger.Debug("store updated",
		slog.String("store", s.name),
		slog.Int("rows", len(merged)))
	return merged, nil
}

// Rows returns the persisted window. An unreadable file reads as empty.
func (s *Store) Rows() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.file.Load()
	if errors.Is(err, ErrStoreRead) {
		return nil, nil
	}
	return rows, err
}
