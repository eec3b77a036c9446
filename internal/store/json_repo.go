package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
)

// JSONRepository stores an array of libraries in a single UTF-8 JSON file.
// Writes go through a *.tmp companion and an atomic rename to prevent torn
// files. On construction, if the file exists, every entry is loaded.
type JSONRepository struct {
	mu       sync.RWMutex
	path     string
	data     map[uuid.UUID]*domain.Library
	fileLock *flock.Flock
}

// NewJSONRepository opens (or creates) path as a text-JSON repository.
func NewJSONRepository(path string) (*JSONRepository, error) {
	r := &JSONRepository{
		path:     path,
		data:     make(map[uuid.UUID]*domain.Library),
		fileLock: flock.New(path + ".lock"),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *JSONRepository) load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Persistence("failed to read json repository", err)
	}
	var libs []*domain.Library
	if err := json.Unmarshal(raw, &libs); err != nil {
		return apperr.Persistence("failed to decode json repository", err)
	}
	for _, lib := range libs {
		r.data[lib.ID] = lib
	}
	return nil
}

// persist writes the full in-memory image to a *.tmp companion and renames
// it over path, guarded by an OS-level advisory lock so a second process
// sharing the same file cannot interleave its own tmp+rename with ours.
func (r *JSONRepository) persist() error {
	if err := r.fileLock.Lock(); err != nil {
		return apperr.Persistence("failed to acquire repository file lock", err)
	}
	defer func() { _ = r.fileLock.Unlock() }()

	libs := make([]*domain.Library, 0, len(r.data))
	for _, lib := range r.data {
		libs = append(libs, lib)
	}

	raw, err := json.MarshalIndent(libs, "", "  ")
	if err != nil {
		return apperr.Persistence("failed to encode json repository", err)
	}

	dir := filepath.Dir(r.path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Persistence("failed to create repository directory", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return apperr.Persistence("failed to write temp repository file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Persistence("failed to rename repository file", err)
	}
	return nil
}

// Add inserts or replaces lib by id.
func (r *JSONRepository) Add(lib *domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[lib.ID] = lib
	return r.persist()
}

// Get looks up a library by id.
func (r *JSONRepository) Get(id uuid.UUID) (*domain.Library, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.data[id]
	return lib, ok, nil
}

// Update overwrites the full aggregate for lib.ID.
func (r *JSONRepository) Update(lib *domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[lib.ID] = lib
	return r.persist()
}

// Delete removes id; missing is a no-op.
func (r *JSONRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return nil
	}
	delete(r.data, id)
	return r.persist()
}

// ListAll returns a snapshot of every library.
func (r *JSONRepository) ListAll() ([]*domain.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Library, 0, len(r.data))
	for _, lib := range r.data {
		out = append(out, lib)
	}
	return out, nil
}

// Close releases the file lock handle. The underlying data file itself
// needs no explicit close since every write opens and closes its own
// descriptor.
func (r *JSONRepository) Close() error {
	if err := r.fileLock.Unlock(); err != nil {
		return fmt.Errorf("json repository close: %w", err)
	}
	return nil
}

var _ Repository = (*JSONRepository)(nil)
