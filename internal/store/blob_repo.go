package store

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
)

// gob requires concrete types flowing through an interface{} field (every
// domain.Metadata value) to be registered up front. These cover the full
// range of JSON-scalar-or-nested values the metadata contract admits.
func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(int(0))
	gob.Register(false)
}

// BlobRepository stores the id->library mapping as a single gob-encoded
// blob. This encoding is implementation-defined and not portable across
// language runtimes (see the design notes); a port to another language
// should replace it with a well-specified binary format. Same
// tmp-then-rename atomicity rule as JSONRepository.
type BlobRepository struct {
	mu       sync.RWMutex
	path     string
	data     map[uuid.UUID]*domain.Library
	fileLock *flock.Flock
}

// NewBlobRepository opens (or creates) path as a binary-blob repository.
func NewBlobRepository(path string) (*BlobRepository, error) {
	r := &BlobRepository{
		path:     path,
		data:     make(map[uuid.UUID]*domain.Library),
		fileLock: flock.New(path + ".lock"),
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *BlobRepository) load() error {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apperr.Persistence("failed to read blob repository", err)
	}
	dec := gob.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&r.data); err != nil {
		return apperr.Persistence("failed to decode blob repository", err)
	}
	return nil
}

func (r *BlobRepository) persist() error {
	if err := r.fileLock.Lock(); err != nil {
		return apperr.Persistence("failed to acquire repository file lock", err)
	}
	defer func() { _ = r.fileLock.Unlock() }()

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(r.data); err != nil {
		return apperr.Persistence("failed to encode blob repository", err)
	}

	dir := filepath.Dir(r.path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.Persistence("failed to create repository directory", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return apperr.Persistence("failed to write temp repository file", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return apperr.Persistence("failed to rename repository file", err)
	}
	return nil
}

// Add inserts or replaces lib by id.
func (r *BlobRepository) Add(lib *domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[lib.ID] = lib
	return r.persist()
}

// Get looks up a library by id.
func (r *BlobRepository) Get(id uuid.UUID) (*domain.Library, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.data[id]
	return lib, ok, nil
}

// Update overwrites the full aggregate for lib.ID.
func (r *BlobRepository) Update(lib *domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[lib.ID] = lib
	return r.persist()
}

// Delete removes id; missing is a no-op.
func (r *BlobRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[id]; !ok {
		return nil
	}
	delete(r.data, id)
	return r.persist()
}

// ListAll returns a snapshot of every library.
func (r *BlobRepository) ListAll() ([]*domain.Library, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Library, 0, len(r.data))
	for _, lib := range r.data {
		out = append(out, lib)
	}
	return out, nil
}

// Close releases the file lock handle.
func (r *BlobRepository) Close() error {
	return r.fileLock.Unlock()
}

var _ Repository = (*BlobRepository)(nil)
