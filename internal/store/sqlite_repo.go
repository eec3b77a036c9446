package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver (no CGO)

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
)

// SQLiteRepository stores each library's JSON encoding in a single-table
// schema (libraries(id TEXT PRIMARY KEY, data TEXT NOT NULL)) with WAL
// journaling enabled. No cross-library transactions are needed: the
// aggregate boundary is the library itself.
type SQLiteRepository struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) path as an embedded-relational
// repository.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	dsn := path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, apperr.Persistence("failed to create repository directory", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperr.Persistence("failed to open sqlite repository", err)
	}

	// Single connection: the backend library must be configured for
	// concurrent single-connection use rather than a pool, matching the
	// spec's concurrency model (§5).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS libraries (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, apperr.Persistence("failed to create libraries table", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) serialize(lib *domain.Library) (string, error) {
	raw, err := json.Marshal(lib)
	if err != nil {
		return "", apperr.Persistence("failed to encode library", err)
	}
	return string(raw), nil
}

func (r *SQLiteRepository) deserialize(data string) (*domain.Library, error) {
	var lib domain.Library
	if err := json.Unmarshal([]byte(data), &lib); err != nil {
		return nil, apperr.Persistence("failed to decode library", err)
	}
	return &lib, nil
}

// Add inserts or replaces lib by id.
func (r *SQLiteRepository) Add(lib *domain.Library) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.serialize(lib)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(
		"INSERT OR REPLACE INTO libraries (id, data) VALUES (?, ?)",
		lib.ID.String(), data,
	); err != nil {
		return apperr.Persistence("failed to write library row", err)
	}
	return nil
}

// Get looks up a library by id.
func (r *SQLiteRepository) Get(id uuid.UUID) (*domain.Library, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var data string
	err := r.db.QueryRow("SELECT data FROM libraries WHERE id = ?", id.String()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Persistence("failed to read library row", err)
	}
	lib, err := r.deserialize(data)
	if err != nil {
		return nil, false, err
	}
	return lib, true, nil
}

// Update overwrites the full aggregate for lib.ID.
func (r *SQLiteRepository) Update(lib *domain.Library) error {
	return r.Add(lib)
}

// Delete removes id; missing is a no-op.
func (r *SQLiteRepository) Delete(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.db.Exec("DELETE FROM libraries WHERE id = ?", id.String()); err != nil {
		return apperr.Persistence("failed to delete library row", err)
	}
	return nil
}

// ListAll returns a snapshot of every library.
func (r *SQLiteRepository) ListAll() ([]*domain.Library, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query("SELECT data FROM libraries")
	if err != nil {
		return nil, apperr.Persistence("failed to list library rows", err)
	}
	defer rows.Close()

	var out []*domain.Library
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperr.Persistence("failed to scan library row", err)
		}
		lib, err := r.deserialize(data)
		if err != nil {
			return nil, err
		}
		out = append(out, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("failed to iterate library rows", err)
	}
	return out, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

var _ Repository = (*SQLiteRepository)(nil)
