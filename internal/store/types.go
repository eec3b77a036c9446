// Package store provides the repository backends that persist the library
// aggregate: text-JSON, binary-blob (gob), and embedded-relational
// (SQLite) encodings, plus the leader/follower replicator that fans write
// operations out across them.
package store

import (
	"github.com/google/uuid"

	"github.com/vectorlib/vectordb/internal/domain"
)

// Repository is the contract every backend implements. add is
// idempotent insert-or-replace by id; update is a full overwrite; delete
// of a missing id is a no-op, not an error.
type Repository interface {
	Add(lib *domain.Library) error
	Get(id uuid.UUID) (*domain.Library, bool, error)
	Update(lib *domain.Library) error
	Delete(id uuid.UUID) error
	ListAll() ([]*domain.Library, error)
	Close() error
}
