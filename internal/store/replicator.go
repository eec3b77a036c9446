package store

import (
	"github.com/google/uuid"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
)

// Replicator wraps one leader repository plus N follower repositories
// behind the same Repository interface. Writes invoke the leader first,
// then every follower in list order; reads go only to the leader.
type Replicator struct {
	leader    Repository
	followers []Repository
}

// NewReplicator builds a leader/follower Replicator.
func NewReplicator(leader Repository, followers []Repository) *Replicator {
	return &Replicator{leader: leader, followers: followers}
}

// fanOut runs op against the leader first; if that fails, the error
// propagates and followers are never invoked. Otherwise op runs against
// every follower in list order, even after a follower fails, so one flaky
// follower doesn't starve the rest of the write attempt. The first
// follower error (if any) is wrapped as apperr.Replication and returned —
// the leader's write is never rolled back.
func (r *Replicator) fanOut(op func(Repository) error) error {
	if err := op(r.leader); err != nil {
		return err
	}

	var firstErr error
	for _, f := range r.followers {
		if err := op(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return apperr.Replication("follower failed during fan-out", firstErr)
	}
	return nil
}

// Add fans an insert-or-replace out to the leader, then every follower.
func (r *Replicator) Add(lib *domain.Library) error {
	return r.fanOut(func(repo Repository) error { return repo.Add(lib) })
}

// Get reads only from the leader.
func (r *Replicator) Get(id uuid.UUID) (*domain.Library, bool, error) {
	return r.leader.Get(id)
}

// Update fans a full overwrite out to the leader, then every follower.
func (r *Replicator) Update(lib *domain.Library) error {
	return r.fanOut(func(repo Repository) error { return repo.Update(lib) })
}

// Delete fans a delete out to the leader, then every follower.
func (r *Replicator) Delete(id uuid.UUID) error {
	return r.fanOut(func(repo Repository) error { return repo.Delete(id) })
}

// ListAll reads only from the leader.
func (r *Replicator) ListAll() ([]*domain.Library, error) {
	return r.leader.ListAll()
}

// Close closes the leader and every follower, returning the first error
// encountered (if any) after attempting to close them all.
func (r *Replicator) Close() error {
	var firstErr error
	if err := r.leader.Close(); err != nil {
		firstErr = err
	}
	for _, f := range r.followers {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Repository = (*Replicator)(nil)
