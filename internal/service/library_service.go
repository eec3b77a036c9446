// Package service implements the library aggregate's mutation/query
// protocol: the single entry point through which every structural change
// flows load -> mutate -> persist, and the nearest-neighbour search
// orchestration that ties the index and filter packages to a loaded
// library.
package service

import (
	"fmt"
	"sort"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
	"github.com/vectorlib/vectordb/internal/filter"
	"github.com/vectorlib/vectordb/internal/index"
	"github.com/vectorlib/vectordb/internal/pagination"
	"github.com/vectorlib/vectordb/internal/store"
	"github.com/vectorlib/vectordb/internal/vector"
)

// DefaultCacheSize is the number of libraries the read-through cache keeps
// hot before evicting the least recently used entry.
const DefaultCacheSize = 128

// Options configures a Service.
type Options struct {
	// CacheSize bounds the read-through library cache. Zero selects
	// DefaultCacheSize; a negative value disables the cache entirely.
	CacheSize int

	// DisableSearchDedup turns off singleflight coalescing of identical
	// concurrent searches. Default: enabled.
	DisableSearchDedup bool
}

// Service is the single entry point for all library aggregate mutations
// and queries. Every operation loads the library from repo, applies an
// in-memory change, and persists the whole aggregate back through repo.
type Service struct {
	repo  store.Repository
	cache *lru.Cache[uuid.UUID, *domain.Library]
	group singleflight.Group
	dedup atomic.Bool
}

// New builds a Service backed by repo.
func New(repo store.Repository, opts Options) *Service {
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}

	s := &Service{repo: repo}
	s.dedup.Store(!opts.DisableSearchDedup)
	if size > 0 {
		c, err := lru.New[uuid.UUID, *domain.Library](size)
		if err == nil {
			s.cache = c
		}
	}
	return s
}

// SetSearchDedup toggles singleflight coalescing of identical concurrent
// searches at runtime, letting a running server pick up a config reload
// (spec §6.2) without a restart.
func (s *Service) SetSearchDedup(enabled bool) {
	s.dedup.Store(enabled)
}

// loadLibrary fetches a library by id, consulting the read-through cache
// first. Returns apperr.NotFound if absent.
func (s *Service) loadLibrary(id uuid.UUID) (*domain.Library, error) {
	if s.cache != nil {
		if lib, ok := s.cache.Get(id); ok {
			return lib, nil
		}
	}

	lib, ok, err := s.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("library %s not found", id))
	}
	if s.cache != nil {
		s.cache.Add(id, lib)
	}
	return lib, nil
}

// persist writes the full aggregate back through repo and invalidates the
// cache entry for its id, so the next load reflects the mutation rather
// than a stale cached copy.
func (s *Service) persist(lib *domain.Library) error {
	if err := s.repo.Update(lib); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(lib.ID)
	}
	return nil
}

// CreateLibrary creates a new library with a fresh id.
func (s *Service) CreateLibrary(name string, metadata domain.Metadata) (*domain.Library, error) {
	lib := &domain.Library{
		ID:       uuid.New(),
		Name:     name,
		Metadata: metadata,
	}
	if err := s.repo.Add(lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// GetLibrary returns the library by id.
func (s *Service) GetLibrary(id uuid.UUID) (*domain.Library, error) {
	return s.loadLibrary(id)
}

// UpdateLibrary replaces a library's name and metadata.
func (s *Service) UpdateLibrary(id uuid.UUID, name string, metadata domain.Metadata) (*domain.Library, error) {
	lib, err := s.loadLibrary(id)
	if err != nil {
		return nil, err
	}
	lib.Name = name
	lib.Metadata = metadata
	if err := s.persist(lib); err != nil {
		return nil, err
	}
	return lib, nil
}

// DeleteLibrary removes a library, cascading to its documents and chunks.
func (s *Service) DeleteLibrary(id uuid.UUID) error {
	if _, err := s.loadLibrary(id); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Remove(id)
	}
	return nil
}

// CreateDocument appends a new document to a library. docID must not
// already be present in the library.
func (s *Service) CreateDocument(libID, docID uuid.UUID, title string, metadata domain.Metadata) (*domain.Document, error) {
	lib, err := s.loadLibrary(libID)
	if err != nil {
		return nil, err
	}
	if lib.FindDocument(docID) != nil {
		return nil, apperr.AlreadyExists(fmt.Sprintf("document %s already exists", docID))
	}

	doc := domain.Document{ID: docID, Title: title, Metadata: metadata}
	lib.Documents = append(lib.Documents, doc)
	if err := s.persist(lib); err != nil {
		return nil, err
	}
	return lib.FindDocument(docID), nil
}

// ListDocuments returns a snapshot of a library's documents.
func (s *Service) ListDocuments(libID uuid.UUID) ([]domain.Document, error) {
	lib, err := s.loadLibrary(libID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Document, len(lib.Documents))
	copy(out, lib.Documents)
	return out, nil
}

// AddChunk appends a new chunk with a fresh id to an existing document.
func (s *Service) AddChunk(libID, docID uuid.UUID, text string, embedding []float32, metadata domain.Metadata) (*domain.Chunk, error) {
	lib, err := s.loadLibrary(libID)
	if err != nil {
		return nil, err
	}
	doc := lib.FindDocument(docID)
	if doc == nil {
		return nil, apperr.NotFound(fmt.Sprintf("document %s not found", docID))
	}

	chunk := domain.Chunk{
		ID:        uuid.New(),
		Text:      text,
		Embedding: embedding,
		Metadata:  metadata,
	}
	doc.Chunks = append(doc.Chunks, chunk)
	if err := s.persist(lib); err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListChunks flattens every document's chunks in doc-order, then slices
// [offset, offset+limit).
func (s *Service) ListChunks(libID uuid.UUID, offset, limit int) ([]domain.Chunk, error) {
	lib, err := s.loadLibrary(libID)
	if err != nil {
		return nil, err
	}
	return pagination.Paginate(lib.FlattenChunks(), offset, limit), nil
}

// ChunkUpdate carries the optional fields a chunk update may supply. Text is
// supplied when non-nil; Embedding and Metadata are supplied only when
// HasEmbedding / HasMetadata are set. At least one field must be supplied.
type ChunkUpdate struct {
	Text      *string
	Embedding []float32
	Metadata  domain.Metadata

	HasEmbedding bool
	HasMetadata  bool
}

// UpdateChunk overwrites only the supplied fields of an existing chunk.
func (s *Service) UpdateChunk(libID, chunkID uuid.UUID, update ChunkUpdate) (*domain.Chunk, error) {
	if update.Text == nil && !update.HasEmbedding && !update.HasMetadata {
		return nil, apperr.Validation("chunk update must supply at least one of text, embedding, metadata")
	}

	lib, err := s.loadLibrary(libID)
	if err != nil {
		return nil, err
	}
	_, chunk := lib.FindChunk(chunkID)
	if chunk == nil {
		return nil, apperr.NotFound(fmt.Sprintf("chunk %s not found", chunkID))
	}

	if update.Text != nil {
		chunk.Text = *update.Text
	}
	if update.HasEmbedding {
		chunk.Embedding = update.Embedding
	}
	if update.HasMetadata {
		chunk.Metadata = update.Metadata
	}

	if err := s.persist(lib); err != nil {
		return nil, err
	}
	return chunk, nil
}

// DeleteChunk removes a chunk from whichever document owns it.
func (s *Service) DeleteChunk(libID, chunkID uuid.UUID) error {
	lib, err := s.loadLibrary(libID)
	if err != nil {
		return err
	}
	for di := range lib.Documents {
		doc := &lib.Documents[di]
		for ci := range doc.Chunks {
			if doc.Chunks[ci].ID == chunkID {
				doc.Chunks = append(doc.Chunks[:ci], doc.Chunks[ci+1:]...)
				return s.persist(lib)
			}
		}
	}
	return apperr.NotFound(fmt.Sprintf("chunk %s not found", chunkID))
}

// SearchResult pairs a surviving chunk with its recomputed L2 distance to
// the query vector.
type SearchResult struct {
	Chunk    domain.Chunk
	Distance float64
}

// SearchRequest carries the parameters of a single search call.
type SearchRequest struct {
	LibraryID uuid.UUID
	Query     []float32
	K         int
	Algorithm index.Algorithm
	Filter    filter.Metadata
}

// Search loads the library, filters its chunks by metadata equality, builds
// the chosen index over the survivors, and returns the k nearest chunks in
// ascending-distance order. Never partially returns: any failure aborts the
// whole request.
func (s *Service) Search(req SearchRequest) ([]SearchResult, error) {
	if !req.Algorithm.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unsupported algorithm %q", req.Algorithm))
	}
	if req.K <= 0 {
		return nil, apperr.Validation("k must be > 0")
	}

	lib, err := s.loadLibrary(req.LibraryID)
	if err != nil {
		return nil, err
	}

	if s.dedup.Load() {
		key := searchCacheKey(req)
		v, err, _ := s.group.Do(key, func() (interface{}, error) {
			return s.runSearch(lib, req)
		})
		if err != nil {
			return nil, err
		}
		src := v.([]SearchResult)
		out := make([]SearchResult, len(src))
		copy(out, src)
		return out, nil
	}

	return s.runSearch(lib, req)
}

func (s *Service) runSearch(lib *domain.Library, req SearchRequest) ([]SearchResult, error) {
	survivors := filter.Apply(lib.FlattenChunks(), req.Filter)
	if len(survivors) == 0 {
		return []SearchResult{}, nil
	}

	points := make([]vector.Vector, len(survivors))
	for i, c := range survivors {
		points[i] = c.Embedding
	}
	if _, ok := vector.SameDimension(points); !ok {
		return nil, apperr.Validation("survivor embeddings do not share a common dimension")
	}

	idx, err := index.New(req.Algorithm, points, index.Options{})
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	k := req.K
	if k > len(survivors) {
		k = len(survivors)
	}

	q := vector.Vector(req.Query)
	nearest := idx.Nearest(q, k)

	out := make([]SearchResult, len(nearest))
	for i, ni := range nearest {
		c := survivors[ni]
		out[i] = SearchResult{Chunk: c, Distance: vector.L2(q, c.Embedding)}
	}
	return out, nil
}

func searchCacheKey(req SearchRequest) string {
	keys := make([]string, 0, len(req.Filter))
	for k := range req.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := fmt.Sprintf("%s|%d|%s|%v", req.LibraryID, req.K, req.Algorithm, req.Query)
	for _, k := range keys {
		key += fmt.Sprintf("|%s=%v", k, req.Filter[k])
	}
	return key
}
