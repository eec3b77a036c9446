package service

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
	"github.com/vectorlib/vectordb/internal/filter"
	"github.com/vectorlib/vectordb/internal/index"
	"github.com/vectorlib/vectordb/internal/store"
)

func errKind(err error) string {
	return string(apperr.GetKind(err))
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	repo, err := store.NewJSONRepository(filepath.Join(dir, "data.json"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return New(repo, Options{})
}

func TestService_CreateAndGetLibrary(t *testing.T) {
	svc := newTestService(t)

	lib, err := svc.CreateLibrary("physics", domain.Metadata{"owner": "alice"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, lib.ID)

	got, err := svc.GetLibrary(lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "physics", got.Name)
}

func TestService_GetLibrary_NotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetLibrary(uuid.New())
	require.Error(t, err)
	assert.Equal(t, "not_found", errKind(err))
}

func TestService_UpdateLibrary(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("old", nil)
	require.NoError(t, err)

	updated, err := svc.UpdateLibrary(lib.ID, "new", domain.Metadata{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Name)

	got, err := svc.GetLibrary(lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Name)
}

func TestService_DeleteLibrary_CascadesAndThenNotFound(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("doomed", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteLibrary(lib.ID))
	_, err = svc.GetLibrary(lib.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", errKind(err))
}

func TestService_CreateDocument_DuplicateIDRejected(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)

	docID := uuid.New()
	_, err = svc.CreateDocument(lib.ID, docID, "intro", nil)
	require.NoError(t, err)

	_, err = svc.CreateDocument(lib.ID, docID, "dup", nil)
	require.Error(t, err)
	assert.Equal(t, "already_exists", errKind(err))
}

func TestService_AddChunk_RequiresExistingDocument(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)

	_, err = svc.AddChunk(lib.ID, uuid.New(), "text", []float32{1, 2}, nil)
	require.Error(t, err)
	assert.Equal(t, "not_found", errKind(err))
}

func TestService_ListChunks_PreservesDocOrderAndPaginates(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)

	doc1, err := svc.CreateDocument(lib.ID, uuid.New(), "d1", nil)
	require.NoError(t, err)
	doc2, err := svc.CreateDocument(lib.ID, uuid.New(), "d2", nil)
	require.NoError(t, err)

	_, err = svc.AddChunk(lib.ID, doc1.ID, "a", []float32{0, 0}, nil)
	require.NoError(t, err)
	_, err = svc.AddChunk(lib.ID, doc1.ID, "b", []float32{0, 0}, nil)
	require.NoError(t, err)
	_, err = svc.AddChunk(lib.ID, doc2.ID, "c", []float32{0, 0}, nil)
	require.NoError(t, err)

	all, err := svc.ListChunks(lib.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Text, all[1].Text, all[2].Text})

	page, err := svc.ListChunks(lib.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].Text)

	empty, err := svc.ListChunks(lib.ID, 99, 10)
	require.NoError(t, err)
	assert.Len(t, empty, 0)
}

func TestService_UpdateChunk_RequiresAtLeastOneField(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)
	doc, err := svc.CreateDocument(lib.ID, uuid.New(), "d", nil)
	require.NoError(t, err)
	chunk, err := svc.AddChunk(lib.ID, doc.ID, "orig", []float32{1, 1}, nil)
	require.NoError(t, err)

	_, err = svc.UpdateChunk(lib.ID, chunk.ID, ChunkUpdate{})
	require.Error(t, err)
	assert.Equal(t, "validation", errKind(err))

	newText := "updated"
	updated, err := svc.UpdateChunk(lib.ID, chunk.ID, ChunkUpdate{Text: &newText})
	require.NoError(t, err)
	assert.Equal(t, "updated", updated.Text)
	assert.Equal(t, []float32{1, 1}, updated.Embedding)
}

func TestService_DeleteChunk(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)
	doc, err := svc.CreateDocument(lib.ID, uuid.New(), "d", nil)
	require.NoError(t, err)
	chunk, err := svc.AddChunk(lib.ID, doc.ID, "orig", []float32{1, 1}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteChunk(lib.ID, chunk.ID))

	err = svc.DeleteChunk(lib.ID, chunk.ID)
	require.Error(t, err)
	assert.Equal(t, "not_found", errKind(err))
}

func seedSearchLibrary(t *testing.T, svc *Service) uuid.UUID {
	t.Helper()
	lib, err := svc.CreateLibrary("search-lib", nil)
	require.NoError(t, err)
	doc, err := svc.CreateDocument(lib.ID, uuid.New(), "d", nil)
	require.NoError(t, err)

	points := []struct {
		text string
		vec  []float32
		tag  string
	}{
		{"origin", []float32{0, 0}, "a"},
		{"near", []float32{1, 0}, "a"},
		{"far", []float32{10, 10}, "b"},
	}
	for _, p := range points {
		_, err := svc.AddChunk(lib.ID, doc.ID, p.text, p.vec, domain.Metadata{"tag": p.tag})
		require.NoError(t, err)
	}
	return lib.ID
}

func TestService_Search_AscendingOrderAcrossAlgorithms(t *testing.T) {
	for _, algo := range []index.Algorithm{index.AlgorithmLinear, index.AlgorithmKD, index.AlgorithmBall} {
		t.Run(string(algo), func(t *testing.T) {
			svc := newTestService(t)
			libID := seedSearchLibrary(t, svc)

			results, err := svc.Search(SearchRequest{
				LibraryID: libID,
				Query:     []float32{0, 0},
				K:         3,
				Algorithm: algo,
			})
			require.NoError(t, err)
			require.Len(t, results, 3)
			assert.Equal(t, "origin", results[0].Chunk.Text)
			assert.Equal(t, "near", results[1].Chunk.Text)
			assert.Equal(t, "far", results[2].Chunk.Text)
			assert.True(t, results[0].Distance <= results[1].Distance)
			assert.True(t, results[1].Distance <= results[2].Distance)
		})
	}
}

func TestService_Search_MetadataFilterNarrowsSurvivors(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	results, err := svc.Search(SearchRequest{
		LibraryID: libID,
		Query:     []float32{0, 0},
		K:         10,
		Algorithm: index.AlgorithmLinear,
		Filter:    filter.Metadata{"tag": "a"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "a", r.Chunk.Metadata["tag"])
	}
}

func TestService_Search_EmptySurvivorsReturnsEmptyNotError(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	results, err := svc.Search(SearchRequest{
		LibraryID: libID,
		Query:     []float32{0, 0},
		K:         5,
		Algorithm: index.AlgorithmLinear,
		Filter:    filter.Metadata{"tag": "does-not-exist"},
	})
	require.NoError(t, err)
	assert.Len(t, results, 0)
}

func TestService_Search_KLargerThanSurvivorsClamps(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	results, err := svc.Search(SearchRequest{
		LibraryID: libID,
		Query:     []float32{0, 0},
		K:         1000,
		Algorithm: index.AlgorithmLinear,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestService_Search_UnknownAlgorithmIsValidation(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	_, err := svc.Search(SearchRequest{
		LibraryID: libID,
		Query:     []float32{0, 0},
		K:         1,
		Algorithm: "bogus",
	})
	require.Error(t, err)
	assert.Equal(t, "validation", errKind(err))
}

func TestService_Search_DimensionMismatchIsValidation(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)
	doc, err := svc.CreateDocument(lib.ID, uuid.New(), "d", nil)
	require.NoError(t, err)
	_, err = svc.AddChunk(lib.ID, doc.ID, "a", []float32{1, 2}, nil)
	require.NoError(t, err)
	_, err = svc.AddChunk(lib.ID, doc.ID, "b", []float32{1, 2, 3}, nil)
	require.NoError(t, err)

	_, err = svc.Search(SearchRequest{
		LibraryID: lib.ID,
		Query:     []float32{1, 2},
		K:         2,
		Algorithm: index.AlgorithmLinear,
	})
	require.Error(t, err)
	assert.Equal(t, "validation", errKind(err))
}

func TestService_Cache_InvalidatedOnMutation(t *testing.T) {
	svc := newTestService(t)
	lib, err := svc.CreateLibrary("lib", nil)
	require.NoError(t, err)

	_, err = svc.GetLibrary(lib.ID)
	require.NoError(t, err)

	_, err = svc.UpdateLibrary(lib.ID, "renamed", nil)
	require.NoError(t, err)

	got, err := svc.GetLibrary(lib.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
}

func TestService_SetSearchDedup_ToggledAtRuntime(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	req := SearchRequest{LibraryID: libID, Query: []float32{0, 0}, K: 1, Algorithm: index.AlgorithmLinear}

	svc.SetSearchDedup(false)
	_, err := svc.Search(req)
	require.NoError(t, err)

	svc.SetSearchDedup(true)
	_, err = svc.Search(req)
	require.NoError(t, err)
}

func TestService_Search_ConcurrentIdenticalSearchesDeduplicate(t *testing.T) {
	svc := newTestService(t)
	libID := seedSearchLibrary(t, svc)

	const n = 20
	var wg sync.WaitGroup
	results := make([][]SearchResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Search(SearchRequest{
				LibraryID: libID,
				Query:     []float32{0, 0},
				K:         3,
				Algorithm: index.AlgorithmLinear,
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 3)
		assert.Equal(t, "origin", results[i][0].Chunk.Text)
	}
}

