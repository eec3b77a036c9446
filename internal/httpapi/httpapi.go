// Package httpapi is the thin JSON-over-HTTP boundary in front of the
// library service. It owns request decoding, apperr-to-status-code
// translation, and response encoding only — every piece of domain logic
// lives in internal/service.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/vectorlib/vectordb/internal/apperr"
	"github.com/vectorlib/vectordb/internal/domain"
	"github.com/vectorlib/vectordb/internal/filter"
	"github.com/vectorlib/vectordb/internal/index"
	"github.com/vectorlib/vectordb/internal/service"
)

// Server wires the library service to net/http.ServeMux routes.
type Server struct {
	svc *service.Service
	log *slog.Logger
}

// New builds a Server around svc. A nil logger falls back to slog.Default.
func New(svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log}
}

// Routes returns the configured mux. Call ListenAndServe(addr, srv.Routes())
// or wrap it in your own middleware chain.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /libraries", s.handleCreateLibrary)
	mux.HandleFunc("GET /libraries/{id}", s.handleGetLibrary)
	mux.HandleFunc("PUT /libraries/{id}", s.handleUpdateLibrary)
	mux.HandleFunc("DELETE /libraries/{id}", s.handleDeleteLibrary)
	mux.HandleFunc("POST /libraries/{id}/documents", s.handleCreateDocument)
	mux.HandleFunc("GET /libraries/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("POST /libraries/{id}/chunks", s.handleAddChunk)
	mux.HandleFunc("GET /libraries/{id}/chunks", s.handleListChunks)
	mux.HandleFunc("PUT /libraries/{id}/chunks/{cid}", s.handleUpdateChunk)
	mux.HandleFunc("DELETE /libraries/{id}/chunks/{cid}", s.handleDeleteChunk)
	mux.HandleFunc("POST /libraries/{id}/search", s.handleSearch)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type libraryRequest struct {
	Name     string          `json:"name"`
	Metadata domain.Metadata `json:"metadata"`
}

func (s *Server) handleCreateLibrary(w http.ResponseWriter, r *http.Request) {
	var req libraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lib, err := s.svc.CreateLibrary(req.Name, req.Metadata)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (s *Server) handleGetLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	lib, err := s.svc.GetLibrary(id)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (s *Server) handleUpdateLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req libraryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lib, err := s.svc.UpdateLibrary(id, req.Name, req.Metadata)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (s *Server) handleDeleteLibrary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.svc.DeleteLibrary(id); s.handleErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createDocumentRequest struct {
	ID       uuid.UUID       `json:"id"`
	Title    string          `json:"title"`
	Metadata domain.Metadata `json:"metadata"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req createDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	docID := req.ID
	if docID == uuid.Nil {
		docID = uuid.New()
	}
	doc, err := s.svc.CreateDocument(libID, docID, req.Title, req.Metadata)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	docs, err := s.svc.ListDocuments(libID)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

type addChunkRequest struct {
	DocID     uuid.UUID       `json:"doc_id"`
	Text      string          `json:"text"`
	Embedding []float32       `json:"embedding"`
	Metadata  domain.Metadata `json:"metadata"`
}

func (s *Server) handleAddChunk(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req addChunkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	chunk, err := s.svc.AddChunk(libID, req.DocID, req.Text, req.Embedding, req.Metadata)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	offset, limit, ok := parsePagination(w, r)
	if !ok {
		return
	}
	chunks, err := s.svc.ListChunks(libID, offset, limit)
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, chunks)
}

type updateChunkRequest struct {
	Text      *string         `json:"text"`
	Embedding []float32       `json:"embedding"`
	Metadata  domain.Metadata `json:"metadata"`
}

func (s *Server) handleUpdateChunk(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	chunkID, ok := s.pathUUID(w, r, "cid")
	if !ok {
		return
	}

	raw := map[string]json.RawMessage{}
	if !decodeJSON(w, r, &raw) {
		return
	}
	var req updateChunkRequest
	if err := remarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, hasEmbedding := raw["embedding"]
	_, hasMetadata := raw["metadata"]

	chunk, err := s.svc.UpdateChunk(libID, chunkID, service.ChunkUpdate{
		Text:         req.Text,
		Embedding:    req.Embedding,
		Metadata:     req.Metadata,
		HasEmbedding: hasEmbedding,
		HasMetadata:  hasMetadata,
	})
	if s.handleErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (s *Server) handleDeleteChunk(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	chunkID, ok := s.pathUUID(w, r, "cid")
	if !ok {
		return
	}
	if err := s.svc.DeleteChunk(libID, chunkID); s.handleErr(w, err) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

type searchRequest struct {
	Embedding      []float32       `json:"embedding"`
	K              int             `json:"k"`
	Algorithm      string          `json:"algorithm"`
	MetadataFilter filter.Metadata `json:"metadata_filter"`
}

type searchResponse struct {
	Results []searchResultView `json:"results"`
}

type searchResultView struct {
	Chunk    domain.Chunk `json:"chunk"`
	Distance float64      `json:"distance"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	libID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	results, err := s.svc.Search(service.SearchRequest{
		LibraryID: libID,
		Query:     req.Embedding,
		K:         req.K,
		Algorithm: index.Algorithm(req.Algorithm),
		Filter:    req.MetadataFilter,
	})
	if s.handleErr(w, err) {
		return
	}

	view := searchResponse{Results: make([]searchResultView, len(results))}
	for i, res := range results {
		view.Results[i] = searchResultView{Chunk: res.Chunk, Distance: res.Distance}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id: "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func parsePagination(w http.ResponseWriter, r *http.Request) (offset, limit int, ok bool) {
	offset, limit = 0, 100

	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusUnprocessableEntity, "offset must be >= 0")
			return 0, 0, false
		}
		offset = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be > 0")
			return 0, 0, false
		}
		limit = n
	}
	return offset, limit, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func remarshal(raw map[string]json.RawMessage, dst any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// handleErr writes the appropriate status code for err and reports whether
// the caller should stop handling the request.
func (s *Server) handleErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		s.log.Error("unclassified error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return true
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindAlreadyExists:
		status = http.StatusBadRequest
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindPersistence, apperr.KindReplication:
		s.log.Error("backend failure", "kind", appErr.Kind, "error", appErr)
		status = http.StatusInternalServerError
	}
	writeError(w, status, appErr.Message)
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
