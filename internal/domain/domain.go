// Package domain defines the three nested aggregate levels of user data —
// Library, Document, and Chunk — and the invariants that the library
// service enforces across them.
package domain

import (
	"github.com/google/uuid"
)

// Metadata is an arbitrary JSON-scalar-or-nested value bag attached to a
// library, document, or chunk.
type Metadata map[string]any

// Clone returns a shallow copy of m suitable for handing out of a snapshot
// without letting the caller mutate the stored map in place.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Chunk is an immutable-identity unit of retrievable content: text plus a
// dense embedding and its own metadata. Id is assigned at creation and
// never mutated.
type Chunk struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Metadata  Metadata  `json:"metadata"`
}

// Document owns an ordered sequence of chunks. Within a document, chunk ids
// are unique.
type Document struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Chunks   []Chunk   `json:"chunks"`
	Metadata Metadata  `json:"metadata"`
}

// Library owns an ordered sequence of documents. Within a library, document
// ids are unique, and transitively chunk ids are unique across all of the
// library's documents.
type Library struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Documents []Document `json:"documents"`
	Metadata  Metadata   `json:"metadata"`
}

// FindDocument returns a pointer to the document with the given id, or nil.
func (l *Library) FindDocument(id uuid.UUID) *Document {
	for i := range l.Documents {
		if l.Documents[i].ID == id {
			return &l.Documents[i]
		}
	}
	return nil
}

// FindChunk returns pointers to the document and chunk holding chunkID, or
// (nil, nil) if not found in any document of l.
func (l *Library) FindChunk(chunkID uuid.UUID) (*Document, *Chunk) {
	for di := range l.Documents {
		doc := &l.Documents[di]
		for ci := range doc.Chunks {
			if doc.Chunks[ci].ID == chunkID {
				return doc, &doc.Chunks[ci]
			}
		}
	}
	return nil, nil
}

// FlattenChunks returns every chunk across every document, preserving
// (document-order, chunk-order).
func (l *Library) FlattenChunks() []Chunk {
	var out []Chunk
	for _, doc := range l.Documents {
		out = append(out, doc.Chunks...)
	}
	return out
}
