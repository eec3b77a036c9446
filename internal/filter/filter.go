// Package filter implements the metadata equality predicate applied to
// chunks during search: a chunk passes iff, for every (k, v) in the filter,
// its metadata contains key k and the stored value equals v under JSON
// structural equality.
package filter

import (
	"reflect"

	"github.com/vectorlib/vectordb/internal/domain"
)

// Metadata is an equality filter: key -> required value. An empty or nil
// filter accepts everything.
type Metadata map[string]any

// Match reports whether md satisfies f: every key in f must be present in
// md with a structurally equal value. Missing key rejects.
func (f Metadata) Match(md domain.Metadata) bool {
	for k, want := range f {
		got, ok := md[k]
		if !ok || !reflect.DeepEqual(normalize(got), normalize(want)) {
			return false
		}
	}
	return true
}

// normalize widens numeric types to float64 so that, e.g., an int filter
// value compares equal to a json.Unmarshal-produced float64 of the same
// magnitude. Everything else passes through unchanged.
func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Apply returns the subset of chunks whose metadata matches f, preserving
// order.
func Apply(chunks []domain.Chunk, f Metadata) []domain.Chunk {
	if len(f) == 0 {
		return chunks
	}
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if f.Match(c.Metadata) {
			out = append(out, c)
		}
	}
	return out
}
