// Package index implements the three interchangeable nearest-neighbour
// indices — linear scan, KD-tree, and ball-tree — plus the factory that
// dispatches between them by algorithm tag. Indices are built fresh for
// every query (see the library service); this package never caches a tree
// across calls.
package index

import (
	"fmt"

	"github.com/vectorlib/vectordb/internal/vector"
)

// Algorithm is one of the closed set of supported index tags.
type Algorithm string

const (
	AlgorithmKD     Algorithm = "kd"
	AlgorithmBall   Algorithm = "ball"
	AlgorithmLinear Algorithm = "linear"
)

// Valid reports whether a is one of the supported algorithm tags.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmKD, AlgorithmBall, AlgorithmLinear:
		return true
	default:
		return false
	}
}

// DefaultLeafSize is the maximum number of points held at a tree leaf
// before further splitting.
const DefaultLeafSize = 40

// Index supports k-nearest-neighbour lookup over a fixed set of points,
// built once and queried any number of times.
type Index interface {
	// Nearest returns the indices of the k points closest to q by
	// ascending L2 distance, ties broken by smaller original index. If k
	// exceeds the point count, every index is returned in ascending
	// order.
	Nearest(q vector.Vector, k int) []int
}

// Options configures index construction. The zero value selects defaults.
type Options struct {
	// LeafSize caps the number of points held at a KD-tree or ball-tree
	// leaf before splitting. Zero selects DefaultLeafSize.
	LeafSize int
}

func (o Options) leafSize() int {
	if o.LeafSize <= 0 {
		return DefaultLeafSize
	}
	return o.LeafSize
}

// New dispatches to the index implementation named by algorithm. Returns an
// error if algorithm is not one of {"kd","ball","linear"}.
func New(algorithm Algorithm, points []vector.Vector, opts Options) (Index, error) {
	switch algorithm {
	case AlgorithmKD:
		return newKDTree(points, opts), nil
	case AlgorithmBall:
		return newBallTree(points, opts), nil
	case AlgorithmLinear:
		return newLinearIndex(points), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm %q: supported types are kd, ball, linear", algorithm)
	}
}
