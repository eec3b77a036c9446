package index

import (
	"sort"

	"github.com/vectorlib/vectordb/internal/vector"
)

// linearIndex is the reference oracle: an exhaustive scan over every point.
// Construction is O(1) — it retains a reference to the input points.
type linearIndex struct {
	points []vector.Vector
}

func newLinearIndex(points []vector.Vector) *linearIndex {
	return &linearIndex{points: points}
}

// Nearest computes L2 distance to every point and returns the indices of the
// k smallest, ties broken by input order. If k exceeds the point count,
// every index is returned in ascending-distance order.
func (l *linearIndex) Nearest(q vector.Vector, k int) []int {
	if k > len(l.points) {
		k = len(l.points)
	}
	cands := make([]candidate, len(l.points))
	for i, p := range l.points {
		cands[i] = candidate{dist: vector.SquaredL2(q, p), idx: i}
	}
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = cands[i].idx
	}
	return out
}

var _ Index = (*linearIndex)(nil)
