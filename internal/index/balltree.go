package index

import (
	"math"

	"github.com/vectorlib/vectordb/internal/vector"
)

// ballNode is either a leaf holding a bucket of points, or an internal node
// holding a split axis plus a left/right child. Every node carries the
// centroid and radius of its point set for ball-pruning during search.
type ballNode struct {
	idxs   []int
	center vector.Vector
	radius float64

	left, right *ballNode
}

// ballTree is a metric-ball hierarchy with centroid splits, built once over
// a fixed point set.
type ballTree struct {
	points []vector.Vector
	root   *ballNode
	n      int
}

func newBallTree(points []vector.Vector, opts Options) *ballTree {
	t := &ballTree{points: points, n: len(points)}
	if len(points) == 0 {
		return t
	}
	idxs := make([]int, len(points))
	for i := range idxs {
		idxs[i] = i
	}
	t.root = buildBallNode(idxs, points, opts.leafSize())
	return t
}

func centerAndRadius(idxs []int, points []vector.Vector) (vector.Vector, float64) {
	subset := make([]vector.Vector, len(idxs))
	for i, idx := range idxs {
		subset[i] = points[idx]
	}
	center := vector.Mean(subset)
	radius := 0.0
	for _, p := range subset {
		if d := vector.L2(p, center); d > radius {
			radius = d
		}
	}
	return center, radius
}

func buildBallNode(idxs []int, points []vector.Vector, leafSize int) *ballNode {
	if len(idxs) == 0 {
		return nil
	}

	center, radius := centerAndRadius(idxs, points)

	if len(idxs) <= leafSize {
		leaf := make([]int, len(idxs))
		copy(leaf, idxs)
		return &ballNode{idxs: leaf, center: center, radius: radius}
	}

	subset := make([]vector.Vector, len(idxs))
	for i, idx := range idxs {
		subset[i] = points[idx]
	}
	axis := vector.ArgMax(vector.Variance(subset))
	medianPos := len(idxs) / 2
	// Copy idxs: partitionByAxis mutates in place and we still need the
	// original idxs slice to compute this node's own center/radius above.
	work := make([]int, len(idxs))
	copy(work, idxs)
	partitionByAxis(work, points, axis, medianPos)
	leftIdxs := append([]int(nil), work[:medianPos]...)
	rightIdxs := append([]int(nil), work[medianPos:]...)

	return &ballNode{
		idxs:   idxs,
		center: center,
		radius: radius,
		left:   buildBallNode(leftIdxs, points, leafSize),
		right:  buildBallNode(rightIdxs, points, leafSize),
	}
}

// Nearest performs best-first recursion ordered by centroid proximity, with
// a bounded max-heap of size k and ball-pruning: a subtree whose bounding
// ball cannot contain anything closer than the current kth-best candidate
// is skipped entirely.
func (t *ballTree) Nearest(q vector.Vector, k int) []int {
	if k > t.n {
		k = t.n
	}
	if k <= 0 {
		return nil
	}
	bh := newBoundedHeap(k)
	t.search(t.root, q, bh)
	return bh.sortedIndices()
}

func (t *ballTree) search(node *ballNode, q vector.Vector, bh *boundedHeap) {
	if node == nil {
		return
	}

	distToCenter := vector.L2(q, node.center)
	if bh.full() {
		worst := sqrtWorst(bh)
		if distToCenter-node.radius > worst {
			return
		}
	}

	if node.left == nil && node.right == nil {
		for _, idx := range node.idxs {
			bh.offer(vector.SquaredL2(q, t.points[idx]), idx)
		}
		return
	}

	if node.left != nil && node.right != nil {
		leftDist := vector.L2(q, node.left.center)
		rightDist := vector.L2(q, node.right.center)
		if leftDist < rightDist {
			t.search(node.left, q, bh)
			t.search(node.right, q, bh)
		} else {
			t.search(node.right, q, bh)
			t.search(node.left, q, bh)
		}
		return
	}

	t.search(node.left, q, bh)
	t.search(node.right, q, bh)
}

// sqrtWorst returns the current kth-best distance in non-squared L2, since
// the heap stores squared distances internally but the ball-pruning rule
// compares against a non-squared radius bound.
func sqrtWorst(bh *boundedHeap) float64 {
	return math.Sqrt(bh.worst())
}

var _ Index = (*ballTree)(nil)
