package index

import "github.com/vectorlib/vectordb/internal/vector"

// kdNode is either a leaf holding a bucket of points, or an internal node
// holding exactly one pivot point plus a left/right child.
type kdNode struct {
	leaf     bool
	leafIdxs []int // leaf only

	idx  int // internal only: the pivot point's original index
	axis int // internal only: the split axis

	left, right *kdNode
}

// kdTree is an axis-aligned binary space partition with variance-based
// splits, built once over a fixed point set.
type kdTree struct {
	points []vector.Vector
	root   *kdNode
	n      int
}

func newKDTree(points []vector.Vector, opts Options) *kdTree {
	t := &kdTree{points: points, n: len(points)}
	if len(points) == 0 {
		return t
	}
	idxs := make([]int, len(points))
	for i := range idxs {
		idxs[i] = i
	}
	d := len(points[0])
	t.root = buildKDNode(idxs, points, 0, opts.leafSize(), d)
	return t
}

// buildKDNode recursively partitions idxs. Every index in idxs appears
// exactly once across the returned subtree: as a leaf member, as a node's
// pivot, or within a descendant.
func buildKDNode(idxs []int, points []vector.Vector, depth, leafSize, d int) *kdNode {
	if len(idxs) == 0 {
		return nil
	}
	if len(idxs) <= leafSize {
		leaf := make([]int, len(idxs))
		copy(leaf, idxs)
		return &kdNode{leaf: true, leafIdxs: leaf}
	}

	axis := selectSplitAxis(idxs, points, depth, d)
	medianPos := len(idxs) / 2
	partitionByAxis(idxs, points, axis, medianPos)
	medianIdx := idxs[medianPos]
	medianVal := points[medianIdx][axis]

	left := make([]int, 0, len(idxs))
	right := make([]int, 0, len(idxs))
	for _, i := range idxs {
		if i == medianIdx {
			continue
		}
		// Strictly-less goes left; equal-to-median (by convention, to keep
		// the total-set invariant consistent with duplicate split values)
		// and strictly-greater both go right.
		if points[i][axis] < medianVal {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &kdNode{
		idx:   medianIdx,
		axis:  axis,
		left:  buildKDNode(left, points, depth+1, leafSize, d),
		right: buildKDNode(right, points, depth+1, leafSize, d),
	}
}

// selectSplitAxis picks round-robin axes for small point sets (fewer than
// 4*d points) and the axis of maximum variance otherwise.
func selectSplitAxis(idxs []int, points []vector.Vector, depth, d int) int {
	if len(idxs) < 4*d {
		return depth % d
	}
	subset := make([]vector.Vector, len(idxs))
	for i, idx := range idxs {
		subset[i] = points[idx]
	}
	return vector.ArgMax(vector.Variance(subset))
}

// Nearest performs best-first-by-proximity recursion with a bounded max-heap
// of size k, pruning far subtrees whose bounding distance cannot beat the
// current kth-best candidate.
func (t *kdTree) Nearest(q vector.Vector, k int) []int {
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

func (t *kdTree) search(node *kdNode, q vector.Vector, bh *boundedHeap) {
	if node == nil {
		return
	}
	if node.leaf {
		for _, idx := range node.leafIdxs {
			bh.offer(vector.SquaredL2(q, t.points[idx]), idx)
		}
		return
	}

	pivot := t.points[node.idx]
	bh.offer(vector.SquaredL2(q, pivot), node.idx)

	axisDist := float64(q[node.axis]) - float64(pivot[node.axis])
	near, far := node.left, node.right
	if axisDist >= 0 {
		near, far = node.right, node.left
	}

	t.search(near, q, bh)
	if !bh.full() || axisDist*axisDist <= bh.worst() {
		t.search(far, q, bh)
	}
}

var _ Index = (*kdTree)(nil)
