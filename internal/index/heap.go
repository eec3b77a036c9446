package index

import "container/heap"

// candidate is one entry in the bounded max-heap used by the KD-tree and
// ball-tree nearest-neighbour search. The heap keeps the k closest points
// seen so far, with the current worst (largest distance) candidate at the
// root so it can be evicted in O(log k) when a closer point is admitted.
type candidate struct {
	dist float64
	idx  int
}

// candidateHeap is a max-heap on (dist, idx): container/heap.Pop removes the
// largest distance, and among equal distances the largest index, matching
// the "worst current candidate sits at the root" convention from the design
// notes.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return less(h[j], h[i]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// boundedHeap admits at most k candidates, always keeping the k smallest
// distances seen.
type boundedHeap struct {
	k int
	h candidateHeap
}

func newBoundedHeap(k int) *boundedHeap {
	return &boundedHeap{k: k, h: make(candidateHeap, 0, k)}
}

func (b *boundedHeap) full() bool { return len(b.h) >= b.k }

// worst returns the current kth-smallest distance. Only valid when full().
func (b *boundedHeap) worst() float64 {
	return b.h[0].dist
}

// offer admits (dist, idx) if the heap isn't yet full, or replaces the worst
// candidate if dist is smaller than the current worst, or equal to it with a
// smaller idx.
func (b *boundedHeap) offer(dist float64, idx int) {
	if b.k == 0 {
		return
	}
	c := candidate{dist: dist, idx: idx}
	if !b.full() {
		heap.Push(&b.h, c)
		return
	}
	if less(c, b.h[0]) {
		heap.Pop(&b.h)
		heap.Push(&b.h, c)
	}
}

// sortedIndices drains the heap into ascending-distance order, breaking ties
// by smaller original index.
func (b *boundedHeap) sortedIndices() []int {
	cands := make([]candidate, len(b.h))
	copy(cands, b.h)
	sortCandidates(cands)
	out := make([]int, len(cands))
	for i, c := range cands {
		out[i] = c.idx
	}
	return out
}

// sortCandidates sorts ascending by distance, tie-broken by smaller index.
func sortCandidates(cands []candidate) {
	// Simple insertion sort: k is small (bounded by the search's k), and
	// this runs once per query, not per node visited.
	for i := 1; i < len(cands); i++ {
		j := i
		for j > 0 && less(cands[j], cands[j-1]) {
			cands[j], cands[j-1] = cands[j-1], cands[j]
			j--
		}
	}
}

func less(a, b candidate) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.idx < b.idx
}
