package index

import "github.com/vectorlib/vectordb/internal/vector"

// partitionByAxis rearranges idxs in place so that the element at position
// medianPos (0-indexed) holds the value that would be there in a full
// ascending sort by points[axis], with every element before it <= that
// value and every element after it >= that value. This is a Hoare-style
// quickselect: O(n) average, no full sort, matching the "introselect-style
// partial selection" called for by the KD-tree and ball-tree build step.
func partitionByAxis(idxs []int, points []vector.Vector, axis, medianPos int) {
	lo, hi := 0, len(idxs)-1
	for lo < hi {
		pivotIdx := lo + (hi-lo)/2
		pivotVal := points[idxs[pivotIdx]][axis]
		i, j := lo, hi
		for i <= j {
			for points[idxs[i]][axis] < pivotVal {
				i++
			}
			for points[idxs[j]][axis] > pivotVal {
				j--
			}
			if i <= j {
				idxs[i], idxs[j] = idxs[j], idxs[i]
				i++
				j--
			}
		}
		if medianPos <= j {
			hi = j
		} else if medianPos >= i {
			lo = i
		} else {
			break
		}
	}
}
