package trie

import (
	"sort"

	"golang.org/x/exp/slices"
)

// SortedLeafIndices is an ascending, duplicate-free view over the leaf
// indices touched by one batch. Views are borrowed sub-slices of one
// caller-owned backing array; they are never mutated and never outlive the
// batch they describe.
type SortedLeafIndices struct {
	indices []NodeIndex
}

// SortLeafIndices takes ownership of the given indices, sorts them in place,
// and returns the full view over them. The caller must guarantee the indices
// are duplicate-free leaf positions.
func SortLeafIndices(indices []NodeIndex) SortedLeafIndices {
	slices.SortFunc(indices, func(a, b NodeIndex) int { return a.Cmp(b) })
	return SortedLeafIndices{indices: indices}
}

// Len returns the number of indices in the view.
func (s SortedLeafIndices) Len() int {
	return len(s.indices)
}

// IsEmpty tests whether the view covers no indices.
func (s SortedLeafIndices) IsEmpty() bool {
	return len(s.indices) == 0
}

// At returns the index at the given position.
func (s SortedLeafIndices) At(position int) NodeIndex {
	return s.indices[position]
}

// BisectLeft returns the position of the first index not smaller than the
// given value.
func (s SortedLeafIndices) BisectLeft(value NodeIndex) int {
	return sort.Search(len(s.indices), func(i int) bool {
		return s.indices[i].Cmp(value) >= 0
	})
}

// BisectRight returns the position of the first index strictly greater than
// the given value.
func (s SortedLeafIndices) BisectRight(value NodeIndex) int {
	return sort.Search(len(s.indices), func(i int) bool {
		return s.indices[i].Cmp(value) > 0
	})
}

// Subslice returns the view over positions [from, to).
func (s SortedLeafIndices) Subslice(from int, to int) SortedLeafIndices {
	return SortedLeafIndices{indices: s.indices[from:to]}
}

// DivideAtIndex splits the view into the part smaller than the given value
// and the rest. Both results alias the same backing array.
func (s SortedLeafIndices) DivideAtIndex(value NodeIndex) (SortedLeafIndices, SortedLeafIndices) {
	cut := s.BisectLeft(value)
	return s.Subslice(0, cut), s.Subslice(cut, s.Len())
}
