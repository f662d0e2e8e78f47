package trie

// SubTree pairs a node position with the view of the batch leaves falling
// beneath it. SubTrees are ephemeral navigation aids recomputed per
// recursion level during skeleton construction; they are never persisted.
type SubTree struct {
	leafIndices SortedLeafIndices
	rootIndex   NodeIndex
}

// NewSubTree creates the subtree at the given position covering the given
// batch leaves. All leaf indices must lie in the position's leaf span.
func NewSubTree(rootIndex NodeIndex, leafIndices SortedLeafIndices) SubTree {
	return SubTree{leafIndices: leafIndices, rootIndex: rootIndex}
}

// RootIndex returns the position of this subtree's root.
func (s SubTree) RootIndex() NodeIndex {
	return s.rootIndex
}

// LeafIndices returns the view of batch leaves under this subtree.
func (s SubTree) LeafIndices() SortedLeafIndices {
	return s.leafIndices
}

// IsUnmodified tests whether no batch leaf falls under this subtree, in
// which case its previous hash is reused unchanged.
func (s SubTree) IsUnmodified() bool {
	return s.leafIndices.IsEmpty()
}

// IsLeafLevel tests whether the subtree root is itself a leaf position.
func (s SubTree) IsLeafLevel() bool {
	return s.rootIndex.IsLeaf()
}

// firstLeafUnder returns the smallest leaf index in the leaf span of the
// given node.
func firstLeafUnder(index NodeIndex) NodeIndex {
	height := uint(index.Height())
	res := NodeIndex{}
	res.value.Lsh(&index.value, height)
	return res
}

// SplitLeaves partitions the leaves of this subtree into the views belonging
// to the left and right child subtree. The partition preserves count and
// relative order; both results alias the original backing array.
func (s SubTree) SplitLeaves() (SortedLeafIndices, SortedLeafIndices) {
	boundary := firstLeafUnder(s.rootIndex.RightChild())
	return s.leafIndices.DivideAtIndex(boundary)
}

// GetChildrenSubTrees materializes the two child subtrees of a binary node,
// reusing the already-split leaf views.
func (s SubTree) GetChildrenSubTrees() (SubTree, SubTree) {
	left, right := s.SplitLeaves()
	return NewSubTree(s.rootIndex.LeftChild(), left),
		NewSubTree(s.rootIndex.RightChild(), right)
}

// GetBottomSubTree follows a compressed edge from this subtree's root to its
// bottom node. It returns the subtree at the bottom together with the batch
// leaves that lie under this subtree but diverge from the edge's span. Those
// leaves were empty in the previous shape; if the edge is being split they
// materialize as fresh insertions.
func (s SubTree) GetBottomSubTree(path PathToBottom) (SubTree, []NodeIndex) {
	bottomIndex := path.ComputeBottomIndex(s.rootIndex)
	spanStart := firstLeafUnder(bottomIndex)
	spanEnd := NodeIndex{}
	spanEnd.value.AddUint64(&bottomIndex.value, 1)
	spanEnd = firstLeafUnderRaw(spanEnd, uint(bottomIndex.Height()))

	startPosition := s.leafIndices.BisectLeft(spanStart)
	endPosition := s.leafIndices.BisectLeft(spanEnd)

	previouslyEmpty := make([]NodeIndex, 0, s.leafIndices.Len()-(endPosition-startPosition))
	for i := 0; i < startPosition; i++ {
		previouslyEmpty = append(previouslyEmpty, s.leafIndices.At(i))
	}
	for i := endPosition; i < s.leafIndices.Len(); i++ {
		previouslyEmpty = append(previouslyEmpty, s.leafIndices.At(i))
	}

	bottom := NewSubTree(bottomIndex, s.leafIndices.Subslice(startPosition, endPosition))
	return bottom, previouslyEmpty
}

// firstLeafUnderRaw shifts an already-computed sibling boundary index down
// to the leaf layer. Unlike firstLeafUnder it does not consult the index's
// own height, since the boundary value may lie outside the valid index
// range (one past the last subtree of its layer).
func firstLeafUnderRaw(index NodeIndex, height uint) NodeIndex {
	res := NodeIndex{}
	res.value.Lsh(&index.value, height)
	return res
}
