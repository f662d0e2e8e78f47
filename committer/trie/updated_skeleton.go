package trie

import (
	"fmt"

	"github.com/starkware-libs/committer/common"
)

// The updated skeleton describes the new shape of a trie after applying the
// batch's leaf modifications to the original skeleton. It is a pure
// computation: no storage access, no hashing. Shape decisions follow the
// Patricia canonical form, so a node with exactly one non-empty child always
// collapses into (or extends) an edge, and binary nodes always have two
// non-empty children.

// LeafModifications maps leaf positions to their new values. An empty leaf
// value requests deletion of the position.
type LeafModifications map[NodeIndex]Leaf

// SortedIndices returns the sorted view over the modification positions.
// The returned view owns a fresh backing array.
func (m LeafModifications) SortedIndices() SortedLeafIndices {
	indices := make([]NodeIndex, 0, len(m))
	for index := range m {
		indices = append(indices, index)
	}
	return SortLeafIndices(indices)
}

// UpdatedSkeletonNode describes the new state of one position. The variant
// set is closed.
type UpdatedSkeletonNode interface {
	isUpdatedSkeletonNode()
}

// UpdatedBinary marks a branch point of the new shape.
type UpdatedBinary struct{}

// UpdatedEdge marks an edge of the new shape.
type UpdatedEdge struct {
	Path PathToBottom
}

// UpdatedLeaf marks a position whose leaf is written by the batch; the value
// is carried by the LeafModifications.
type UpdatedLeaf struct{}

// UpdatedUnmodified marks a position carried over untouched from the
// previous shape, contributing only its known hash.
type UpdatedUnmodified struct {
	Hash common.Felt
}

func (UpdatedBinary) isUpdatedSkeletonNode()     {}
func (UpdatedEdge) isUpdatedSkeletonNode()       {}
func (UpdatedLeaf) isUpdatedSkeletonNode()       {}
func (UpdatedUnmodified) isUpdatedSkeletonNode() {}

// UpdatedSkeleton is the outcome of the update phase for one trie. An empty
// skeleton describes the empty trie.
type UpdatedSkeleton struct {
	nodes map[NodeIndex]UpdatedSkeletonNode
}

// GetNode returns the skeleton node at the given index, if any.
func (s *UpdatedSkeleton) GetNode(index NodeIndex) (UpdatedSkeletonNode, bool) {
	node, exists := s.nodes[index]
	return node, exists
}

// IsEmpty tests whether the new shape is the empty trie.
func (s *UpdatedSkeleton) IsEmpty() bool {
	return len(s.nodes) == 0
}

// NumNodes returns the number of positions described by the skeleton.
func (s *UpdatedSkeleton) NumNodes() int {
	return len(s.nodes)
}

// BuildUpdatedSkeleton applies the given modifications to the original
// skeleton. The leaf index view must cover exactly the modification keys.
func BuildUpdatedSkeleton(original *OriginalSkeleton, modifications LeafModifications, leafIndices SortedLeafIndices) *UpdatedSkeleton {
	builder := &updatedSkeletonBuilder{
		original:      original,
		modifications: modifications,
		nodes:         map[NodeIndex]UpdatedSkeletonNode{},
	}
	root := builder.update(NewSubTree(RootIndex(), leafIndices))
	builder.finalize(root)
	return &UpdatedSkeleton{nodes: builder.nodes}
}

// tempNode classifies the new state of a subtree while its final position in
// the skeleton is still undecided: an edge may still be extended by a
// collapsing ancestor, and an unmodified node may still be superseded.
type tempNode struct {
	kind       tempKind
	index      NodeIndex
	path       PathToBottom      // tempEdge: path from index to its bottom
	unmodified UnmodifiedSubTree // tempUnmodified
}

type tempKind int

const (
	tempEmpty tempKind = iota
	tempLeaf
	tempBinary
	tempEdge
	tempUnmodified
)

type updatedSkeletonBuilder struct {
	original      *OriginalSkeleton
	modifications LeafModifications
	nodes         map[NodeIndex]UpdatedSkeletonNode
}

// update computes the new state of the given subtree against its previous
// shape as recorded in the original skeleton.
func (b *updatedSkeletonBuilder) update(subtree SubTree) tempNode {
	index := subtree.RootIndex()

	if subtree.IsUnmodified() {
		node, exists := b.original.GetNode(index)
		if !exists {
			return tempNode{kind: tempEmpty, index: index}
		}
		unmodified, ok := node.(UnmodifiedSubTree)
		if !ok {
			panic(fmt.Sprintf("subtree at %s has no batch leaves but was descended into", index))
		}
		return tempNode{kind: tempUnmodified, index: index, unmodified: unmodified}
	}

	if subtree.IsLeafLevel() {
		return b.updateLeaf(index)
	}

	node, exists := b.original.GetNode(index)
	if !exists {
		// The previous shape holds nothing under this position.
		return b.buildFreshSubtree(index, subtree.LeafIndices())
	}
	switch node := node.(type) {
	case OriginalBinary:
		left, right := subtree.GetChildrenSubTrees()
		return b.nodeFromBinaryData(index, b.update(left), b.update(right))
	case OriginalEdge:
		return b.updateEdge(index, node.Path, subtree.LeafIndices())
	default:
		panic(fmt.Sprintf("inconsistent original skeleton node at %s", index))
	}
}

func (b *updatedSkeletonBuilder) updateLeaf(index NodeIndex) tempNode {
	modification, exists := b.modifications[index]
	if !exists {
		panic(fmt.Sprintf("no modification recorded for batch leaf %s", index))
	}
	if modification.IsEmpty() {
		// Deletion, or a zero write at an already-absent position; either
		// way the position holds no leaf afterwards.
		return tempNode{kind: tempEmpty, index: index}
	}
	b.nodes[index] = UpdatedLeaf{}
	return tempNode{kind: tempLeaf, index: index}
}

// updateEdge computes the new state of a subtree whose previous shape is a
// single edge from the given index along the given path. The descent
// virtually re-expands the edge one step at a time: each step splits the
// remaining leaves into the side the edge continues into and the side that
// was previously empty.
func (b *updatedSkeletonBuilder) updateEdge(index NodeIndex, path PathToBottom, leaves SortedLeafIndices) tempNode {
	if leaves.IsEmpty() {
		// All batch leaves diverged above; the remnant of the edge, down to
		// its untouched bottom, survives in the new shape.
		bottomIndex := path.ComputeBottomIndex(index)
		node, exists := b.original.GetNode(bottomIndex)
		if !exists {
			panic(fmt.Sprintf("edge bottom %s missing from original skeleton", bottomIndex))
		}
		unmodified, ok := node.(UnmodifiedSubTree)
		if !ok {
			panic(fmt.Sprintf("edge bottom %s unexpectedly modified", bottomIndex))
		}
		if path.IsEmpty() {
			// The whole edge was consumed by the descent; what remains is
			// just its untouched bottom node.
			return tempNode{kind: tempUnmodified, index: index, unmodified: unmodified}
		}
		b.nodes[bottomIndex] = UpdatedUnmodified{Hash: unmodified.Hash}
		return tempNode{kind: tempEdge, index: index, path: path}
	}

	if path.IsEmpty() {
		// The edge's bottom is reached; its previous node takes over.
		return b.update(NewSubTree(index, leaves))
	}

	bit := path.FirstStep()
	leftLeaves, rightLeaves := NewSubTree(index, leaves).SplitLeaves()
	alongLeaves, divergingLeaves := leftLeaves, rightLeaves
	if bit == 1 {
		alongLeaves, divergingLeaves = rightLeaves, leftLeaves
	}

	along := b.updateEdge(index.Child(bit), path.DropFirstStep(), alongLeaves)
	diverging := b.buildFreshSubtree(index.Child(1-bit), divergingLeaves)

	left, right := along, diverging
	if bit == 1 {
		left, right = diverging, along
	}
	return b.nodeFromBinaryData(index, left, right)
}

// buildFreshSubtree computes the state of a subtree that was entirely empty
// in the previous shape.
func (b *updatedSkeletonBuilder) buildFreshSubtree(index NodeIndex, leaves SortedLeafIndices) tempNode {
	if leaves.IsEmpty() {
		return tempNode{kind: tempEmpty, index: index}
	}
	if index.IsLeaf() {
		return b.updateLeaf(index)
	}
	subtree := NewSubTree(index, leaves)
	leftLeaves, rightLeaves := subtree.SplitLeaves()
	left := b.buildFreshSubtree(index.LeftChild(), leftLeaves)
	right := b.buildFreshSubtree(index.RightChild(), rightLeaves)
	return b.nodeFromBinaryData(index, left, right)
}

// nodeFromBinaryData derives the state of a position from its children's new
// states: both empty collapse the position away, exactly one non-empty child
// collapses it into an edge toward that child, and two non-empty children
// keep it a branch point.
func (b *updatedSkeletonBuilder) nodeFromBinaryData(index NodeIndex, left tempNode, right tempNode) tempNode {
	if left.kind == tempEmpty && right.kind == tempEmpty {
		return tempNode{kind: tempEmpty, index: index}
	}
	if left.kind != tempEmpty && right.kind != tempEmpty {
		b.finalize(left)
		b.finalize(right)
		b.nodes[index] = UpdatedBinary{}
		return tempNode{kind: tempBinary, index: index}
	}

	child, bit := left, uint64(0)
	if left.kind == tempEmpty {
		child, bit = right, 1
	}
	step := singleStepPath(bit)

	switch child.kind {
	case tempLeaf, tempBinary:
		return tempNode{kind: tempEdge, index: index, path: step}
	case tempEdge:
		return tempNode{kind: tempEdge, index: index, path: step.Concat(child.path)}
	case tempUnmodified:
		if child.unmodified.EdgePath != nil {
			// Extend across the unchanged edge. Its own node is superseded
			// by the longer edge; its bottom node survives untouched.
			edgePath := *child.unmodified.EdgePath
			bottomIndex := edgePath.ComputeBottomIndex(child.index)
			b.nodes[bottomIndex] = UpdatedUnmodified{Hash: child.unmodified.BottomHash}
			return tempNode{kind: tempEdge, index: index, path: step.Concat(edgePath)}
		}
		b.nodes[child.index] = UpdatedUnmodified{Hash: child.unmodified.Hash}
		return tempNode{kind: tempEdge, index: index, path: step}
	default:
		panic("unsupported temp node kind")
	}
}

// finalize fixes a temp node's position in the skeleton once no ancestor can
// restructure it any more.
func (b *updatedSkeletonBuilder) finalize(node tempNode) {
	switch node.kind {
	case tempEmpty, tempLeaf, tempBinary:
		// Nothing to record; leaves and branch points were recorded when
		// classified.
	case tempEdge:
		b.nodes[node.index] = UpdatedEdge{Path: node.path}
	case tempUnmodified:
		b.nodes[node.index] = UpdatedUnmodified{Hash: node.unmodified.Hash}
	default:
		panic("unsupported temp node kind")
	}
}
