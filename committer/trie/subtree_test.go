package trie

import (
	"math/big"
	"testing"

	"github.com/starkware-libs/committer/common"
)

func leafAt(key uint64) NodeIndex {
	return LeafIndexFromKey(common.NewFeltFromUint64(key))
}

func leafAtBig(key *big.Int) NodeIndex {
	return LeafIndexFromKey(common.NewFeltFromBigInt(key))
}

func TestSortLeafIndices_ProducesAscendingOrder(t *testing.T) {
	indices := []NodeIndex{leafAt(9), leafAt(2), leafAt(100), leafAt(0)}
	sorted := SortLeafIndices(indices)
	if got, want := sorted.Len(), 4; got != want {
		t.Fatalf("unexpected number of indices, wanted %d, got %d", want, got)
	}
	for i := 1; i < sorted.Len(); i++ {
		if sorted.At(i-1).Cmp(sorted.At(i)) >= 0 {
			t.Errorf("indices not in ascending order at position %d", i)
		}
	}
}

func TestSortedLeafIndices_Bisect(t *testing.T) {
	sorted := SortLeafIndices([]NodeIndex{leafAt(1), leafAt(3), leafAt(3 + 1), leafAt(7)})
	if got, want := sorted.BisectLeft(leafAt(3)), 1; got != want {
		t.Errorf("unexpected bisect-left position, wanted %d, got %d", want, got)
	}
	if got, want := sorted.BisectRight(leafAt(3)), 2; got != want {
		t.Errorf("unexpected bisect-right position, wanted %d, got %d", want, got)
	}
	if got, want := sorted.BisectLeft(leafAt(0)), 0; got != want {
		t.Errorf("unexpected position below all entries, wanted %d, got %d", want, got)
	}
	if got, want := sorted.BisectLeft(leafAt(8)), 4; got != want {
		t.Errorf("unexpected position above all entries, wanted %d, got %d", want, got)
	}
}

func TestSortedLeafIndices_DivideAtIndexPreservesAllEntries(t *testing.T) {
	sorted := SortLeafIndices([]NodeIndex{leafAt(1), leafAt(3), leafAt(5), leafAt(7)})
	below, rest := sorted.DivideAtIndex(leafAt(4))
	if got, want := below.Len()+rest.Len(), sorted.Len(); got != want {
		t.Errorf("division lost entries, wanted %d, got %d", want, got)
	}
	if got, want := below.Len(), 2; got != want {
		t.Errorf("unexpected size of lower part, wanted %d, got %d", want, got)
	}
	if got, want := rest.At(0), leafAt(5); got != want {
		t.Errorf("unexpected first entry of upper part, wanted %v, got %v", want, got)
	}
}

func TestSubTree_SplitLeavesPartitionsBySubtreeSpan(t *testing.T) {
	// keys 0 and 1 fall under the root's left child, keys of the upper half
	// under the right child
	upperHalf := new(big.Int).Lsh(big.NewInt(1), TreeHeight-1)
	leaves := SortLeafIndices([]NodeIndex{
		leafAt(0), leafAt(1), leafAtBig(upperHalf),
		leafAtBig(new(big.Int).Add(upperHalf, big.NewInt(5))),
	})
	tree := NewSubTree(RootIndex(), leaves)
	left, right := tree.SplitLeaves()
	if got, want := left.Len(), 2; got != want {
		t.Errorf("unexpected number of left leaves, wanted %d, got %d", want, got)
	}
	if got, want := right.Len(), 2; got != want {
		t.Errorf("unexpected number of right leaves, wanted %d, got %d", want, got)
	}
	if got, want := right.At(0), leafAtBig(upperHalf); got != want {
		t.Errorf("unexpected first right leaf, wanted %v, got %v", want, got)
	}
}

func TestSubTree_GetChildrenSubTreesUseChildPositions(t *testing.T) {
	tree := NewSubTree(RootIndex(), SortLeafIndices([]NodeIndex{leafAt(0)}))
	left, right := tree.GetChildrenSubTrees()
	if got, want := left.RootIndex(), RootIndex().LeftChild(); got != want {
		t.Errorf("unexpected left child position, wanted %v, got %v", want, got)
	}
	if got, want := right.RootIndex(), RootIndex().RightChild(); got != want {
		t.Errorf("unexpected right child position, wanted %v, got %v", want, got)
	}
	if !right.IsUnmodified() {
		t.Errorf("the right child should carry no batch leaves")
	}
}

func TestSubTree_GetBottomSubTreeSeparatesDivergingLeaves(t *testing.T) {
	// the edge from the root to the leaf of key 0 spans exactly that leaf;
	// any other key under the root diverges from it
	path := GetPathToDescendant(RootIndex(), leafAt(0))
	leaves := SortLeafIndices([]NodeIndex{leafAt(0), leafAt(6)})
	tree := NewSubTree(RootIndex(), leaves)

	bottom, previouslyEmpty := tree.GetBottomSubTree(path)
	if got, want := bottom.RootIndex(), leafAt(0); got != want {
		t.Errorf("unexpected bottom position, wanted %v, got %v", want, got)
	}
	if got, want := bottom.LeafIndices().Len(), 1; got != want {
		t.Fatalf("unexpected number of bottom leaves, wanted %d, got %d", want, got)
	}
	if got, want := len(previouslyEmpty), 1; got != want {
		t.Fatalf("unexpected number of diverging leaves, wanted %d, got %d", want, got)
	}
	if got, want := previouslyEmpty[0], leafAt(6); got != want {
		t.Errorf("unexpected diverging leaf, wanted %v, got %v", want, got)
	}
}

func TestSubTree_GetBottomSubTreeKeepsLeavesInsideTheSpan(t *testing.T) {
	// an edge of all-ones steps ends at the highest leaf; leaves on the way
	// down that share the edge's span stay with the bottom subtree
	path, err := NewPathToBottom(common.NewFeltFromUint64(0b11), 2)
	if err != nil {
		t.Fatalf("failed to create path: %v", err)
	}
	// bottom of the edge sits two levels below the root at index 0b111
	tree := NewSubTree(RootIndex(), SortLeafIndices([]NodeIndex{
		leafAt(0),
		leafAtBig(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), TreeHeight), big.NewInt(1))),
	}))
	bottom, previouslyEmpty := tree.GetBottomSubTree(path)
	if got, want := bottom.RootIndex(), NewNodeIndex(0b111); got != want {
		t.Errorf("unexpected bottom position, wanted %v, got %v", want, got)
	}
	if got, want := bottom.LeafIndices().Len(), 1; got != want {
		t.Errorf("unexpected number of bottom leaves, wanted %d, got %d", want, got)
	}
	if got, want := len(previouslyEmpty), 1; got != want {
		t.Fatalf("unexpected number of diverging leaves, wanted %d, got %d", want, got)
	}
	if got, want := previouslyEmpty[0], leafAt(0); got != want {
		t.Errorf("unexpected diverging leaf, wanted %v, got %v", want, got)
	}
}
