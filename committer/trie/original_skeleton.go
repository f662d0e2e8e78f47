package trie

import (
	"context"
	"fmt"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/storage"
)

// The original skeleton is the minimal structurally-necessary view of the
// previous trie shape: every node on a path to a modified leaf, plus one
// read per unmodified sibling subtree to learn its hash, and nothing below
// an untouched subtree. It is built breadth-first; each level issues a
// single multi-get covering all subtree roots of that level, so sibling
// reads and independent branches are fetched concurrently by the storage
// layer.

// ErrRootMismatch is produced when the stored root node does not hash to the
// root the caller claims the previous batch committed. Like a missing node,
// it signals corruption and aborts the batch.
const ErrRootMismatch = common.ConstError("previous root hash does not match storage")

// TrieConfig bundles what the skeleton and filled-tree phases need to know
// about one trie: where its nodes live, how its leaves decode, and the hash
// primitive framing its nodes.
type TrieConfig struct {
	KeySpace        storage.KeySpace
	DeserializeLeaf func([]byte) (Leaf, error)
	Hash            HashFunction
}

// ClassesTrieConfig describes the single classes trie.
func ClassesTrieConfig(hash HashFunction) TrieConfig {
	return TrieConfig{
		KeySpace:        storage.ClassesTrieKeySpace(),
		DeserializeLeaf: DeserializeCompiledClassHash,
		Hash:            hash,
	}
}

// ContractsTrieConfig describes the single contracts trie.
func ContractsTrieConfig(hash HashFunction) TrieConfig {
	return TrieConfig{
		KeySpace:        storage.ContractsTrieKeySpace(),
		DeserializeLeaf: DeserializeContractState,
		Hash:            hash,
	}
}

// StorageTrieConfig describes the storage trie owned by the contract at the
// given address.
func StorageTrieConfig(hash HashFunction, address common.Felt) TrieConfig {
	return TrieConfig{
		KeySpace:        storage.StorageTrieKeySpace(address),
		DeserializeLeaf: DeserializeStorageValue,
		Hash:            hash,
	}
}

// OriginalSkeletonNode describes the previous state of one position in the
// skeleton. The variant set is closed.
type OriginalSkeletonNode interface {
	isOriginalSkeletonNode()
}

// OriginalBinary marks a branch point on a path to a modified leaf.
type OriginalBinary struct{}

// OriginalEdge marks an edge on a path to a modified leaf.
type OriginalEdge struct {
	Path PathToBottom
}

// UnmodifiedSubTree marks the root of a subtree containing no batch leaf.
// Its hash is reused unchanged. When the underlying stored node is an edge,
// its structure is retained so that a collapsing parent can extend across
// it.
type UnmodifiedSubTree struct {
	Hash common.Felt

	// Set when the stored node is an edge.
	EdgePath   *PathToBottom
	BottomHash common.Felt
}

// OriginalLeaf holds the previous value of a leaf modified by the batch.
type OriginalLeaf struct {
	Leaf Leaf
}

func (OriginalBinary) isOriginalSkeletonNode()    {}
func (OriginalEdge) isOriginalSkeletonNode()      {}
func (UnmodifiedSubTree) isOriginalSkeletonNode() {}
func (OriginalLeaf) isOriginalSkeletonNode()      {}

// OriginalSkeleton is the outcome of the read phase for one trie.
type OriginalSkeleton struct {
	nodes          map[NodeIndex]OriginalSkeletonNode
	previousLeaves map[NodeIndex]Leaf
	readIndices    map[NodeIndex]bool
}

// GetNode returns the skeleton node at the given index, if any.
func (s *OriginalSkeleton) GetNode(index NodeIndex) (OriginalSkeletonNode, bool) {
	node, exists := s.nodes[index]
	return node, exists
}

// PreviousLeaves returns the previous values of all modified leaves that
// existed in the previous shape.
func (s *OriginalSkeleton) PreviousLeaves() map[NodeIndex]Leaf {
	return s.previousLeaves
}

// ReadIndices returns the set of node positions that exist in the previous
// shape and were read while building the skeleton. Positions absent from
// the new shape afterwards are exactly the nodes to delete.
func (s *OriginalSkeleton) ReadIndices() map[NodeIndex]bool {
	return s.readIndices
}

func newEmptyOriginalSkeleton() *OriginalSkeleton {
	return &OriginalSkeleton{
		nodes:          map[NodeIndex]OriginalSkeletonNode{},
		previousLeaves: map[NodeIndex]Leaf{},
		readIndices:    map[NodeIndex]bool{},
	}
}

// BuildOriginalSkeleton reads the minimal previous-shape view required to
// apply the batch described by the given sorted leaf indices. A previous
// root hash of zero denotes an empty previous trie and requires no reads.
func BuildOriginalSkeleton(ctx context.Context, store storage.Storage, config TrieConfig, previousRoot common.Felt, leafIndices SortedLeafIndices) (*OriginalSkeleton, error) {
	skeleton := newEmptyOriginalSkeleton()
	if previousRoot.IsZero() || leafIndices.IsEmpty() {
		return skeleton, nil
	}

	subtrees := []SubTree{NewSubTree(RootIndex(), leafIndices)}
	atRoot := true
	for len(subtrees) > 0 {
		keys := make([][]byte, len(subtrees))
		for i, subtree := range subtrees {
			indexBytes := subtree.RootIndex().Bytes32()
			if subtree.IsLeafLevel() {
				keys[i] = config.KeySpace.LeafKey(indexBytes)
			} else {
				keys[i] = config.KeySpace.InnerNodeKey(indexBytes)
			}
		}
		values, err := store.MultiGet(ctx, keys)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch skeleton level: %w", err)
		}

		next := make([]SubTree, 0, 2*len(subtrees))
		for i, subtree := range subtrees {
			index := subtree.RootIndex()
			if values[i] == nil {
				return nil, fmt.Errorf("%w: index %s", storage.ErrMissingNode, index)
			}
			skeleton.readIndices[index] = true

			if subtree.IsLeafLevel() {
				if err := skeleton.addLeaf(config, subtree, values[i]); err != nil {
					return nil, err
				}
				continue
			}

			node, err := DeserializeInnerNode(values[i])
			if err != nil {
				return nil, fmt.Errorf("failed to decode node at %s: %v", index, err)
			}
			if atRoot {
				atRoot = false
				if hash := storedNodeHash(config.Hash, node); hash.Cmp(previousRoot) != 0 {
					return nil, fmt.Errorf("%w: stored %s, expected %s", ErrRootMismatch, hash, previousRoot)
				}
			}

			if subtree.IsUnmodified() {
				skeleton.nodes[index] = unmodifiedFromStored(config.Hash, node)
				continue
			}

			switch node := node.(type) {
			case StoredBinary:
				skeleton.nodes[index] = OriginalBinary{}
				left, right := subtree.GetChildrenSubTrees()
				next = append(next, left, right)
			case StoredEdge:
				skeleton.nodes[index] = OriginalEdge{Path: node.Path}
				bottom, _ := subtree.GetBottomSubTree(node.Path)
				next = append(next, bottom)
			}
		}
		subtrees = next
	}
	return skeleton, nil
}

func (s *OriginalSkeleton) addLeaf(config TrieConfig, subtree SubTree, data []byte) error {
	index := subtree.RootIndex()
	leaf, err := config.DeserializeLeaf(data)
	if err != nil {
		return fmt.Errorf("failed to decode leaf at %s: %v", index, err)
	}
	if subtree.IsUnmodified() {
		// A sibling leaf read only to learn its hash.
		s.nodes[index] = UnmodifiedSubTree{Hash: leaf.CalculateHash(config.Hash)}
		return nil
	}
	s.nodes[index] = OriginalLeaf{Leaf: leaf}
	s.previousLeaves[index] = leaf
	return nil
}

func unmodifiedFromStored(hash HashFunction, node StoredInnerNode) UnmodifiedSubTree {
	switch node := node.(type) {
	case StoredBinary:
		return UnmodifiedSubTree{Hash: node.Hash}
	case StoredEdge:
		path := node.Path
		return UnmodifiedSubTree{
			Hash:       calculateEdgeHash(hash, EdgeData{BottomHash: node.BottomHash, Path: node.Path}),
			EdgePath:   &path,
			BottomHash: node.BottomHash,
		}
	default:
		panic("unsupported stored node type")
	}
}

func storedNodeHash(hash HashFunction, node StoredInnerNode) common.Felt {
	switch node := node.(type) {
	case StoredBinary:
		return node.Hash
	case StoredEdge:
		return calculateEdgeHash(hash, EdgeData{BottomHash: node.BottomHash, Path: node.Path})
	default:
		panic("unsupported stored node type")
	}
}
