package trie

import (
	"fmt"
	"sync"

	"github.com/starkware-libs/committer/common"
)

// maxParallelHashingDepth bounds how deep into the trie sibling subtrees are
// still hashed on separate goroutines. Below the bound, subtrees are small
// enough that spawning costs more than it saves.
const maxParallelHashingDepth = 8

// FilledTree is the outcome of the compute phase for one trie: the new root
// hash and every node whose content is new or changed. Nodes carried over
// unmodified are not part of it.
type FilledTree struct {
	RootHash common.Felt
	Nodes    map[NodeIndex]FilledNode
}

// CalculateFilledTree hashes the updated skeleton bottom-up. It performs no
// storage access; independent subtrees are hashed in parallel and merged at
// their lowest common ancestor.
func CalculateFilledTree(updated *UpdatedSkeleton, modifications LeafModifications, hash HashFunction) *FilledTree {
	if updated.IsEmpty() {
		return &FilledTree{RootHash: EmptyNodeHash, Nodes: map[NodeIndex]FilledNode{}}
	}
	builder := &filledTreeBuilder{
		updated:       updated,
		modifications: modifications,
		hash:          hash,
		nodes:         make(map[NodeIndex]FilledNode, updated.NumNodes()),
	}
	root := builder.fill(RootIndex(), 0)
	return &FilledTree{RootHash: root, Nodes: builder.nodes}
}

type filledTreeBuilder struct {
	updated       *UpdatedSkeleton
	modifications LeafModifications
	hash          HashFunction

	mu    sync.Mutex
	nodes map[NodeIndex]FilledNode
}

func (b *filledTreeBuilder) fill(index NodeIndex, depth int) common.Felt {
	node, exists := b.updated.GetNode(index)
	if !exists {
		panic(fmt.Sprintf("updated skeleton has no node at %s", index))
	}

	switch node := node.(type) {
	case UpdatedBinary:
		var leftHash, rightHash common.Felt
		if depth < maxParallelHashingDepth {
			wg := sync.WaitGroup{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				leftHash = b.fill(index.LeftChild(), depth+1)
			}()
			rightHash = b.fill(index.RightChild(), depth+1)
			wg.Wait()
		} else {
			leftHash = b.fill(index.LeftChild(), depth+1)
			rightHash = b.fill(index.RightChild(), depth+1)
		}
		data := BinaryData{LeftHash: leftHash, RightHash: rightHash}
		return b.record(index, calculateBinaryHash(b.hash, data), data)

	case UpdatedEdge:
		bottomHash := b.fill(node.Path.ComputeBottomIndex(index), depth+1)
		data := EdgeData{BottomHash: bottomHash, Path: node.Path}
		return b.record(index, calculateEdgeHash(b.hash, data), data)

	case UpdatedLeaf:
		leaf, exists := b.modifications[index]
		if !exists || leaf.IsEmpty() {
			panic(fmt.Sprintf("updated skeleton leaf %s has no written value", index))
		}
		return b.record(index, leaf.CalculateHash(b.hash), leaf)

	case UpdatedUnmodified:
		return node.Hash

	default:
		panic("unsupported updated skeleton node type")
	}
}

func (b *filledTreeBuilder) record(index NodeIndex, hash common.Felt, data NodeData) common.Felt {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[index] = FilledNode{Hash: hash, Data: data}
	return hash
}
