package trie

import (
	"context"

	"golang.org/x/exp/slices"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/storage"
)

// TrieUpdate is the result of committing one batch against one trie: the new
// root, the nodes to write, the positions to delete, and the previous values
// of the modified leaves.
type TrieUpdate struct {
	RootHash       common.Felt
	FilledNodes    map[NodeIndex]FilledNode
	DeletedIndices []NodeIndex
	PreviousLeaves map[NodeIndex]Leaf
}

// CommitTrie runs the read, update, and hashing phases for one trie and one
// batch. It performs storage reads only; persisting the result is the
// caller's responsibility, allowing all tries of a forest to land in one
// atomic write.
func CommitTrie(ctx context.Context, store storage.Storage, config TrieConfig, previousRoot common.Felt, modifications LeafModifications) (*TrieUpdate, error) {
	if len(modifications) == 0 {
		return &TrieUpdate{
			RootHash:       previousRoot,
			FilledNodes:    map[NodeIndex]FilledNode{},
			PreviousLeaves: map[NodeIndex]Leaf{},
		}, nil
	}
	leafIndices := modifications.SortedIndices()

	original, err := BuildOriginalSkeleton(ctx, store, config, previousRoot, leafIndices)
	if err != nil {
		return nil, err
	}
	updated := BuildUpdatedSkeleton(original, modifications, leafIndices)
	filled := CalculateFilledTree(updated, modifications, config.Hash)

	deleted := []NodeIndex{}
	for index := range original.ReadIndices() {
		if _, written := filled.Nodes[index]; written {
			continue
		}
		if _, kept := updated.GetNode(index); kept {
			continue
		}
		deleted = append(deleted, index)
	}
	slices.SortFunc(deleted, func(a, b NodeIndex) int { return a.Cmp(b) })

	return &TrieUpdate{
		RootHash:       filled.RootHash,
		FilledNodes:    filled.Nodes,
		DeletedIndices: deleted,
		PreviousLeaves: original.PreviousLeaves(),
	}, nil
}

// AddToBatch schedules all writes and deletes of this update into the given
// write batch, using the given trie's key space.
func (u *TrieUpdate) AddToBatch(keySpace storage.KeySpace, batch *storage.WriteBatch) {
	for index, node := range u.FilledNodes {
		indexBytes := index.Bytes32()
		if index.IsLeaf() {
			batch.Put(keySpace.LeafKey(indexBytes), node.Serialize())
		} else {
			batch.Put(keySpace.InnerNodeKey(indexBytes), node.Serialize())
		}
	}
	for _, index := range u.DeletedIndices {
		indexBytes := index.Bytes32()
		if index.IsLeaf() {
			batch.Delete(keySpace.LeafKey(indexBytes))
		} else {
			batch.Delete(keySpace.InnerNodeKey(indexBytes))
		}
	}
}
