package trie

import (
	"github.com/starkware-libs/committer/common"
)

// This file defines the typed content stored at tree positions. There are
// two families of node data:
//
//  - inner node data ... BinaryData for real branch points and EdgeData for
//                        compressed runs of single-child steps
//  - leaves          ... StorageValue, ContractState, and CompiledClassHash,
//                        one kind per trie kind
//
// Both families form closed variant sets; serialization, hashing, and key
// layout match on them exhaustively. A node that has been assigned its final
// hash is a FilledNode, the unit persisted to storage.

// NodeData is the content of a persisted node; either an inner-node variant
// or a leaf.
type NodeData interface {
	isNodeData()
}

// BinaryData is the content of a real branch point. Both children are
// guaranteed non-empty; single-child runs are always compressed into edges.
type BinaryData struct {
	LeftHash  common.Felt
	RightHash common.Felt
}

// EdgeData is the content of a compressed single-child run ending at the
// node reached by Path below the edge's own position.
type EdgeData struct {
	BottomHash common.Felt
	Path       PathToBottom
}

func (BinaryData) isNodeData() {}
func (EdgeData) isNodeData()   {}

// FilledNode is a node annotated with its final hash, ready to be persisted.
type FilledNode struct {
	Hash common.Felt
	Data NodeData
}

// Leaf is the capability set shared by all leaf kinds.
type Leaf interface {
	NodeData

	// IsEmpty tests whether this leaf holds the domain's default value. An
	// empty leaf is never persisted; writing it deletes the leaf's row.
	IsEmpty() bool

	// Serialize encodes the leaf in its wire format.
	Serialize() []byte

	// CalculateHash combines the leaf's fields into its commitment.
	CalculateHash(hash HashFunction) common.Felt
}

// StorageValue is the leaf kind of the per-contract storage tries; a single
// field element.
type StorageValue struct {
	Value common.Felt
}

func (StorageValue) isNodeData() {}

func (l StorageValue) IsEmpty() bool {
	return l.Value.IsZero()
}

// CompiledClassHash is the leaf kind of the classes trie, mapping a class
// hash to the hash of its compiled form.
type CompiledClassHash struct {
	Value common.Felt
}

func (CompiledClassHash) isNodeData() {}

func (l CompiledClassHash) IsEmpty() bool {
	return l.Value.IsZero()
}

// ContractState is the leaf kind of the contracts trie, committing to a
// contract's class, storage root, and nonce.
type ContractState struct {
	ClassHash       common.Felt
	StorageRootHash common.Felt
	Nonce           common.Felt
}

func (ContractState) isNodeData() {}

func (l ContractState) IsEmpty() bool {
	return l.ClassHash.IsZero() && l.StorageRootHash.IsZero() && l.Nonce.IsZero()
}
