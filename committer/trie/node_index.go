package trie

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/starkware-libs/committer/common"
)

// TreeHeight is the height of every trie in the forest. Leaves sit at depth
// TreeHeight below the root.
const TreeHeight = 251

// NodeIndex addresses a position in a complete binary tree of height
// TreeHeight. The root has index 1, the children of node n are 2n and 2n+1,
// and the leaf layer covers [2^TreeHeight, 2^(TreeHeight+1)). Valid indices
// thus occupy at most TreeHeight+1 = 252 bits; all operations below panic
// when asked to produce an index outside this range, since such a request
// can only result from a caller violating the tree's addressing contract.
//
// NodeIndex is a value type and usable as a map key.
type NodeIndex struct {
	value uint256.Int
}

var (
	maxNodeIndex  = computeMaxNodeIndex()
	firstLeafBase = *new(uint256.Int).Lsh(uint256.NewInt(1), TreeHeight)
)

func computeMaxNodeIndex() uint256.Int {
	res := new(uint256.Int).Lsh(uint256.NewInt(1), TreeHeight+1)
	return *res.SubUint64(res, 1)
}

// RootIndex returns the index of the root node.
func RootIndex() NodeIndex {
	return NewNodeIndex(1)
}

// NewNodeIndex creates the index holding the given small value. It panics
// for zero, which addresses no node.
func NewNodeIndex(value uint64) NodeIndex {
	if value == 0 {
		panic("node index zero addresses no node")
	}
	res := NodeIndex{}
	res.value.SetUint64(value)
	return res
}

// NodeIndexFromBytes decodes a big-endian index from untrusted input,
// rejecting values outside the valid index range.
func NodeIndexFromBytes(data []byte) (NodeIndex, error) {
	if len(data) != 32 {
		return NodeIndex{}, fmt.Errorf("invalid node index encoding of length %d", len(data))
	}
	res := NodeIndex{}
	res.value.SetBytes(data)
	if res.value.IsZero() || res.value.Cmp(&maxNodeIndex) > 0 {
		return NodeIndex{}, fmt.Errorf("node index %s out of range", res.value.Hex())
	}
	return res, nil
}

// NodeIndexFromFelt converts a field element into an index. Every field
// element fits the 252-bit index range, but zero addresses no node.
func NodeIndexFromFelt(value common.Felt) (NodeIndex, error) {
	if value.IsZero() {
		return NodeIndex{}, fmt.Errorf("node index zero addresses no node")
	}
	bytes := value.Bytes()
	res := NodeIndex{}
	res.value.SetBytes(bytes[:])
	return res, nil
}

// LeafIndexFromKey maps a leaf key in [0, 2^TreeHeight) to the index of its
// leaf position. Keys outside that range violate the addressing contract.
func LeafIndexFromKey(key common.Felt) NodeIndex {
	bytes := key.Bytes()
	res := NodeIndex{}
	res.value.SetBytes(bytes[:])
	if res.value.BitLen() > TreeHeight {
		panic(fmt.Sprintf("leaf key %s exceeds %d bits", key, TreeHeight))
	}
	res.value.Add(&res.value, &firstLeafBase)
	return res
}

// ToFelt returns the index value as a field element.
func (n NodeIndex) ToFelt() common.Felt {
	bytes := n.value.Bytes32()
	return common.NewFeltFromBytes(bytes[:])
}

// LeafKey is the inverse of LeafIndexFromKey; it panics for non-leaves.
func (n NodeIndex) LeafKey() common.Felt {
	if !n.IsLeaf() {
		panic(fmt.Sprintf("node %s is not a leaf", n))
	}
	key := new(uint256.Int).Sub(&n.value, &firstLeafBase)
	bytes := key.Bytes32()
	return common.NewFeltFromBytes(bytes[:])
}

// BitLength returns the number of significant bits of the index.
func (n NodeIndex) BitLength() int {
	return n.value.BitLen()
}

// Depth returns the distance of the node from the root.
func (n NodeIndex) Depth() int {
	return n.BitLength() - 1
}

// Height returns the height of the subtree rooted at this node.
func (n NodeIndex) Height() SubTreeHeight {
	return NewSubTreeHeight(TreeHeight - n.Depth())
}

// IsRoot tests whether this index addresses the root node.
func (n NodeIndex) IsRoot() bool {
	return n.value.Eq(uint256.NewInt(1))
}

// IsLeaf tests whether this index addresses a leaf position.
func (n NodeIndex) IsLeaf() bool {
	return n.Depth() == TreeHeight
}

// LeftChild returns the index of the left child, 2n.
func (n NodeIndex) LeftChild() NodeIndex {
	return n.child(0)
}

// RightChild returns the index of the right child, 2n+1.
func (n NodeIndex) RightChild() NodeIndex {
	return n.child(1)
}

// Child returns the child selected by the given direction bit.
func (n NodeIndex) Child(bit uint64) NodeIndex {
	if bit > 1 {
		panic(fmt.Sprintf("invalid child direction %d", bit))
	}
	return n.child(bit)
}

func (n NodeIndex) child(bit uint64) NodeIndex {
	if n.IsLeaf() {
		panic(fmt.Sprintf("leaf %s has no children", n))
	}
	res := NodeIndex{}
	res.value.Lsh(&n.value, 1)
	res.value.Or(&res.value, uint256.NewInt(bit))
	return res
}

// Parent returns the index of the parent node, n >> 1.
func (n NodeIndex) Parent() NodeIndex {
	if n.IsRoot() {
		panic("root has no parent")
	}
	res := NodeIndex{}
	res.value.Rsh(&n.value, 1)
	return res
}

// IsDescendantOf tests whether this index can be reached from the given
// ancestor by repeated child steps. Every index is a descendant of itself.
func (n NodeIndex) IsDescendantOf(ancestor NodeIndex) bool {
	lengthDiff := n.BitLength() - ancestor.BitLength()
	if lengthDiff < 0 {
		return false
	}
	shifted := new(uint256.Int).Rsh(&n.value, uint(lengthDiff))
	return shifted.Eq(&ancestor.value)
}

// Bytes32 returns the fixed-width big-endian encoding used in storage keys.
func (n NodeIndex) Bytes32() [32]byte {
	return n.value.Bytes32()
}

// Cmp orders indices numerically.
func (n NodeIndex) Cmp(other NodeIndex) int {
	return n.value.Cmp(&other.value)
}

func (n NodeIndex) String() string {
	return n.value.Hex()
}

// GetLCA returns the lowest common ancestor of the two given indices. The
// deeper index is lifted to the shallower one's depth; the remaining
// divergence is measured by the bit length of their xor and shifted away.
func GetLCA(a NodeIndex, b NodeIndex) NodeIndex {
	aLength := a.BitLength()
	bLength := b.BitLength()
	lifted := a.value
	other := b.value
	if aLength > bLength {
		lifted = *new(uint256.Int).Rsh(&a.value, uint(aLength-bLength))
	} else if bLength > aLength {
		other = *new(uint256.Int).Rsh(&b.value, uint(bLength-aLength))
	}
	divergence := new(uint256.Int).Xor(&lifted, &other)
	res := NodeIndex{}
	res.value.Rsh(&lifted, uint(divergence.BitLen()))
	return res
}

// SubTreeHeight is the height of a subtree rooted at some node; TreeHeight
// at the root, zero at leaves.
type SubTreeHeight uint8

// NewSubTreeHeight panics for values outside [0, TreeHeight]; such values
// cannot describe a subtree of the forest's tries.
func NewSubTreeHeight(height int) SubTreeHeight {
	if height < 0 || height > TreeHeight {
		panic(fmt.Sprintf("invalid subtree height %d", height))
	}
	return SubTreeHeight(height)
}
