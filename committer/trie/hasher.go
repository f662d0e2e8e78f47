package trie

import (
	"golang.org/x/crypto/sha3"

	"github.com/starkware-libs/committer/common"
)

// HashFunction is the domain's two-to-one compression primitive. One such
// function is used for all node and leaf hashing, with kind-specific input
// framing applied by the rules below. Implementations must be pure and safe
// for concurrent use.
type HashFunction interface {
	Hash(a common.Felt, b common.Felt) common.Felt
}

// EmptyNodeHash is the hash of an empty subtree.
var EmptyNodeHash = common.Felt{}

// contractClassLeafVersion frames compiled-class leaf hashing, separating
// its domain from plain two-element compressions.
var contractClassLeafVersion = common.NewFeltFromBytes([]byte("CONTRACT_CLASS_LEAF_V0"))

// calculateBinaryHash combines the hashes of a branch point's children.
func calculateBinaryHash(hash HashFunction, data BinaryData) common.Felt {
	return hash.Hash(data.LeftHash, data.RightHash)
}

// calculateEdgeHash combines an edge's bottom hash with the encoding of its
// path: the compression of bottom hash and path bits, plus the path length
// as a field element.
func calculateEdgeHash(hash HashFunction, data EdgeData) common.Felt {
	combined := hash.Hash(data.BottomHash, data.Path.PathFelt())
	return combined.Add(common.NewFeltFromUint64(uint64(data.Path.Length())))
}

// calculateNodeHash computes the hash of any filled node content.
func calculateNodeHash(hash HashFunction, data NodeData) common.Felt {
	switch data := data.(type) {
	case BinaryData:
		return calculateBinaryHash(hash, data)
	case EdgeData:
		return calculateEdgeHash(hash, data)
	case Leaf:
		return data.CalculateHash(hash)
	default:
		panic("unsupported node data type")
	}
}

// A storage slot commits to its bare value; the slot position is already
// fixed by the leaf's index.
func (l StorageValue) CalculateHash(HashFunction) common.Felt {
	return l.Value
}

func (l CompiledClassHash) CalculateHash(hash HashFunction) common.Felt {
	return hash.Hash(contractClassLeafVersion, l.Value)
}

func (l ContractState) CalculateHash(hash HashFunction) common.Felt {
	res := hash.Hash(l.ClassHash, l.StorageRootHash)
	res = hash.Hash(res, l.Nonce)
	return hash.Hash(res, common.Felt{})
}

// KeccakHashFunction is the default HashFunction: a keccak256 compression of
// the two operands' canonical encodings, truncated to 250 bits to stay
// within the field.
type KeccakHashFunction struct{}

func (KeccakHashFunction) Hash(a common.Felt, b common.Felt) common.Felt {
	keccak := sha3.NewLegacyKeccak256()
	aBytes := a.Bytes()
	bBytes := b.Bytes()
	keccak.Write(aBytes[:])
	keccak.Write(bBytes[:])
	digest := keccak.Sum(nil)
	digest[0] &= 0x03
	return common.NewFeltFromBytes(digest)
}
