package storage

import (
	"github.com/starkware-libs/committer/common"
)

// The key space of the committer is partitioned into buckets identified by a
// single prefix byte. Trie nodes and leaves of distinct kinds live in
// distinct buckets, and storage-trie keys are additionally namespaced by the
// owning contract's address, so no two tries can ever produce colliding
// keys. Metadata keys use a reserved prefix range starting strictly above
// every node bucket.
type Bucket byte

const (
	// Inner-node buckets, one per trie kind.
	ClassesTrieBucket   Bucket = 0x01
	ContractsTrieBucket Bucket = 0x02
	StorageTrieBucket   Bucket = 0x03

	// Leaf buckets, one per leaf kind.
	CompiledClassLeafBucket Bucket = 0x04
	ContractStateLeafBucket Bucket = 0x05
	StorageLeafBucket       Bucket = 0x06

	// Metadata keys; strictly above any node or leaf bucket.
	commitmentOffsetBucket Bucket = 0xF0
	stateRootsBucket       Bucket = 0xF1
	stateDiffHashBucket    Bucket = 0xF2
)

// KeySpace describes how the nodes of one trie are addressed in storage. For
// storage tries the namespace holds the owning contract's address; for the
// classes and contracts tries it is empty.
type KeySpace struct {
	innerBucket Bucket
	leafBucket  Bucket
	namespace   []byte
}

// ClassesTrieKeySpace is the key space of the single classes trie.
func ClassesTrieKeySpace() KeySpace {
	return KeySpace{innerBucket: ClassesTrieBucket, leafBucket: CompiledClassLeafBucket}
}

// ContractsTrieKeySpace is the key space of the single contracts trie.
func ContractsTrieKeySpace() KeySpace {
	return KeySpace{innerBucket: ContractsTrieBucket, leafBucket: ContractStateLeafBucket}
}

// StorageTrieKeySpace is the key space of the storage trie owned by the
// contract at the given address.
func StorageTrieKeySpace(address common.Felt) KeySpace {
	addressBytes := address.Bytes()
	return KeySpace{
		innerBucket: StorageTrieBucket,
		leafBucket:  StorageLeafBucket,
		namespace:   addressBytes[:],
	}
}

// InnerNodeKey builds the storage key of the inner node at the given index.
// The index is appended in its fixed-width big-endian form, keeping keys of
// one trie contiguous and ordered by index.
func (s KeySpace) InnerNodeKey(indexBytes [32]byte) []byte {
	return s.key(s.innerBucket, indexBytes)
}

// LeafKey builds the storage key of the leaf at the given index.
func (s KeySpace) LeafKey(indexBytes [32]byte) []byte {
	return s.key(s.leafBucket, indexBytes)
}

func (s KeySpace) key(bucket Bucket, indexBytes [32]byte) []byte {
	res := make([]byte, 0, 1+len(s.namespace)+len(indexBytes))
	res = append(res, byte(bucket))
	res = append(res, s.namespace...)
	res = append(res, indexBytes[:]...)
	return res
}

func commitmentOffsetKey() []byte {
	return []byte{byte(commitmentOffsetBucket)}
}

func blockKey(bucket Bucket, blockNumber uint64) []byte {
	res := make([]byte, 9)
	res[0] = byte(bucket)
	for i := 0; i < 8; i++ {
		res[1+i] = byte(blockNumber >> (56 - 8*i))
	}
	return res
}
