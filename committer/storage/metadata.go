package storage

import (
	"context"
	"fmt"

	"github.com/starkware-libs/committer/common"
)

// ForestMetadata provides access to the bookkeeping entries maintained next
// to the trie nodes: the commitment offset (the number of the next block to
// be committed), and the per-block state roots and state-diff hash. All
// metadata lives in the reserved prefix range above the node buckets.
type ForestMetadata struct {
	store Storage
}

// NewForestMetadata wraps the given storage with metadata accessors.
func NewForestMetadata(store Storage) ForestMetadata {
	return ForestMetadata{store: store}
}

// GetCommitmentOffset returns the number of the next block to commit. A
// fresh database reports offset zero.
func (m ForestMetadata) GetCommitmentOffset(ctx context.Context) (uint64, error) {
	data, exists, err := m.store.Get(ctx, commitmentOffsetKey())
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	return decodeUint64(data)
}

// GetStateRoots returns the contracts-trie and classes-trie roots recorded
// for the given block, in that order.
func (m ForestMetadata) GetStateRoots(ctx context.Context, blockNumber uint64) (common.Felt, common.Felt, error) {
	data, exists, err := m.store.Get(ctx, blockKey(stateRootsBucket, blockNumber))
	if err != nil {
		return common.Felt{}, common.Felt{}, err
	}
	if !exists {
		return common.Felt{}, common.Felt{}, fmt.Errorf("no state roots recorded for block %d", blockNumber)
	}
	if len(data) != 2*common.FeltSize {
		return common.Felt{}, common.Felt{}, fmt.Errorf("corrupted state-roots entry for block %d", blockNumber)
	}
	contractsRoot := common.NewFeltFromBytes(data[:common.FeltSize])
	classesRoot := common.NewFeltFromBytes(data[common.FeltSize:])
	return contractsRoot, classesRoot, nil
}

// GetStateDiffHash returns the state-diff commitment recorded for the given
// block.
func (m ForestMetadata) GetStateDiffHash(ctx context.Context, blockNumber uint64) (common.Felt, error) {
	data, exists, err := m.store.Get(ctx, blockKey(stateDiffHashBucket, blockNumber))
	if err != nil {
		return common.Felt{}, err
	}
	if !exists {
		return common.Felt{}, fmt.Errorf("no state-diff hash recorded for block %d", blockNumber)
	}
	return common.NewFeltFromBytes(data), nil
}

// AddToBatch schedules the metadata entries of a freshly committed block into
// the given write batch: the advanced commitment offset, the block's state
// roots, and the block's state-diff hash.
func (m ForestMetadata) AddToBatch(batch *WriteBatch, blockNumber uint64, contractsRoot common.Felt, classesRoot common.Felt, stateDiffHash common.Felt) {
	batch.Put(commitmentOffsetKey(), encodeUint64(blockNumber+1))

	contractsBytes := contractsRoot.Bytes()
	classesBytes := classesRoot.Bytes()
	roots := make([]byte, 0, 2*common.FeltSize)
	roots = append(roots, contractsBytes[:]...)
	roots = append(roots, classesBytes[:]...)
	batch.Put(blockKey(stateRootsBucket, blockNumber), roots)

	diffHashBytes := stateDiffHash.Bytes()
	batch.Put(blockKey(stateDiffHashBucket, blockNumber), diffHashBytes[:])
}

func encodeUint64(value uint64) []byte {
	res := make([]byte, 8)
	for i := 0; i < 8; i++ {
		res[i] = byte(value >> (56 - 8*i))
	}
	return res
}

func decodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("corrupted metadata entry of length %d", len(data))
	}
	res := uint64(0)
	for _, b := range data {
		res = res<<8 | uint64(b)
	}
	return res, nil
}
