package forest

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/storage"
	"github.com/starkware-libs/committer/committer/trie"
)

// expectedLoneLeafRoot is the root of a trie holding a single leaf with the
// given hash under the given key: one edge spanning the full tree height.
func expectedLoneLeafRoot(hash trie.HashFunction, key common.Felt, leafHash common.Felt) common.Felt {
	return hash.Hash(leafHash, key).Add(common.NewFeltFromUint64(trie.TreeHeight))
}

func TestCommitBatch_SingleContractProducesExpectedRoots(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}

	address := felt(0xAA)
	classHash := felt(0xC1)
	nonce := felt(1)
	slotKey := felt(0x5)
	slotValue := felt(0x7)

	diff := StateDiff{
		ContractUpdates: []ContractUpdate{{Address: address, ClassHash: &classHash, Nonce: &nonce}},
		StorageWrites:   []StorageWrite{{Address: address, Key: slotKey, Value: slotValue}},
		ClassUpdates:    []ClassUpdate{{ClassHash: felt(0xC1), CompiledClassHash: felt(0xC2)}},
	}
	roots, err := CommitBatch(context.Background(), store, hash, StateRoots{}, diff, 0)
	require.NoError(err)

	storageRoot := expectedLoneLeafRoot(hash, slotKey, slotValue)
	contractLeaf := trie.ContractState{
		ClassHash:       classHash,
		StorageRootHash: storageRoot,
		Nonce:           nonce,
	}
	wantContracts := expectedLoneLeafRoot(hash, address, contractLeaf.CalculateHash(hash))
	require.Zero(roots.ContractsTrieRoot.Cmp(wantContracts), "unexpected contracts trie root")

	classLeaf := trie.CompiledClassHash{Value: felt(0xC2)}
	wantClasses := expectedLoneLeafRoot(hash, felt(0xC1), classLeaf.CalculateHash(hash))
	require.Zero(roots.ClassesTrieRoot.Cmp(wantClasses), "unexpected classes trie root")

	// the committed roots and diff hash are recorded under the block number
	metadata := storage.NewForestMetadata(store)
	offset, err := metadata.GetCommitmentOffset(context.Background())
	require.NoError(err)
	require.Equal(uint64(1), offset)

	gotContracts, gotClasses, err := metadata.GetStateRoots(context.Background(), 0)
	require.NoError(err)
	require.Zero(gotContracts.Cmp(roots.ContractsTrieRoot))
	require.Zero(gotClasses.Cmp(roots.ClassesTrieRoot))

	validated, err := diff.Validate()
	require.NoError(err)
	gotDiffHash, err := metadata.GetStateDiffHash(context.Background(), 0)
	require.NoError(err)
	require.Zero(gotDiffHash.Cmp(validated.Hash(hash)))
}

func TestCommitBatch_RootsChainAcrossBlocks(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}
	address := felt(0xAA)

	first, err := CommitBatch(context.Background(), store, hash, StateRoots{}, StateDiff{
		StorageWrites: []StorageWrite{{Address: address, Key: felt(1), Value: felt(10)}},
	}, 0)
	require.NoError(err)

	second, err := CommitBatch(context.Background(), store, hash, first, StateDiff{
		StorageWrites: []StorageWrite{{Address: address, Key: felt(2), Value: felt(20)}},
	}, 1)
	require.NoError(err)
	require.NotZero(second.ContractsTrieRoot.Cmp(first.ContractsTrieRoot),
		"a second write must move the contracts root")

	metadata := storage.NewForestMetadata(store)
	offset, err := metadata.GetCommitmentOffset(context.Background())
	require.NoError(err)
	require.Equal(uint64(2), offset)

	blockZeroContracts, _, err := metadata.GetStateRoots(context.Background(), 0)
	require.NoError(err)
	require.Zero(blockZeroContracts.Cmp(first.ContractsTrieRoot))
	blockOneContracts, _, err := metadata.GetStateRoots(context.Background(), 1)
	require.NoError(err)
	require.Zero(blockOneContracts.Cmp(second.ContractsTrieRoot))
}

func TestCommitBatch_RejectsDuplicateKeysBeforeAnyStorageAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage.NewMockStorage(ctrl)
	// no expectations: the batch must be rejected without touching storage

	diff := StateDiff{
		StorageWrites: []StorageWrite{
			{Address: felt(1), Key: felt(2), Value: felt(3)},
			{Address: felt(1), Key: felt(2), Value: felt(4)},
		},
	}
	_, err := CommitBatch(context.Background(), store, trie.KeccakHashFunction{}, StateRoots{}, diff, 0)
	require.ErrorIs(t, err, ErrDuplicateKey)
}

func TestCommitBatch_EmptyDiffKeepsTheRootsAndWritesOnlyMetadata(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}
	address := felt(0xAA)

	first, err := CommitBatch(context.Background(), store, hash, StateRoots{}, StateDiff{
		StorageWrites: []StorageWrite{{Address: address, Key: felt(1), Value: felt(10)}},
	}, 0)
	require.NoError(err)
	entriesBefore := store.NumEntries()

	second, err := CommitBatch(context.Background(), store, hash, first, StateDiff{}, 1)
	require.NoError(err)
	require.Zero(second.ContractsTrieRoot.Cmp(first.ContractsTrieRoot))
	require.Zero(second.ClassesTrieRoot.Cmp(first.ClassesTrieRoot))

	// only the two per-block metadata entries are new; the offset entry is
	// overwritten in place
	require.Equal(entriesBefore+2, store.NumEntries())
}

func TestCommitBatch_ClassUpdateLeavesTheContractsRootUntouched(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}
	address := felt(0xAA)

	first, err := CommitBatch(context.Background(), store, hash, StateRoots{}, StateDiff{
		StorageWrites: []StorageWrite{{Address: address, Key: felt(1), Value: felt(10)}},
	}, 0)
	require.NoError(err)

	second, err := CommitBatch(context.Background(), store, hash, first, StateDiff{
		ClassUpdates: []ClassUpdate{{ClassHash: felt(0xC1), CompiledClassHash: felt(0xC2)}},
	}, 1)
	require.NoError(err)
	require.Zero(second.ContractsTrieRoot.Cmp(first.ContractsTrieRoot))
	require.NotZero(second.ClassesTrieRoot.Cmp(first.ClassesTrieRoot))
}

func TestCommitBatch_CarriesUntouchedContractFieldsForward(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}

	address := felt(0xAA)
	classHash := felt(0xC1)
	nonceOne := felt(1)
	nonceTwo := felt(2)

	first, err := CommitBatch(context.Background(), store, hash, StateRoots{}, StateDiff{
		ContractUpdates: []ContractUpdate{{Address: address, ClassHash: &classHash, Nonce: &nonceOne}},
		StorageWrites:   []StorageWrite{{Address: address, Key: felt(5), Value: felt(7)}},
	}, 0)
	require.NoError(err)

	// only the nonce moves; class hash and storage root carry over
	second, err := CommitBatch(context.Background(), store, hash, first, StateDiff{
		ContractUpdates: []ContractUpdate{{Address: address, Nonce: &nonceTwo}},
	}, 1)
	require.NoError(err)

	storageRoot := expectedLoneLeafRoot(hash, felt(5), felt(7))
	wantLeaf := trie.ContractState{
		ClassHash:       classHash,
		StorageRootHash: storageRoot,
		Nonce:           nonceTwo,
	}
	want := expectedLoneLeafRoot(hash, address, wantLeaf.CalculateHash(hash))
	require.Zero(second.ContractsTrieRoot.Cmp(want), "unexpected contracts trie root")
}

func TestCommitBatch_ManyContractsCommitConcurrently(t *testing.T) {
	require := require.New(t)
	store := storage.NewMapStorage()
	hash := trie.KeccakHashFunction{}

	writes := []StorageWrite{}
	for i := uint64(0); i < 32; i++ {
		writes = append(writes, StorageWrite{Address: felt(0x100 + i), Key: felt(i), Value: felt(i + 1)})
	}
	roots, err := CommitBatch(context.Background(), store, hash, StateRoots{}, StateDiff{StorageWrites: writes}, 0)
	require.NoError(err)
	require.False(roots.ContractsTrieRoot.IsZero())

	// every storage trie contributed its root to a distinct contract leaf
	drop, err := CommitBatch(context.Background(), store, hash, roots, StateDiff{
		StorageWrites: []StorageWrite{{Address: felt(0x100), Key: felt(0), Value: felt(0)}},
	}, 1)
	require.NoError(err)
	require.NotZero(drop.ContractsTrieRoot.Cmp(roots.ContractsTrieRoot))
}
