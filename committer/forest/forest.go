package forest

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/storage"
	"github.com/starkware-libs/committer/committer/trie"
)

// A forest commitment covers exactly one classes trie, one contracts trie,
// and one storage trie per contract touched by the batch. The forest itself
// is a per-batch, stack-scoped computation; only the resulting roots and the
// write set survive it.

// StateRoots are the two global roots produced by committing one batch and
// consumed as the previous-state input of the next one.
type StateRoots struct {
	ContractsTrieRoot common.Felt
	ClassesTrieRoot   common.Felt
}

// CommitBatch commits one state diff on top of the given previous roots and
// returns the new roots. The batch is validated before any storage access;
// reads run concurrently per trie; all writes and deletes land in one atomic
// multi-set-and-delete together with the block's metadata.
//
// Batches must be applied strictly in sequence. Abandoning a batch before
// its write phase leaves storage untouched.
func CommitBatch(ctx context.Context, store storage.Storage, hash trie.HashFunction, previousRoots StateRoots, diff StateDiff, blockNumber uint64) (StateRoots, error) {
	validated, err := diff.Validate()
	if err != nil {
		return StateRoots{}, err
	}

	addresses := validated.touchedAddresses()
	previousStates, err := readPreviousContractStates(ctx, store, previousRoots.ContractsTrieRoot, addresses)
	if err != nil {
		return StateRoots{}, err
	}

	// The classes trie and all storage tries are independent; commit them
	// concurrently and synchronize before assembling the contracts trie.
	group, groupCtx := errgroup.WithContext(ctx)

	var classesUpdate *trie.TrieUpdate
	group.Go(func() error {
		update, err := trie.CommitTrie(groupCtx, store, trie.ClassesTrieConfig(hash),
			previousRoots.ClassesTrieRoot, validated.classModifications())
		if err != nil {
			return fmt.Errorf("classes trie: %w", err)
		}
		classesUpdate = update
		return nil
	})

	storageUpdates := make([]*trie.TrieUpdate, len(addresses))
	for i, address := range addresses {
		i, address := i, address
		group.Go(func() error {
			update, err := trie.CommitTrie(groupCtx, store, trie.StorageTrieConfig(hash, address),
				previousStates[address].StorageRootHash, validated.storageModifications(address))
			if err != nil {
				return fmt.Errorf("storage trie of %s: %w", address, err)
			}
			storageUpdates[i] = update
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return StateRoots{}, err
	}

	contractModifications := trie.LeafModifications{}
	for i, address := range addresses {
		state := newContractState(previousStates[address], validated.contracts[address], storageUpdates[i], len(validated.storage[address]) > 0)
		contractModifications[trie.LeafIndexFromKey(address)] = state
	}
	contractsUpdate, err := trie.CommitTrie(ctx, store, trie.ContractsTrieConfig(hash),
		previousRoots.ContractsTrieRoot, contractModifications)
	if err != nil {
		return StateRoots{}, fmt.Errorf("contracts trie: %w", err)
	}

	batch := &storage.WriteBatch{}
	classesUpdate.AddToBatch(storage.ClassesTrieKeySpace(), batch)
	contractsUpdate.AddToBatch(storage.ContractsTrieKeySpace(), batch)
	for i, address := range addresses {
		storageUpdates[i].AddToBatch(storage.StorageTrieKeySpace(address), batch)
	}

	roots := StateRoots{
		ContractsTrieRoot: contractsUpdate.RootHash,
		ClassesTrieRoot:   classesUpdate.RootHash,
	}
	metadata := storage.NewForestMetadata(store)
	metadata.AddToBatch(batch, blockNumber, roots.ContractsTrieRoot, roots.ClassesTrieRoot, validated.Hash(hash))

	written, err := store.MultiSetAndDelete(ctx, batch)
	if err != nil {
		return StateRoots{}, fmt.Errorf("failed to persist batch: %w", err)
	}
	log.Info("committed batch",
		"block", blockNumber,
		"contractsRoot", roots.ContractsTrieRoot,
		"classesRoot", roots.ClassesTrieRoot,
		"storageTries", len(addresses),
		"operations", written,
	)
	return roots, nil
}

// readPreviousContractStates fetches the previous contract-state leaves of
// all touched addresses in one multi-get. Addresses without a previous state
// map to the empty state. With an empty previous contracts trie no read is
// issued at all.
func readPreviousContractStates(ctx context.Context, store storage.Storage, previousRoot common.Felt, addresses []common.Felt) (map[common.Felt]trie.ContractState, error) {
	res := make(map[common.Felt]trie.ContractState, len(addresses))
	for _, address := range addresses {
		res[address] = trie.ContractState{}
	}
	if previousRoot.IsZero() || len(addresses) == 0 {
		return res, nil
	}

	keySpace := storage.ContractsTrieKeySpace()
	keys := make([][]byte, len(addresses))
	for i, address := range addresses {
		indexBytes := trie.LeafIndexFromKey(address).Bytes32()
		keys[i] = keySpace.LeafKey(indexBytes)
	}
	values, err := store.MultiGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to read previous contract states: %w", err)
	}
	for i, value := range values {
		if value == nil {
			continue
		}
		leaf, err := trie.DeserializeContractState(value)
		if err != nil {
			return nil, fmt.Errorf("corrupted contract state of %s: %v", addresses[i], err)
		}
		res[addresses[i]] = leaf.(trie.ContractState)
	}
	return res, nil
}

// newContractState merges a contract's previous state with its batch
// changes: explicit class-hash and nonce updates override, the storage root
// follows the contract's storage trie commitment, and untouched fields are
// carried over.
func newContractState(previous trie.ContractState, change contractChange, storageUpdate *trie.TrieUpdate, storageTouched bool) trie.ContractState {
	res := previous
	if change.classHash != nil {
		res.ClassHash = *change.classHash
	}
	if change.nonce != nil {
		res.Nonce = *change.nonce
	}
	if storageTouched {
		res.StorageRootHash = storageUpdate.RootHash
	}
	return res
}
