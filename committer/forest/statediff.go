package forest

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/starkware-libs/committer/common"
	"github.com/starkware-libs/committer/committer/trie"
)

// Input validation error values. All of them are raised before any storage
// access; the caller may correct the batch and resubmit.
const (
	ErrDuplicateKey  = common.ConstError("duplicate key with conflicting values in batch")
	ErrKeyOutOfRange = common.ConstError("key exceeds the leaf key range")
)

// ContractUpdate announces a new class hash and/or nonce for one contract.
// Nil fields are carried over from the contract's previous state.
type ContractUpdate struct {
	Address   common.Felt
	ClassHash *common.Felt
	Nonce     *common.Felt
}

// StorageWrite sets one storage slot of one contract. A zero value deletes
// the slot.
type StorageWrite struct {
	Address common.Felt
	Key     common.Felt
	Value   common.Felt
}

// ClassUpdate declares the compiled form of one class.
type ClassUpdate struct {
	ClassHash         common.Felt
	CompiledClassHash common.Felt
}

// StateDiff is the wire-level batch of modifications committed together as
// one block. Entries carry no ordering requirement; the engine sorts and
// deduplicates during validation.
type StateDiff struct {
	ContractUpdates []ContractUpdate
	StorageWrites   []StorageWrite
	ClassUpdates    []ClassUpdate
}

// IsEmpty tests whether the batch carries no modification at all.
func (d *StateDiff) IsEmpty() bool {
	return len(d.ContractUpdates) == 0 && len(d.StorageWrites) == 0 && len(d.ClassUpdates) == 0
}

type contractChange struct {
	classHash *common.Felt
	nonce     *common.Felt
}

// validatedDiff is the deduplicated, map-shaped form of a StateDiff.
type validatedDiff struct {
	contracts map[common.Felt]contractChange
	storage   map[common.Felt]map[common.Felt]common.Felt
	classes   map[common.Felt]common.Felt
}

// Validate sorts and deduplicates the batch. A key occurring twice with
// conflicting values is rejected; an exact duplicate collapses silently.
func (d *StateDiff) Validate() (*validatedDiff, error) {
	res := &validatedDiff{
		contracts: map[common.Felt]contractChange{},
		storage:   map[common.Felt]map[common.Felt]common.Felt{},
		classes:   map[common.Felt]common.Felt{},
	}

	for _, update := range d.ContractUpdates {
		if err := checkLeafKey("contract address", update.Address); err != nil {
			return nil, err
		}
		change, exists := res.contracts[update.Address]
		if !exists {
			res.contracts[update.Address] = contractChange{classHash: update.ClassHash, nonce: update.Nonce}
			continue
		}
		merged, err := mergeContractChange(update.Address, change, update)
		if err != nil {
			return nil, err
		}
		res.contracts[update.Address] = merged
	}

	for _, write := range d.StorageWrites {
		if err := checkLeafKey("contract address", write.Address); err != nil {
			return nil, err
		}
		if err := checkLeafKey("storage key", write.Key); err != nil {
			return nil, err
		}
		slots, exists := res.storage[write.Address]
		if !exists {
			slots = map[common.Felt]common.Felt{}
			res.storage[write.Address] = slots
		}
		if previous, exists := slots[write.Key]; exists && previous.Cmp(write.Value) != 0 {
			return nil, fmt.Errorf("%w: slot %s of contract %s", ErrDuplicateKey, write.Key, write.Address)
		}
		slots[write.Key] = write.Value
	}

	for _, update := range d.ClassUpdates {
		if err := checkLeafKey("class hash", update.ClassHash); err != nil {
			return nil, err
		}
		if previous, exists := res.classes[update.ClassHash]; exists && previous.Cmp(update.CompiledClassHash) != 0 {
			return nil, fmt.Errorf("%w: class %s", ErrDuplicateKey, update.ClassHash)
		}
		res.classes[update.ClassHash] = update.CompiledClassHash
	}

	return res, nil
}

func mergeContractChange(address common.Felt, existing contractChange, update ContractUpdate) (contractChange, error) {
	if update.ClassHash != nil {
		if existing.classHash != nil && existing.classHash.Cmp(*update.ClassHash) != 0 {
			return contractChange{}, fmt.Errorf("%w: class hash of contract %s", ErrDuplicateKey, address)
		}
		existing.classHash = update.ClassHash
	}
	if update.Nonce != nil {
		if existing.nonce != nil && existing.nonce.Cmp(*update.Nonce) != 0 {
			return contractChange{}, fmt.Errorf("%w: nonce of contract %s", ErrDuplicateKey, address)
		}
		existing.nonce = update.Nonce
	}
	return existing, nil
}

func checkLeafKey(kind string, key common.Felt) error {
	if key.BigInt().BitLen() > trie.TreeHeight {
		return fmt.Errorf("%w: %s %s", ErrKeyOutOfRange, kind, key)
	}
	return nil
}

// touchedAddresses returns the sorted set of contract addresses appearing in
// the batch, through either a contract update or a storage write.
func (d *validatedDiff) touchedAddresses() []common.Felt {
	set := map[common.Felt]bool{}
	for address := range d.contracts {
		set[address] = true
	}
	for address := range d.storage {
		set[address] = true
	}
	res := maps.Keys(set)
	slices.SortFunc(res, func(a, b common.Felt) int { return a.Cmp(b) })
	return res
}

// classModifications shapes the class updates as classes-trie leaf
// modifications.
func (d *validatedDiff) classModifications() trie.LeafModifications {
	res := trie.LeafModifications{}
	for classHash, compiled := range d.classes {
		res[trie.LeafIndexFromKey(classHash)] = trie.CompiledClassHash{Value: compiled}
	}
	return res
}

// storageModifications shapes one contract's storage writes as storage-trie
// leaf modifications.
func (d *validatedDiff) storageModifications(address common.Felt) trie.LeafModifications {
	res := trie.LeafModifications{}
	for key, value := range d.storage[address] {
		res[trie.LeafIndexFromKey(key)] = trie.StorageValue{Value: value}
	}
	return res
}

// Hash computes the batch's state-diff commitment: a hash chain over the
// sorted, validated entries, framed by the three section sizes.
func (d *validatedDiff) Hash(hash trie.HashFunction) common.Felt {
	res := common.Felt{}
	absorb := func(value common.Felt) {
		res = hash.Hash(res, value)
	}

	addresses := d.touchedAddresses()
	absorb(common.NewFeltFromUint64(uint64(len(addresses))))
	for _, address := range addresses {
		change := d.contracts[address]
		absorb(address)
		absorb(optionalFelt(change.classHash))
		absorb(optionalFelt(change.nonce))

		keys := maps.Keys(d.storage[address])
		slices.SortFunc(keys, func(a, b common.Felt) int { return a.Cmp(b) })
		absorb(common.NewFeltFromUint64(uint64(len(keys))))
		for _, key := range keys {
			absorb(key)
			absorb(d.storage[address][key])
		}
	}

	classes := maps.Keys(d.classes)
	slices.SortFunc(classes, func(a, b common.Felt) int { return a.Cmp(b) })
	absorb(common.NewFeltFromUint64(uint64(len(classes))))
	for _, classHash := range classes {
		absorb(classHash)
		absorb(d.classes[classHash])
	}
	return res
}

func optionalFelt(value *common.Felt) common.Felt {
	if value == nil {
		return common.Felt{}
	}
	return *value
}
