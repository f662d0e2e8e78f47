package trie

import (
	"testing"

	"github.com/starkware-libs/committer/common"
)

func TestKeccakHashFunction_IsDeterministic(t *testing.T) {
	hash := KeccakHashFunction{}
	a := common.NewFeltFromUint64(17)
	b := common.NewFeltFromUint64(42)
	if got, want := hash.Hash(a, b), hash.Hash(a, b); got.Cmp(want) != 0 {
		t.Errorf("hashing the same inputs twice gave %v and %v", got, want)
	}
	if got, want := hash.Hash(a, b), hash.Hash(b, a); got.Cmp(want) == 0 {
		t.Errorf("hashing should depend on the operand order, got %v for both", got)
	}
}

func TestKeccakHashFunction_OutputFitsTheField(t *testing.T) {
	hash := KeccakHashFunction{}
	for i := uint64(0); i < 100; i++ {
		digest := hash.Hash(common.NewFeltFromUint64(i), common.NewFeltFromUint64(i+1))
		bytes := digest.Bytes()
		if bytes[0] > 0x03 {
			t.Errorf("digest of %d exceeds 250 bits: %v", i, digest)
		}
	}
}

func TestEdgeHash_AddsThePathLength(t *testing.T) {
	hash := KeccakHashFunction{}
	path, err := NewPathToBottom(common.NewFeltFromUint64(0b101), 3)
	if err != nil {
		t.Fatalf("failed to create path: %v", err)
	}
	bottom := common.NewFeltFromUint64(99)
	want := hash.Hash(bottom, common.NewFeltFromUint64(0b101)).Add(common.NewFeltFromUint64(3))
	got := calculateEdgeHash(hash, EdgeData{BottomHash: bottom, Path: path})
	if got.Cmp(want) != 0 {
		t.Errorf("unexpected edge hash, wanted %v, got %v", want, got)
	}
}

func TestLeafHashes_FollowTheirFramingRules(t *testing.T) {
	hash := KeccakHashFunction{}

	value := common.NewFeltFromUint64(123)
	if got, want := (StorageValue{Value: value}).CalculateHash(hash), value; got.Cmp(want) != 0 {
		t.Errorf("a storage slot should commit to its bare value, wanted %v, got %v", want, got)
	}

	if got, want := (CompiledClassHash{Value: value}).CalculateHash(hash), hash.Hash(contractClassLeafVersion, value); got.Cmp(want) != 0 {
		t.Errorf("unexpected compiled class commitment, wanted %v, got %v", want, got)
	}

	state := ContractState{
		ClassHash:       common.NewFeltFromUint64(1),
		StorageRootHash: common.NewFeltFromUint64(2),
		Nonce:           common.NewFeltFromUint64(3),
	}
	want := hash.Hash(hash.Hash(hash.Hash(state.ClassHash, state.StorageRootHash), state.Nonce), common.Felt{})
	if got := state.CalculateHash(hash); got.Cmp(want) != 0 {
		t.Errorf("unexpected contract state commitment, wanted %v, got %v", want, got)
	}
}

func TestEmptyNodeHash_IsZero(t *testing.T) {
	if !EmptyNodeHash.IsZero() {
		t.Errorf("the empty subtree must hash to zero, got %v", EmptyNodeHash)
	}
}
