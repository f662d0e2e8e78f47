package common

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// FeltSize is the size of the canonical big-endian encoding of a Felt.
const FeltSize = fp.Bytes

// Felt is an element of the 252-bit prime field underlying the trie domain.
// All keys, values, and hashes handled by the committer are field elements.
// The zero value is the field's zero, which doubles as the hash of an empty
// subtree and as the domain's "absent" value for leaves.
type Felt struct {
	value fp.Element
}

// NewFeltFromUint64 creates a field element holding the given small value.
func NewFeltFromUint64(value uint64) Felt {
	res := Felt{}
	res.value.SetUint64(value)
	return res
}

// NewFeltFromBytes interprets the given bytes as a big-endian unsigned
// integer and reduces it into the field. Inputs longer than FeltSize bytes
// are rejected by the underlying field implementation via reduction; callers
// parsing untrusted input should length-check first.
func NewFeltFromBytes(data []byte) Felt {
	res := Felt{}
	res.value.SetBytes(data)
	return res
}

// NewFeltFromBigInt reduces the given non-negative integer into the field.
func NewFeltFromBigInt(value *big.Int) Felt {
	res := Felt{}
	res.value.SetBigInt(value)
	return res
}

// Bytes returns the canonical 32-byte big-endian encoding of this element.
func (f Felt) Bytes() [FeltSize]byte {
	return f.value.Bytes()
}

// BigInt returns the canonical integer representation of this element.
func (f Felt) BigInt() *big.Int {
	res := &big.Int{}
	f.value.BigInt(res)
	return res
}

// Uint64 returns the low 64 bits of the canonical representation. It is only
// meaningful for elements known to be small.
func (f Felt) Uint64() uint64 {
	bytes := f.Bytes()
	res := uint64(0)
	for _, b := range bytes[FeltSize-8:] {
		res = res<<8 | uint64(b)
	}
	return res
}

// IsZero tests whether this element is the field's zero.
func (f Felt) IsZero() bool {
	return f.value.IsZero()
}

// Add returns the field sum of this element and the given element.
func (f Felt) Add(other Felt) Felt {
	res := Felt{}
	res.value.Add(&f.value, &other.value)
	return res
}

// Cmp orders elements by their canonical integer representation.
func (f Felt) Cmp(other Felt) int {
	return f.value.Cmp(&other.value)
}

func (f Felt) String() string {
	return "0x" + f.value.Text(16)
}
