package trie

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/starkware-libs/committer/common"
)

// EdgePathLength counts the single-child steps compressed into one edge
// node. It is bounded by TreeHeight.
type EdgePathLength uint8

// PathToBottom describes the compressed run of single-child steps from an
// edge node down to the next real branch point or leaf. The path bits are
// ordered top-down: the most significant of the length bits is the first
// step taken below the edge's own position.
//
// PathToBottom is a value type and usable as a map key. The zero value is
// the empty path.
type PathToBottom struct {
	path   uint256.Int
	length EdgePathLength
}

// EmptyPath returns the path of zero steps.
func EmptyPath() PathToBottom {
	return PathToBottom{}
}

// NewPathToBottom validates and creates a path from untrusted input. The
// length must not exceed TreeHeight and the path value must fit the length.
func NewPathToBottom(path common.Felt, length int) (PathToBottom, error) {
	if length < 0 || length > TreeHeight {
		return PathToBottom{}, fmt.Errorf("invalid edge path length %d", length)
	}
	bytes := path.Bytes()
	res := PathToBottom{length: EdgePathLength(length)}
	res.path.SetBytes(bytes[:])
	if res.path.BitLen() > length {
		return PathToBottom{}, fmt.Errorf("edge path %s does not fit %d steps", path, length)
	}
	return res, nil
}

func singleStepPath(bit uint64) PathToBottom {
	res := PathToBottom{length: 1}
	res.path.SetUint64(bit)
	return res
}

// Length returns the number of steps along this path.
func (p PathToBottom) Length() int {
	return int(p.length)
}

// IsEmpty tests whether this path has no steps.
func (p PathToBottom) IsEmpty() bool {
	return p.length == 0
}

// FirstStep returns the direction bit of the first step. It panics on the
// empty path.
func (p PathToBottom) FirstStep() uint64 {
	return p.StepAt(0)
}

// StepAt returns the direction bit of the i-th step, counted from the top.
func (p PathToBottom) StepAt(i int) uint64 {
	if i < 0 || i >= p.Length() {
		panic(fmt.Sprintf("step %d out of range of %d-step path", i, p.Length()))
	}
	bit := new(uint256.Int).Rsh(&p.path, uint(p.Length()-1-i))
	return bit.Uint64() & 1
}

// DropFirstStep returns the path shortened by its first step. It panics on
// the empty path.
func (p PathToBottom) DropFirstStep() PathToBottom {
	if p.IsEmpty() {
		panic("cannot shorten an empty path")
	}
	res := PathToBottom{length: p.length - 1}
	mask := bitMask(p.Length() - 1)
	res.path.And(&p.path, &mask)
	return res
}

// Concat appends the given path below this one. The combined length must
// still fit a single edge; longer paths cannot arise from well-formed tries
// and indicate a contract violation.
func (p PathToBottom) Concat(other PathToBottom) PathToBottom {
	combined := p.Length() + other.Length()
	if combined > TreeHeight {
		panic(fmt.Sprintf("concatenated edge path of %d steps exceeds the tree height", combined))
	}
	res := PathToBottom{length: EdgePathLength(combined)}
	res.path.Lsh(&p.path, uint(other.Length()))
	res.path.Or(&res.path, &other.path)
	return res
}

// ComputeBottomIndex returns the index of the node reached by following this
// path from the given index: (index << length) + path.
func (p PathToBottom) ComputeBottomIndex(index NodeIndex) NodeIndex {
	res := NodeIndex{}
	res.value.Lsh(&index.value, uint(p.length))
	res.value.Or(&res.value, &p.path)
	if res.value.Cmp(&maxNodeIndex) > 0 {
		panic(fmt.Sprintf("edge path of %d steps below %s leaves the tree", p.Length(), index))
	}
	return res
}

// PathFelt returns the path bits as a field element, as consumed by the edge
// hash rule.
func (p PathToBottom) PathFelt() common.Felt {
	bytes := p.path.Bytes32()
	return common.NewFeltFromBytes(bytes[:])
}

// PathBytes returns the little-endian encoding of the path bits, sized to
// ceil(length/8) bytes, as used in the edge node wire format.
func (p PathToBottom) PathBytes() []byte {
	size := (p.Length() + 7) / 8
	bigEndian := p.path.Bytes32()
	res := make([]byte, size)
	for i := 0; i < size; i++ {
		res[i] = bigEndian[31-i]
	}
	return res
}

// GetPathToDescendant returns the path leading from the given ancestor down
// to the given descendant. It panics when the descendant is not reachable
// from the ancestor, which indicates a caller-side addressing error.
func GetPathToDescendant(ancestor NodeIndex, descendant NodeIndex) PathToBottom {
	if !descendant.IsDescendantOf(ancestor) {
		panic(fmt.Sprintf("%s is not a descendant of %s", descendant, ancestor))
	}
	length := descendant.BitLength() - ancestor.BitLength()
	res := PathToBottom{length: EdgePathLength(length)}
	mask := bitMask(length)
	res.path.And(&descendant.value, &mask)
	return res
}

func bitMask(bits int) uint256.Int {
	res := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bits))
	return *res.SubUint64(res, 1)
}

func (p PathToBottom) String() string {
	builder := strings.Builder{}
	for i := 0; i < p.Length(); i++ {
		if p.StepAt(i) == 0 {
			builder.WriteByte('0')
		} else {
			builder.WriteByte('1')
		}
	}
	return fmt.Sprintf("[%s]", builder.String())
}
