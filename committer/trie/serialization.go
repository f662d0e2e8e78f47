package trie

import (
	"fmt"

	"github.com/starkware-libs/committer/common"
)

// This file defines the wire format of persisted nodes and leaves.
//
// Field elements use a variable-length "chooser nibble" scheme: the first
// nibble of the encoding selects between packing the value's nibbles inline
// (small values), a byte-count header followed by that many value bytes
// (medium values), and a fixed full-width encoding (large values). The
// encoder always picks the shortest applicable form, making the encoding
// canonical; the decoder rejects every non-canonical layout.
//
// Inner nodes come in two shapes. A binary node persists only its own hash;
// its children are addressed by index arithmetic and live under their own
// keys. An edge node persists its bottom hash, its path length, and the path
// bits in little-endian order, sized to the length. The two shapes are told
// apart by the value size: exactly 32 bytes is a binary node, longer is an
// edge.

const (
	// Chooser values 0..maxInlineNibbles carry the value nibble count.
	maxInlineNibbles = 13
	// byteCountChooser announces a byte-count nibble and that many bytes.
	byteCountChooser = 0xE
	// fullWidthChooser announces a fixed 32-byte value.
	fullWidthChooser = 0xF

	maxCountedBytes = 16
)

// Serialization error values. All of them abort the batch that encountered
// them; none are retryable.
const (
	ErrInvalidChooser  = common.ConstError("invalid chooser nibble layout")
	ErrCorruptedBytes  = common.ConstError("corrupted node encoding")
	ErrInvalidEdgePath = common.ConstError("invalid edge path encoding")
)

// appendFelt appends the chooser-nibble encoding of the given value.
func appendFelt(dst []byte, value common.Felt) []byte {
	full := value.Bytes()
	significant := full[:]
	for len(significant) > 0 && significant[0] == 0 {
		significant = significant[1:]
	}

	nibbles := 2 * len(significant)
	if nibbles > 0 && significant[0]>>4 == 0 {
		nibbles--
	}

	switch {
	case nibbles <= maxInlineNibbles:
		return appendPackedNibbles(dst, byte(nibbles), significant, nibbles)
	case len(significant) <= maxCountedBytes:
		dst = append(dst, byteCountChooser<<4|byte(len(significant)-1))
		return append(dst, significant...)
	default:
		dst = append(dst, fullWidthChooser<<4)
		return append(dst, full[:]...)
	}
}

// appendPackedNibbles writes the chooser nibble followed by the value's
// nibbles, padded with a zero nibble to the next byte boundary.
func appendPackedNibbles(dst []byte, chooser byte, significant []byte, nibbles int) []byte {
	sequence := make([]byte, 0, nibbles+1)
	sequence = append(sequence, chooser)
	for i := 0; i < nibbles; i++ {
		// Nibbles are indexed from the least significant end of the value.
		position := nibbles - 1 - i
		b := significant[len(significant)-1-position/2]
		if position%2 == 1 {
			b >>= 4
		}
		sequence = append(sequence, b&0xF)
	}
	for i := 0; i < len(sequence); i += 2 {
		packed := sequence[i] << 4
		if i+1 < len(sequence) {
			packed |= sequence[i+1]
		}
		dst = append(dst, packed)
	}
	return dst
}

// readFelt decodes one chooser-nibble encoded value from the head of the
// given buffer and returns the remaining bytes.
func readFelt(src []byte) (common.Felt, []byte, error) {
	if len(src) == 0 {
		return common.Felt{}, nil, fmt.Errorf("%w: empty value", ErrCorruptedBytes)
	}
	chooser := src[0] >> 4

	switch {
	case chooser <= maxInlineNibbles:
		return readPackedNibbles(src, int(chooser))

	case chooser == byteCountChooser:
		size := int(src[0]&0xF) + 1
		if len(src) < 1+size {
			return common.Felt{}, nil, fmt.Errorf("%w: truncated %d-byte value", ErrCorruptedBytes, size)
		}
		payload := src[1 : 1+size]
		if payload[0] == 0 {
			return common.Felt{}, nil, fmt.Errorf("%w: non-minimal byte count", ErrInvalidChooser)
		}
		if nibbleCount(payload) <= maxInlineNibbles {
			return common.Felt{}, nil, fmt.Errorf("%w: counted form used for inline-size value", ErrInvalidChooser)
		}
		return common.NewFeltFromBytes(payload), src[1+size:], nil

	default: // fullWidthChooser
		if src[0]&0xF != 0 {
			return common.Felt{}, nil, fmt.Errorf("%w: non-zero padding nibble", ErrInvalidChooser)
		}
		if len(src) < 1+common.FeltSize {
			return common.Felt{}, nil, fmt.Errorf("%w: truncated full-width value", ErrCorruptedBytes)
		}
		payload := src[1 : 1+common.FeltSize]
		significant := 0
		for significant < len(payload) && payload[significant] == 0 {
			significant++
		}
		if len(payload)-significant <= maxCountedBytes {
			return common.Felt{}, nil, fmt.Errorf("%w: full-width form used for counted-size value", ErrInvalidChooser)
		}
		if !isBelowFieldModulus(payload) {
			return common.Felt{}, nil, fmt.Errorf("%w: value exceeds the field modulus", ErrCorruptedBytes)
		}
		return common.NewFeltFromBytes(payload), src[1+common.FeltSize:], nil
	}
}

func readPackedNibbles(src []byte, nibbles int) (common.Felt, []byte, error) {
	size := (nibbles + 2) / 2
	if len(src) < size {
		return common.Felt{}, nil, fmt.Errorf("%w: truncated inline value", ErrCorruptedBytes)
	}
	value := make([]byte, common.FeltSize)
	for i := 0; i < nibbles; i++ {
		position := i + 1 // skip the chooser nibble
		nibble := src[position/2]
		if position%2 == 0 {
			nibble >>= 4
		}
		nibble &= 0xF
		if i == 0 && nibble == 0 {
			return common.Felt{}, nil, fmt.Errorf("%w: non-minimal nibble count", ErrInvalidChooser)
		}
		target := common.FeltSize - 1 - (nibbles-1-i)/2
		if (nibbles-1-i)%2 == 1 {
			value[target] |= nibble << 4
		} else {
			value[target] |= nibble
		}
	}
	if (nibbles+1)%2 == 1 {
		// Odd number of header+value nibbles leaves a padding nibble that
		// must be zero.
		if src[size-1]&0xF != 0 {
			return common.Felt{}, nil, fmt.Errorf("%w: non-zero padding nibble", ErrInvalidChooser)
		}
	}
	return common.NewFeltFromBytes(value), src[size:], nil
}

func nibbleCount(significant []byte) int {
	res := 2 * len(significant)
	if res > 0 && significant[0]>>4 == 0 {
		res--
	}
	return res
}

// isBelowFieldModulus tests whether the 32 payload bytes already are the
// canonical encoding of a field element, i.e. reduction is a no-op.
func isBelowFieldModulus(payload []byte) bool {
	canonical := common.NewFeltFromBytes(payload).Bytes()
	if len(payload) != len(canonical) {
		return false
	}
	for i := range canonical {
		if canonical[i] != payload[i] {
			return false
		}
	}
	return true
}

// ----------------------------------------------------------------------------
//                            Inner node codec
// ----------------------------------------------------------------------------

// StoredInnerNode is the decoded form of a persisted inner node.
type StoredInnerNode interface {
	isStoredInnerNode()
}

// StoredBinary is a persisted branch point; only its own hash is stored.
type StoredBinary struct {
	Hash common.Felt
}

// StoredEdge is a persisted edge; its own hash is derivable from the stored
// bottom hash and path via the edge hash rule.
type StoredEdge struct {
	BottomHash common.Felt
	Path       PathToBottom
}

func (StoredBinary) isStoredInnerNode() {}
func (StoredEdge) isStoredInnerNode()   {}

// Serialize encodes this node for persistence.
func (n FilledNode) Serialize() []byte {
	switch data := n.Data.(type) {
	case BinaryData:
		hash := n.Hash.Bytes()
		return hash[:]
	case EdgeData:
		bottom := data.BottomHash.Bytes()
		res := make([]byte, 0, common.FeltSize+1+len(data.Path.PathBytes()))
		res = append(res, bottom[:]...)
		res = append(res, byte(data.Path.Length()))
		return append(res, data.Path.PathBytes()...)
	case Leaf:
		return data.Serialize()
	default:
		panic("unsupported node data type")
	}
}

// DeserializeInnerNode decodes a persisted inner node.
func DeserializeInnerNode(data []byte) (StoredInnerNode, error) {
	if len(data) == common.FeltSize {
		return StoredBinary{Hash: common.NewFeltFromBytes(data)}, nil
	}
	if len(data) < common.FeltSize+1 {
		return nil, fmt.Errorf("%w: inner node of %d bytes", ErrCorruptedBytes, len(data))
	}
	bottomHash := common.NewFeltFromBytes(data[:common.FeltSize])
	length := int(data[common.FeltSize])
	pathData := data[common.FeltSize+1:]
	if length < 1 || length > TreeHeight {
		return nil, fmt.Errorf("%w: path length %d", ErrInvalidEdgePath, length)
	}
	if len(pathData) != (length+7)/8 {
		return nil, fmt.Errorf("%w: %d path bytes for length %d", ErrInvalidEdgePath, len(pathData), length)
	}
	pathValue := make([]byte, len(pathData))
	for i, b := range pathData {
		pathValue[len(pathData)-1-i] = b
	}
	path, err := NewPathToBottom(common.NewFeltFromBytes(pathValue), length)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEdgePath, err)
	}
	return StoredEdge{BottomHash: bottomHash, Path: path}, nil
}

// ----------------------------------------------------------------------------
//                               Leaf codec
// ----------------------------------------------------------------------------

func (l StorageValue) Serialize() []byte {
	return appendFelt(nil, l.Value)
}

func (l CompiledClassHash) Serialize() []byte {
	return appendFelt(nil, l.Value)
}

func (l ContractState) Serialize() []byte {
	res := appendFelt(nil, l.ClassHash)
	res = appendFelt(res, l.StorageRootHash)
	return appendFelt(res, l.Nonce)
}

// DeserializeStorageValue decodes a storage-trie leaf.
func DeserializeStorageValue(data []byte) (Leaf, error) {
	value, rest, err := readFelt(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after storage value", ErrCorruptedBytes, len(rest))
	}
	return StorageValue{Value: value}, nil
}

// DeserializeCompiledClassHash decodes a classes-trie leaf.
func DeserializeCompiledClassHash(data []byte) (Leaf, error) {
	value, rest, err := readFelt(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after compiled class hash", ErrCorruptedBytes, len(rest))
	}
	return CompiledClassHash{Value: value}, nil
}

// DeserializeContractState decodes a contracts-trie leaf.
func DeserializeContractState(data []byte) (Leaf, error) {
	classHash, rest, err := readFelt(data)
	if err != nil {
		return nil, err
	}
	storageRoot, rest, err := readFelt(rest)
	if err != nil {
		return nil, err
	}
	nonce, rest, err := readFelt(rest)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after contract state", ErrCorruptedBytes, len(rest))
	}
	return ContractState{ClassHash: classHash, StorageRootHash: storageRoot, Nonce: nonce}, nil
}
