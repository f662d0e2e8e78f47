package storage

//go:generate mockgen -source storage.go -destination storage_mocks.go -package storage

import (
	"context"

	"github.com/starkware-libs/committer/common"
)

// Storage is the key-value collaborator the commitment engine runs against.
// Implementations must support concurrent readers; MultiSetAndDelete must be
// atomic from the engine's point of view, meaning either all entries of the
// batch become visible or none do.
//
// The engine performs no retries. Any error returned by an operation is
// fatal for the batch being committed.
type Storage interface {
	// Get retrieves the value stored under the given key. The second result
	// indicates whether the key was present.
	Get(ctx context.Context, key []byte) ([]byte, bool, error)

	// MultiGet retrieves the values for all given keys in one operation. The
	// resulting slice has one entry per key, in order; absent keys yield a
	// nil entry.
	MultiGet(ctx context.Context, keys [][]byte) ([][]byte, error)

	// MultiSetAndDelete applies all writes and deletes of the given batch as
	// one atomic operation and reports the number of applied operations.
	MultiSetAndDelete(ctx context.Context, batch *WriteBatch) (int, error)
}

// WriteBatch accumulates the write and delete operations of one committed
// batch. The zero value is an empty batch ready for use.
type WriteBatch struct {
	writes  []writeEntry
	deletes [][]byte
}

type writeEntry struct {
	key   []byte
	value []byte
}

// Put schedules the given key/value pair to be written.
func (b *WriteBatch) Put(key []byte, value []byte) {
	b.writes = append(b.writes, writeEntry{key: key, value: value})
}

// Delete schedules the given key to be removed.
func (b *WriteBatch) Delete(key []byte) {
	b.deletes = append(b.deletes, key)
}

// Size returns the total number of scheduled operations.
func (b *WriteBatch) Size() int {
	return len(b.writes) + len(b.deletes)
}

// ForEach visits all scheduled operations; a nil value marks a delete.
func (b *WriteBatch) ForEach(visit func(key []byte, value []byte)) {
	for _, entry := range b.writes {
		visit(entry.key, entry.value)
	}
	for _, key := range b.deletes {
		visit(key, nil)
	}
}

// Common storage error values.
const (
	// ErrMissingNode is produced when a node the previous trie shape
	// guarantees to exist cannot be found. It signals database corruption
	// and aborts the batch without retry.
	ErrMissingNode = common.ConstError("missing trie node in storage")
)
