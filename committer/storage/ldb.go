package storage

import (
	"context"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDbStorage is a Storage implementation persisting all data in a LevelDB
// instance. The atomicity contract of MultiSetAndDelete is discharged by
// LevelDB's write batches.
type LevelDbStorage struct {
	db           *leveldb.DB
	writeOptions *opt.WriteOptions
}

// OpenLevelDbStorage opens (or creates) a LevelDB-backed storage in the given
// directory.
func OpenLevelDbStorage(directory string) (*LevelDbStorage, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB in %s: %w", directory, err)
	}
	return &LevelDbStorage{db: db, writeOptions: &opt.WriteOptions{Sync: true}}, nil
}

func (s *LevelDbStorage) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *LevelDbStorage) MultiGet(ctx context.Context, keys [][]byte) ([][]byte, error) {
	// All lookups are served from one snapshot so that a multi-get never
	// observes a concurrent write batch half-applied.
	snapshot, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	defer snapshot.Release()

	res := make([][]byte, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, err := snapshot.Get(key, nil)
		if err == leveldb.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		res[i] = value
	}
	return res, nil
}

func (s *LevelDbStorage) MultiSetAndDelete(_ context.Context, batch *WriteBatch) (int, error) {
	ldbBatch := &leveldb.Batch{}
	batch.ForEach(func(key []byte, value []byte) {
		if value == nil {
			ldbBatch.Delete(key)
		} else {
			ldbBatch.Put(key, value)
		}
	})
	if err := s.db.Write(ldbBatch, s.writeOptions); err != nil {
		return 0, err
	}
	return batch.Size(), nil
}

// Close flushes and closes the underlying database.
func (s *LevelDbStorage) Close() error {
	return s.db.Close()
}
