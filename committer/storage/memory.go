package storage

import (
	"context"
	"sync"
)

// MapStorage is an in-memory Storage implementation backed by a plain map.
// It serves as the reference semantics for persistent backends and as a
// convenient test double. All operations are safe for concurrent use.
type MapStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMapStorage creates an empty in-memory storage.
func NewMapStorage() *MapStorage {
	return &MapStorage{data: map[string][]byte{}}
}

func (s *MapStorage) Get(_ context.Context, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.data[string(key)]
	return value, exists, nil
}

func (s *MapStorage) MultiGet(_ context.Context, keys [][]byte) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([][]byte, len(keys))
	for i, key := range keys {
		if value, exists := s.data[string(key)]; exists {
			res[i] = value
		}
	}
	return res, nil
}

func (s *MapStorage) MultiSetAndDelete(_ context.Context, batch *WriteBatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	batch.ForEach(func(key []byte, value []byte) {
		if value == nil {
			delete(s.data, string(key))
		} else {
			s.data[string(key)] = value
		}
		count++
	})
	return count, nil
}

// NumEntries returns the number of stored key/value pairs.
func (s *MapStorage) NumEntries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Has tests whether the given key is present.
func (s *MapStorage) Has(key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.data[string(key)]
	return exists
}
