package storage

import (
	"context"
	"sync"
)

// CachedStorage decorates a Storage with an LRU read cache over individual
// entries. Skeleton construction re-reads the upper trie levels on every
// batch, so even a small cache absorbs most of the per-level multi-get
// volume. Writes go through to the backing storage and update the cache, so
// a cached read never observes a value older than the last applied batch.
type CachedStorage struct {
	backend Storage

	mu    sync.Mutex
	cache *lruCache
}

// NewCachedStorage wraps the given storage with a read cache of the given
// capacity (in entries).
func NewCachedStorage(backend Storage, capacity int) *CachedStorage {
	return &CachedStorage{backend: backend, cache: newLruCache(capacity)}
}

func (s *CachedStorage) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	value, exists := s.cache.get(string(key))
	s.mu.Unlock()
	if exists {
		return value, value != nil, nil
	}

	value, present, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	if present {
		s.cache.set(string(key), value)
	} else {
		// Absence is cached as a nil value; trie reads probe absent
		// positions as often as present ones.
		s.cache.set(string(key), nil)
	}
	s.mu.Unlock()
	return value, present, nil
}

func (s *CachedStorage) MultiGet(ctx context.Context, keys [][]byte) ([][]byte, error) {
	res := make([][]byte, len(keys))
	missing := []int{}

	s.mu.Lock()
	for i, key := range keys {
		if value, exists := s.cache.get(string(key)); exists {
			res[i] = value
		} else {
			missing = append(missing, i)
		}
	}
	s.mu.Unlock()
	if len(missing) == 0 {
		return res, nil
	}

	missingKeys := make([][]byte, len(missing))
	for i, position := range missing {
		missingKeys[i] = keys[position]
	}
	fetched, err := s.backend.MultiGet(ctx, missingKeys)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	for i, position := range missing {
		res[position] = fetched[i]
		s.cache.set(string(keys[position]), fetched[i])
	}
	s.mu.Unlock()
	return res, nil
}

func (s *CachedStorage) MultiSetAndDelete(ctx context.Context, batch *WriteBatch) (int, error) {
	applied, err := s.backend.MultiSetAndDelete(ctx, batch)
	if err != nil {
		// The batch may be half-visible in a failing backend; drop the
		// cache rather than guess.
		s.mu.Lock()
		s.cache.clear()
		s.mu.Unlock()
		return applied, err
	}
	s.mu.Lock()
	batch.ForEach(func(key []byte, value []byte) {
		s.cache.set(string(key), value)
	})
	s.mu.Unlock()
	return applied, nil
}

// lruCache is a fixed-capacity map with least-recently-used eviction,
// specialized for storage entries. A nil value is a valid entry and caches
// the absence of a key.
type lruCache struct {
	entries  map[string]*cacheEntry
	capacity int
	head     *cacheEntry
	tail     *cacheEntry
}

type cacheEntry struct {
	key        string
	value      []byte
	prev, next *cacheEntry
}

func newLruCache(capacity int) *lruCache {
	if capacity < 1 {
		capacity = 1
	}
	return &lruCache{entries: make(map[string]*cacheEntry, capacity), capacity: capacity}
}

func (c *lruCache) get(key string) ([]byte, bool) {
	item, exists := c.entries[key]
	if !exists {
		return nil, false
	}
	c.touch(item)
	return item.value, true
}

func (c *lruCache) set(key string, value []byte) {
	item, exists := c.entries[key]
	if exists {
		item.value = value
		c.touch(item)
		return
	}
	if len(c.entries) >= c.capacity {
		item = c.dropLast()
	} else {
		item = &cacheEntry{}
	}
	item.key = key
	item.value = value
	c.entries[key] = item

	item.prev = nil
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = c.head
	}
}

func (c *lruCache) clear() {
	c.entries = make(map[string]*cacheEntry, c.capacity)
	c.head = nil
	c.tail = nil
}

// touch moves an entry to the head of the eviction queue.
func (c *lruCache) touch(item *cacheEntry) {
	if c.head == item {
		return
	}
	item.prev.next = item.next
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev = nil
	item.next = c.head
	c.head.prev = item
	c.head = item
}

// dropLast evicts the least recently used entry and returns its slot for
// reuse.
func (c *lruCache) dropLast() *cacheEntry {
	item := c.tail
	delete(c.entries, item.key)
	c.tail = item.prev
	if c.tail != nil {
		c.tail.next = nil
	} else {
		c.head = nil
	}
	return item
}
