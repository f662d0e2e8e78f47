package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/golang/mock/gomock"
)

func TestCachedStorage_ServesRepeatedReadsFromTheCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockStorage(ctrl)
	store := NewCachedStorage(backend, 16)

	backend.EXPECT().Get(gomock.Any(), []byte("a")).Return([]byte{1}, true, nil).Times(1)
	for i := 0; i < 3; i++ {
		value, exists, err := store.Get(context.Background(), []byte("a"))
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if !exists || !bytes.Equal(value, []byte{1}) {
			t.Errorf("unexpected value %x (present: %t)", value, exists)
		}
	}
}

func TestCachedStorage_CachesAbsence(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockStorage(ctrl)
	store := NewCachedStorage(backend, 16)

	backend.EXPECT().Get(gomock.Any(), []byte("a")).Return(nil, false, nil).Times(1)
	for i := 0; i < 2; i++ {
		if _, exists, err := store.Get(context.Background(), []byte("a")); err != nil || exists {
			t.Errorf("absent key reported as present (err: %v)", err)
		}
	}
}

func TestCachedStorage_MultiGetFetchesOnlyTheMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := NewMockStorage(ctrl)
	store := NewCachedStorage(backend, 16)

	backend.EXPECT().Get(gomock.Any(), []byte("a")).Return([]byte{1}, true, nil)
	if _, _, err := store.Get(context.Background(), []byte("a")); err != nil {
		t.Fatalf("failed to warm the cache: %v", err)
	}

	backend.EXPECT().MultiGet(gomock.Any(), [][]byte{[]byte("b")}).Return([][]byte{{2}}, nil)
	values, err := store.MultiGet(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !bytes.Equal(values[0], []byte{1}) || !bytes.Equal(values[1], []byte{2}) {
		t.Errorf("unexpected values %x and %x", values[0], values[1])
	}
}

func TestCachedStorage_WritesUpdateTheCache(t *testing.T) {
	backend := NewMapStorage()
	store := NewCachedStorage(backend, 16)

	setup := WriteBatch{}
	setup.Put([]byte("a"), []byte{1})
	if _, err := store.MultiSetAndDelete(context.Background(), &setup); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if _, _, err := store.Get(context.Background(), []byte("a")); err != nil {
		t.Fatalf("failed to read: %v", err)
	}

	batch := WriteBatch{}
	batch.Put([]byte("a"), []byte{2})
	batch.Delete([]byte("b"))
	if _, err := store.MultiSetAndDelete(context.Background(), &batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	value, exists, err := store.Get(context.Background(), []byte("a"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !exists || !bytes.Equal(value, []byte{2}) {
		t.Errorf("stale value after write, got %x (present: %t)", value, exists)
	}
	if _, exists, _ := store.Get(context.Background(), []byte("b")); exists {
		t.Errorf("deleted key reported as present")
	}
}

func TestLruCache_EvictsTheLeastRecentlyUsedEntry(t *testing.T) {
	cache := newLruCache(2)
	cache.set("a", []byte{1})
	cache.set("b", []byte{2})
	cache.get("a") // "b" is now the eviction candidate
	cache.set("c", []byte{3})

	if _, exists := cache.get("b"); exists {
		t.Errorf("the least recently used entry was not evicted")
	}
	for key, want := range map[string]byte{"a": 1, "c": 3} {
		value, exists := cache.get(key)
		if !exists || value[0] != want {
			t.Errorf("entry %q lost or corrupted, got %x (present: %t)", key, value, exists)
		}
	}
}

func TestLruCache_UpdatesExistingEntriesInPlace(t *testing.T) {
	cache := newLruCache(2)
	cache.set("a", []byte{1})
	cache.set("a", []byte{2})
	cache.set("b", []byte{3})

	value, exists := cache.get("a")
	if !exists || value[0] != 2 {
		t.Errorf("entry not updated, got %x (present: %t)", value, exists)
	}
}
