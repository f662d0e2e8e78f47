package storage

import (
	"bytes"
	"context"
	"testing"
)

func TestMapStorage_GetReportsPresence(t *testing.T) {
	store := NewMapStorage()
	batch := WriteBatch{}
	batch.Put([]byte("a"), []byte{1})
	if _, err := store.MultiSetAndDelete(context.Background(), &batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	value, exists, err := store.Get(context.Background(), []byte("a"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if !exists {
		t.Fatalf("written key reported as absent")
	}
	if got, want := value, []byte{1}; !bytes.Equal(got, want) {
		t.Errorf("unexpected value, wanted %x, got %x", want, got)
	}

	if _, exists, _ := store.Get(context.Background(), []byte("b")); exists {
		t.Errorf("absent key reported as present")
	}
}

func TestMapStorage_MultiGetReturnsNilForAbsentKeys(t *testing.T) {
	store := NewMapStorage()
	batch := WriteBatch{}
	batch.Put([]byte("a"), []byte{1})
	batch.Put([]byte("c"), []byte{3})
	if _, err := store.MultiSetAndDelete(context.Background(), &batch); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	values, err := store.MultiGet(context.Background(), [][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if got, want := len(values), 3; got != want {
		t.Fatalf("unexpected number of results, wanted %d, got %d", want, got)
	}
	if values[1] != nil {
		t.Errorf("absent key should yield a nil entry, got %x", values[1])
	}
	if !bytes.Equal(values[0], []byte{1}) || !bytes.Equal(values[2], []byte{3}) {
		t.Errorf("unexpected values %x and %x", values[0], values[2])
	}
}

func TestMapStorage_MultiSetAndDeleteAppliesBothKinds(t *testing.T) {
	store := NewMapStorage()
	setup := WriteBatch{}
	setup.Put([]byte("a"), []byte{1})
	setup.Put([]byte("b"), []byte{2})
	if _, err := store.MultiSetAndDelete(context.Background(), &setup); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	batch := WriteBatch{}
	batch.Put([]byte("c"), []byte{3})
	batch.Delete([]byte("a"))
	applied, err := store.MultiSetAndDelete(context.Background(), &batch)
	if err != nil {
		t.Fatalf("failed to apply batch: %v", err)
	}
	if got, want := applied, 2; got != want {
		t.Errorf("unexpected number of applied operations, wanted %d, got %d", want, got)
	}
	if store.Has([]byte("a")) {
		t.Errorf("deleted key still present")
	}
	if got, want := store.NumEntries(), 2; got != want {
		t.Errorf("unexpected number of entries, wanted %d, got %d", want, got)
	}
}

func TestWriteBatch_SizeCountsWritesAndDeletes(t *testing.T) {
	batch := WriteBatch{}
	if got, want := batch.Size(), 0; got != want {
		t.Errorf("unexpected size of empty batch, wanted %d, got %d", want, got)
	}
	batch.Put([]byte("a"), []byte{1})
	batch.Put([]byte("b"), []byte{2})
	batch.Delete([]byte("c"))
	if got, want := batch.Size(), 3; got != want {
		t.Errorf("unexpected batch size, wanted %d, got %d", want, got)
	}
}

func TestWriteBatch_ForEachMarksDeletesWithNil(t *testing.T) {
	batch := WriteBatch{}
	batch.Put([]byte("a"), []byte{1})
	batch.Delete([]byte("b"))

	visited := map[string][]byte{}
	batch.ForEach(func(key []byte, value []byte) {
		visited[string(key)] = value
	})
	if got, want := len(visited), 2; got != want {
		t.Fatalf("unexpected number of visited operations, wanted %d, got %d", want, got)
	}
	if visited["b"] != nil {
		t.Errorf("delete should be visited with a nil value, got %x", visited["b"])
	}
	if !bytes.Equal(visited["a"], []byte{1}) {
		t.Errorf("unexpected visited value %x", visited["a"])
	}
}
