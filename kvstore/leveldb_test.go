package kvstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *LevelStore {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "db")
	s, err := OpenLevelStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, err := s.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("value mismatch: %q", v)
	}

	if err := s.Delete([]byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get([]byte("k1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBatchWrite(t *testing.T) {
	s := openTestStore(t)

	b := s.NewBatch()
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("b"), []byte("2"))
	if err := b.Write(); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, key := range []string{"a", "b"} {
		if _, err := s.Get([]byte(key)); err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
	}
}

func TestIteratorPrefix(t *testing.T) {
	s := openTestStore(t)
	for _, k := range []string{"p:1", "p:2", "q:1"} {
		if err := s.Put([]byte(k), []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}

	it := s.NewIterator([]byte("p:"))
	defer it.Close()
	count := 0
	for it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 keys with prefix p:, got %d", count)
	}
}

func TestSnapshotIsolatedFromLaterWrites(t *testing.T) {
	s := openTestStore(t)
	if err := s.Put([]byte("k"), []byte("before")); err != nil {
		t.Fatalf("put: %v", err)
	}

	snap, err := s.NewSnapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	defer snap.Release()

	if err := s.Put([]byte("k"), []byte("after")); err != nil {
		t.Fatalf("put after snapshot: %v", err)
	}

	v, err := snap.Get([]byte("k"))
	if err != nil {
		t.Fatalf("snapshot get: %v", err)
	}
	if string(v) != "before" {
		t.Fatalf("expected snapshot to see pre-write value, got %q", v)
	}
}

func TestDeleteRange(t *testing.T) {
	s := openTestStore(t)
	for _, k := range []string{"r:1", "r:2", "r:3"} {
		if err := s.Put([]byte(k), []byte("x")); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	if err := s.DeleteRange([]byte("r:1"), []byte("r:3")); err != nil {
		t.Fatalf("delete range: %v", err)
	}
	if _, err := s.Get([]byte("r:1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected r:1 deleted")
	}
	if _, err := s.Get([]byte("r:2")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected r:2 deleted")
	}
	if _, err := s.Get([]byte("r:3")); err != nil {
		t.Fatalf("expected r:3 to survive (end exclusive): %v", err)
	}
}
