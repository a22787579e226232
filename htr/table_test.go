package htr

import (
	"path/filepath"
	"testing"

	"github.com/dario-ramos/bitprim-blockchain/mmapfile"
)

func openTestFile(t *testing.T) *mmapfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.dat")
	f, err := mmapfile.Open(path)
	if err != nil {
		t.Fatalf("open mmapfile: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func keyWithFirstWord(w uint32) [KeySize]byte {
	var k [KeySize]byte
	k[0] = byte(w)
	k[1] = byte(w >> 8)
	k[2] = byte(w >> 16)
	k[3] = byte(w >> 24)
	return k
}

func TestGetStoreRoundTrip(t *testing.T) {
	f := openTestFile(t)
	tbl, err := Create(f, 4, 8)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	key := keyWithFirstWord(1)
	if err := tbl.Store(key, func(v []byte) { copy(v, []byte("01234567")) }); err != nil {
		t.Fatalf("store: %v", err)
	}

	got := tbl.Get(key)
	if got == nil {
		t.Fatalf("expected value, got nil")
	}
	if string(got) != "01234567" {
		t.Fatalf("value mismatch: %q", got)
	}

	absent := keyWithFirstWord(99)
	if v := tbl.Get(absent); v != nil {
		t.Fatalf("expected nil for absent key, got %v", v)
	}
}

// TestBucketCollisionChain matches spec §8 Scenario 2: three keys that
// collide on the same bucket (identical fold-XOR mod B) must each remain
// independently retrievable, and removing the middle one must not disturb
// the other two.
func TestBucketCollisionChain(t *testing.T) {
	f := openTestFile(t)
	const buckets = 4
	tbl, err := Create(f, buckets, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Keys differing only in byte 10, beyond the first 4-byte fold word:
	// their folded values differ, but not in the low bits that pick one of
	// 4 buckets, so they collide on the same bucket.
	keyA := keyWithFirstWord(1)
	keyA[10] = 0xAA
	keyB := keyWithFirstWord(1)
	keyB[10] = 0xBB
	keyC := keyWithFirstWord(1)
	keyC[10] = 0xCC

	if tbl.bucketOf(keyA) != tbl.bucketOf(keyB) || tbl.bucketOf(keyB) != tbl.bucketOf(keyC) {
		t.Fatalf("test setup invalid: keys do not collide")
	}

	store := func(k [KeySize]byte, val uint32) {
		err := tbl.Store(k, func(v []byte) {
			v[0] = byte(val)
			v[1] = byte(val >> 8)
			v[2] = byte(val >> 16)
			v[3] = byte(val >> 24)
		})
		if err != nil {
			t.Fatalf("store: %v", err)
		}
	}
	store(keyA, 100)
	store(keyB, 200)
	store(keyC, 300)

	if v := tbl.Get(keyA); v == nil || v[0] != 100 {
		t.Fatalf("keyA lookup failed: %v", v)
	}
	if v := tbl.Get(keyB); v == nil || v[0] != 200 {
		t.Fatalf("keyB lookup failed: %v", v)
	}
	if v := tbl.Get(keyC); v == nil || v[0] != 300 {
		t.Fatalf("keyC lookup failed: %v", v)
	}

	if !tbl.Unlink(keyB) {
		t.Fatalf("expected unlink of keyB to succeed")
	}
	if v := tbl.Get(keyB); v != nil {
		t.Fatalf("expected keyB gone after unlink, got %v", v)
	}
	if v := tbl.Get(keyA); v == nil || v[0] != 100 {
		t.Fatalf("keyA lookup broken after unlinking keyB: %v", v)
	}
	if v := tbl.Get(keyC); v == nil || v[0] != 300 {
		t.Fatalf("keyC lookup broken after unlinking keyB: %v", v)
	}
}

func TestUnlinkAbsentKeyReturnsFalse(t *testing.T) {
	f := openTestFile(t)
	tbl, err := Create(f, 8, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tbl.Unlink(keyWithFirstWord(42)) {
		t.Fatalf("expected unlink of absent key to return false")
	}
}

func TestOpenReopensExistingTable(t *testing.T) {
	f := openTestFile(t)
	tbl, err := Create(f, 16, 4)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	key := keyWithFirstWord(7)
	if err := tbl.Store(key, func(v []byte) { v[0] = 55 }); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := tbl.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	reopened, err := Open(f, 16, 4)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	v := reopened.Get(key)
	if v == nil || v[0] != 55 {
		t.Fatalf("value did not survive reopen: %v", v)
	}
	if reopened.Rows() != 1 {
		t.Fatalf("expected 1 row, got %d", reopened.Rows())
	}
}
