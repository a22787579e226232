package recordstore

import (
	"path/filepath"
	"testing"

	"github.com/dario-ramos/bitprim-blockchain/mmapfile"
)

func openTestFile(t *testing.T) *mmapfile.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.dat")
	f, err := mmapfile.Open(path)
	if err != nil {
		t.Fatalf("open mmapfile: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAllocateGetSync(t *testing.T) {
	f := openTestFile(t)
	a, err := Create(f, 0, 16)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	idx0, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if idx0 != 0 {
		t.Fatalf("expected first index 0, got %d", idx0)
	}
	copy(a.Get(idx0), []byte("hello record!!!!"))

	idx1, err := a.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if idx1 != 1 {
		t.Fatalf("expected second index 1, got %d", idx1)
	}
	if a.Count() != 2 {
		t.Fatalf("expected count 2, got %d", a.Count())
	}

	if err := a.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	if string(a.Get(idx0)) != "hello record!!!!" {
		t.Fatalf("record content mismatch: %q", a.Get(idx0))
	}
}

func TestAllocateGrowsMappedRegion(t *testing.T) {
	f := openTestFile(t)
	a, err := Create(f, 0, 32)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// Allocate enough records to force at least one amortized grow.
	for i := 0; i < 100; i++ {
		if _, err := a.Allocate(); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if a.Count() != 100 {
		t.Fatalf("expected 100 records, got %d", a.Count())
	}
	if f.Len() < a.requiredLen(100) {
		t.Fatalf("mapped region too small: %d < %d", f.Len(), a.requiredLen(100))
	}
}

func TestOpenReadsPersistedCount(t *testing.T) {
	f := openTestFile(t)
	a, err := Create(f, 0, 8)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := a.Allocate(); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	if err := a.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	reopened, err := Open(f, 0, 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if reopened.Count() != 3 {
		t.Fatalf("expected count 3, got %d", reopened.Count())
	}
}
