package utxoindex

import (
	"path/filepath"
	"testing"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

func hashFromByte(b byte) chainhash.Hash {
	var h chainhash.Hash
	h[0] = b
	return h
}

func TestStoreGetRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	outpoint := core.OutPoint{Hash: hashFromByte(1), Index: 0}
	spender := core.InputPoint{Hash: hashFromByte(2), Index: 3}

	if _, ok := idx.Get(outpoint); ok {
		t.Fatalf("expected outpoint absent before store")
	}

	if err := idx.Store(outpoint, spender); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, ok := idx.Get(outpoint)
	if !ok {
		t.Fatalf("expected outpoint present after store")
	}
	if got.Hash != spender.Hash || got.Index != spender.Index {
		t.Fatalf("spender mismatch: got %+v want %+v", got, spender)
	}

	if !idx.Remove(outpoint) {
		t.Fatalf("expected remove to report true")
	}
	if _, ok := idx.Get(outpoint); ok {
		t.Fatalf("expected outpoint absent after remove")
	}
	if idx.Remove(outpoint) {
		t.Fatalf("expected second remove to report false")
	}
}

func TestDifferentIndexesOfSameTxDoNotCollideValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	txHash := hashFromByte(9)
	out0 := core.OutPoint{Hash: txHash, Index: 0}
	out1 := core.OutPoint{Hash: txHash, Index: 1}

	if err := idx.Store(out0, core.InputPoint{Hash: hashFromByte(10), Index: 0}); err != nil {
		t.Fatalf("store out0: %v", err)
	}
	if err := idx.Store(out1, core.InputPoint{Hash: hashFromByte(11), Index: 0}); err != nil {
		t.Fatalf("store out1: %v", err)
	}

	got0, ok := idx.Get(out0)
	if !ok || got0.Hash != hashFromByte(10) {
		t.Fatalf("out0 mismatch: %+v", got0)
	}
	got1, ok := idx.Get(out1)
	if !ok || got1.Hash != hashFromByte(11) {
		t.Fatalf("out1 mismatch: %+v", got1)
	}
}

func TestStatinfoReportsRowGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer idx.Close()

	buckets, rows := idx.Statinfo()
	if buckets != Buckets {
		t.Fatalf("expected %d buckets, got %d", Buckets, buckets)
	}
	if rows != 0 {
		t.Fatalf("expected 0 rows initially, got %d", rows)
	}

	for i := uint32(0); i < 5; i++ {
		outpoint := core.OutPoint{Hash: hashFromByte(byte(i)), Index: i}
		if err := idx.Store(outpoint, core.InputPoint{Hash: hashFromByte(byte(i + 100)), Index: 0}); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}
	_, rows = idx.Statinfo()
	if rows != 5 {
		t.Fatalf("expected 5 rows, got %d", rows)
	}
}

func TestReopenPersistsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "utxo.dat")
	idx, err := Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	outpoint := core.OutPoint{Hash: hashFromByte(5), Index: 2}
	spender := core.InputPoint{Hash: hashFromByte(6), Index: 1}
	if err := idx.Store(outpoint, spender); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := idx.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.Get(outpoint)
	if !ok {
		t.Fatalf("expected outpoint present after reopen")
	}
	if got.Hash != spender.Hash || got.Index != spender.Index {
		t.Fatalf("spender mismatch after reopen: %+v", got)
	}
}
