package txstore

import (
	"path/filepath"
	"testing"

	"github.com/dario-ramos/bitprim-blockchain/core"
	"github.com/dario-ramos/bitprim-blockchain/kvstore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "txs.ldb")
	kv, err := kvstore.OpenLevelStore(dir)
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return New(kv)
}

func testTx() *core.MsgTx {
	tx := core.NewMsgTx(1)
	tx.AddTxIn(&core.TxIn{
		PreviousOutPoint: core.OutPoint{Index: 0xffffffff},
		SignatureScript:  []byte{0x01, 0x02},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&core.TxOut{Value: 5000000000, PkScript: []byte{0x76, 0xa9}})
	return tx
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	tx := testTx()
	hash := tx.TxHash()

	if err := s.Put(tx, Position{Height: 10, Index: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, pos, err := s.Get(hash)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pos.Height != 10 || pos.Index != 1 {
		t.Fatalf("position mismatch: %+v", pos)
	}
	if got.TxHash() != hash {
		t.Fatalf("hash mismatch after round trip")
	}
}

func TestPositionWithoutFullDeserialize(t *testing.T) {
	s := openTestStore(t)
	tx := testTx()
	hash := tx.TxHash()
	if err := s.Put(tx, Position{Height: 3, Index: 0}); err != nil {
		t.Fatalf("put: %v", err)
	}

	pos, err := s.Position(hash)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Height != 3 {
		t.Fatalf("expected height 3, got %d", pos.Height)
	}
}

func TestHasAndDelete(t *testing.T) {
	s := openTestStore(t)
	tx := testTx()
	hash := tx.TxHash()
	if err := s.Put(tx, Position{Height: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	ok, err := s.Has(hash)
	if err != nil || !ok {
		t.Fatalf("expected tx present: ok=%v err=%v", ok, err)
	}

	if err := s.Delete(hash); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = s.Has(hash)
	if err != nil || ok {
		t.Fatalf("expected tx absent after delete: ok=%v err=%v", ok, err)
	}
}
