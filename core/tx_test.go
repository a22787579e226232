package core

import (
	"bytes"
	"testing"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
)

func TestMsgTxSerializeRoundTrip(t *testing.T) {
	tx := NewMsgTx(1)
	tx.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Index: 7},
		SignatureScript:  []byte{0x01, 0x02},
		Sequence:         0xffffffff,
	})
	tx.AddTxOut(&TxOut{Value: 5000, PkScript: []byte{0xac}})

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if buf.Len() != tx.SerializeSize() {
		t.Fatalf("size mismatch: got %d want %d", buf.Len(), tx.SerializeSize())
	}

	var got MsgTx
	if err := got.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Version != tx.Version || len(got.TxIn) != 1 || len(got.TxOut) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.TxOut[0].Value != 5000 {
		t.Fatalf("value mismatch: got %d", got.TxOut[0].Value)
	}
}

func TestIsCoinBaseTx(t *testing.T) {
	coinbase := NewMsgTx(1)
	coinbase.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Hash: chainhash.Hash{}, Index: ^uint32(0)},
	})
	if !IsCoinBaseTx(coinbase) {
		t.Fatalf("expected coinbase tx to be recognized")
	}

	var h chainhash.Hash
	h[0] = 0x01
	regular := NewMsgTx(1)
	regular.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Hash: h, Index: 0}})
	if IsCoinBaseTx(regular) {
		t.Fatalf("did not expect regular tx to be recognized as coinbase")
	}
}

func TestTxHashDeterministic(t *testing.T) {
	tx := NewMsgTx(1)
	tx.AddTxOut(&TxOut{Value: 1, PkScript: []byte{0x51}})
	h1 := tx.TxHash()
	h2 := tx.TxHash()
	if h1 != h2 {
		t.Fatalf("tx hash is not deterministic")
	}
}
