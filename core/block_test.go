package core

import "testing"

func TestBlockTxLazyWrap(t *testing.T) {
	header := &BlockHeader{Version: 1}
	txs := []*MsgTx{NewMsgTx(1), NewMsgTx(1)}
	b, err := NewBlockFromHeaderAndTransactions(header, txs)
	if err != nil {
		t.Fatalf("new block: %v", err)
	}

	tx0, err := b.Tx(0)
	if err != nil {
		t.Fatalf("tx(0): %v", err)
	}
	if tx0.Index() != 0 {
		t.Fatalf("expected index 0, got %d", tx0.Index())
	}

	if _, err := b.Tx(5); err == nil {
		t.Fatalf("expected out of range error")
	}

	all := b.Transactions()
	if len(all) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(all))
	}
}

func TestBlockHashCached(t *testing.T) {
	b := NewBlock(&MsgBlock{Header: BlockHeader{Version: 2, Nonce: 42}})
	h1 := b.Hash()
	h2 := b.Hash()
	if *h1 != *h2 {
		t.Fatalf("block hash not stable across calls")
	}
}

func TestNewBlockFromHeaderAndTransactionsNilHeader(t *testing.T) {
	if _, err := NewBlockFromHeaderAndTransactions(nil, nil); err == nil {
		t.Fatalf("expected error for nil header")
	}
}

func TestLegacyDigestDiffersFromConsensusHash(t *testing.T) {
	b := NewBlock(&MsgBlock{Header: BlockHeader{Version: 3, Nonce: 7}})
	digest := b.LegacyDigest()
	if digest == *b.Hash() {
		t.Fatalf("legacy digest should not collide with the consensus hash algorithm")
	}
	if digest != b.LegacyDigest() {
		t.Fatalf("legacy digest should be stable across calls")
	}
}
