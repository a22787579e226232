package validator

import (
	"math/big"
	"testing"
	"time"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

func easyParams() *ConsensusParams {
	p := MainNetParams()
	p.PowLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return p
}

func coinbaseTx() *core.MsgTx {
	msgTx := core.NewMsgTx(1)
	msgTx.AddTxIn(&core.TxIn{
		PreviousOutPoint: core.OutPoint{Index: ^uint32(0)},
		SignatureScript:  []byte{0x02, 0x01, 0x02},
	})
	msgTx.AddTxOut(&core.TxOut{Value: 5000000000, PkScript: []byte{0x76, 0xa9}})
	return msgTx
}

func ordinaryTx(prevHash chainhash.Hash, lockTime uint32) *core.MsgTx {
	msgTx := core.NewMsgTx(1)
	msgTx.LockTime = lockTime
	msgTx.AddTxIn(&core.TxIn{PreviousOutPoint: core.OutPoint{Hash: prevHash, Index: 0}})
	msgTx.AddTxOut(&core.TxOut{Value: 100})
	return msgTx
}

func buildBlock(t *testing.T, params *ConsensusParams, txs []*core.MsgTx) *core.Block {
	t.Helper()
	wrapped := make([]*core.Tx, len(txs))
	for i, tx := range txs {
		wrapped[i] = core.NewTx(tx)
	}
	header := &core.BlockHeader{
		Version:    1,
		Timestamp:  time.Now().Unix(),
		Bits:       BigToCompact(params.PowLimit),
		MerkleRoot: CalcMerkleRoot(wrapped),
	}
	block, err := core.NewBlockFromHeaderAndTransactions(header, txs)
	if err != nil {
		t.Fatal(err)
	}
	return block
}

func alwaysRunning() bool { return false }

func TestCheckBlockAcceptsWellFormedBlock(t *testing.T) {
	params := easyParams()
	block := buildBlock(t, params, []*core.MsgTx{coinbaseTx()})
	if err := CheckBlock(block, params, time.Now(), alwaysRunning); err != nil {
		t.Fatalf("expected well-formed block to pass, got %v", err)
	}
}

func TestCheckBlockRejectsMissingCoinbase(t *testing.T) {
	params := easyParams()
	notCoinbase := ordinaryTx(chainhash.Hash{1}, 0)
	block := buildBlock(t, params, []*core.MsgTx{notCoinbase})
	err := CheckBlock(block, params, time.Now(), alwaysRunning)
	if err == nil {
		t.Fatal("expected error for missing coinbase")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrFirstTxNotCoinbase {
		t.Errorf("expected ErrFirstTxNotCoinbase, got %v", err)
	}
}

func TestCheckBlockRejectsSecondCoinbase(t *testing.T) {
	params := easyParams()
	block := buildBlock(t, params, []*core.MsgTx{coinbaseTx(), coinbaseTx()})
	err := CheckBlock(block, params, time.Now(), alwaysRunning)
	if err == nil {
		t.Fatal("expected error for duplicate coinbase")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrMultipleCoinbases {
		t.Errorf("expected ErrMultipleCoinbases, got %v", err)
	}
}

func TestCheckBlockRejectsBadMerkleRoot(t *testing.T) {
	params := easyParams()
	block := buildBlock(t, params, []*core.MsgTx{coinbaseTx()})
	block.MsgBlock().Header.MerkleRoot = chainhash.Hash{0xff}
	err := CheckBlock(block, params, time.Now(), alwaysRunning)
	if err == nil {
		t.Fatal("expected error for mismatched merkle root")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrBadMerkleRoot {
		t.Errorf("expected ErrBadMerkleRoot, got %v", err)
	}
}

func TestCheckBlockRejectsTimestampTooFarInFuture(t *testing.T) {
	params := easyParams()
	block := buildBlock(t, params, []*core.MsgTx{coinbaseTx()})
	block.MsgBlock().Header.Timestamp = time.Now().Add(3 * time.Hour).Unix()
	err := CheckBlock(block, params, time.Now(), alwaysRunning)
	if err == nil {
		t.Fatal("expected error for far-future timestamp")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrTimeTooNew {
		t.Errorf("expected ErrTimeTooNew, got %v", err)
	}
}

func TestCheckBlockStoppedMidwayAborts(t *testing.T) {
	params := easyParams()
	block := buildBlock(t, params, []*core.MsgTx{coinbaseTx()})
	stopped := func() bool { return true }
	err := CheckBlock(block, params, time.Now(), stopped)
	if err == nil {
		t.Fatal("expected stopped check to abort")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}

func TestCheckTransactionSanityRejectsEmptyInputs(t *testing.T) {
	params := easyParams()
	msgTx := core.NewMsgTx(1)
	msgTx.AddTxOut(&core.TxOut{Value: 1})
	err := CheckTransactionSanity(core.NewTx(msgTx), params)
	if err == nil {
		t.Fatal("expected error for transaction with no inputs")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrNoTxInputs {
		t.Errorf("expected ErrNoTxInputs, got %v", err)
	}
}

func TestCheckTransactionSanityRejectsNegativeOutputValue(t *testing.T) {
	params := easyParams()
	msgTx := core.NewMsgTx(1)
	msgTx.AddTxIn(&core.TxIn{PreviousOutPoint: core.OutPoint{Hash: chainhash.Hash{1}, Index: 0}})
	msgTx.AddTxOut(&core.TxOut{Value: -1})
	err := CheckTransactionSanity(core.NewTx(msgTx), params)
	if err == nil {
		t.Fatal("expected error for negative output value")
	}
	if ruleErr, ok := err.(RuleError); !ok || ruleErr.Code != ErrBadTxOutValue {
		t.Errorf("expected ErrBadTxOutValue, got %v", err)
	}
}
