// Package validator implements the three-stage block validation pipeline
// described in spec §4.5: a context-free structural check runnable on
// orphans, a contextual check needing chain height and history, and a
// connect-time check against the UTXO view (the organizer then records
// the block's spends).
package validator

import (
	"bytes"
	"time"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

// StoppedFunc polls a cancellation flag between validation units, per
// spec §4.5 ("every step is interruptible").
type StoppedFunc func() bool

// CheckBlock runs Stage A: the context-free structural checks that can
// run on an orphan with no knowledge of its height. now is injected for
// testability rather than sampled via time.Now internally.
func CheckBlock(block *core.Block, params *ConsensusParams, now time.Time, stopped StoppedFunc) error {
	msgBlock := block.MsgBlock()
	header := &msgBlock.Header

	if stopped() {
		return ruleError(ErrServiceStopped, "stopped before block size check")
	}
	size, err := block.Size()
	if err != nil {
		return err
	}
	if int64(size) > params.MaxBlockSize {
		return ruleError(ErrBlockTooBig, "serialized block exceeds max block size")
	}

	if err := CheckProofOfWork(header, params.PowLimit); err != nil {
		return err
	}

	maxTimestamp := now.Add(2 * time.Hour).Unix()
	if header.Timestamp > maxTimestamp {
		return ruleError(ErrTimeTooNew, "block timestamp too far in the future")
	}

	transactions := msgBlock.Transactions
	if len(transactions) == 0 {
		return ruleError(ErrNoTransactions, "block has no transactions")
	}

	if stopped() {
		return ruleError(ErrServiceStopped, "stopped before coinbase check")
	}
	if !core.IsCoinBaseTx(transactions[0]) {
		return ruleError(ErrFirstTxNotCoinbase, "first transaction is not a coinbase")
	}
	for _, tx := range transactions[1:] {
		if core.IsCoinBaseTx(tx) {
			return ruleError(ErrMultipleCoinbases, "block contains a second coinbase")
		}
	}

	seen := make(map[chainhash.Hash]struct{}, len(transactions))
	totalSigOps := int64(0)
	for _, msgTx := range transactions {
		if stopped() {
			return ruleError(ErrServiceStopped, "stopped mid transaction checks")
		}
		tx := core.NewTx(msgTx)
		if err := CheckTransactionSanity(tx, params); err != nil {
			return err
		}

		hash := tx.Hash()
		if _, dup := seen[*hash]; dup {
			return ruleError(ErrDuplicateTx, "block contains a duplicate transaction")
		}
		seen[*hash] = struct{}{}

		totalSigOps += int64(LegacySigOpCount(flattenScripts(msgTx)))
		if totalSigOps > params.MaxSigOps {
			return ruleError(ErrTooManySigOps, "block exceeds max legacy sigop count")
		}
	}

	root := CalcMerkleRoot(wrapTxs(transactions))
	if root != header.MerkleRoot {
		return ruleError(ErrBadMerkleRoot, "computed merkle root does not match header")
	}

	return nil
}

// flattenScripts concatenates every input and output script of tx for
// legacy sigop counting, which walks scripts independently of whether
// they are ultimately spendable.
func flattenScripts(tx *core.MsgTx) []byte {
	var buf bytes.Buffer
	for _, in := range tx.TxIn {
		buf.Write(in.SignatureScript)
	}
	for _, out := range tx.TxOut {
		buf.Write(out.PkScript)
	}
	return buf.Bytes()
}

func wrapTxs(msgTxs []*core.MsgTx) []*core.Tx {
	txs := make([]*core.Tx, len(msgTxs))
	for i, m := range msgTxs {
		txs[i] = core.NewTx(m)
	}
	return txs
}

// CheckTransactionSanity performs the context-free per-transaction checks
// named in spec §4.5 Stage A step 5.
func CheckTransactionSanity(tx *core.Tx, params *ConsensusParams) error {
	msgTx := tx.MsgTx()
	if len(msgTx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, "transaction has no inputs")
	}
	if len(msgTx.TxOut) == 0 {
		return ruleError(ErrNoTxOutputs, "transaction has no outputs")
	}

	var total int64
	for _, out := range msgTx.TxOut {
		if out.Value < 0 || out.Value > params.MaxMoney {
			return ruleError(ErrBadTxOutValue, "transaction output value out of range")
		}
		total += out.Value
		if total < 0 || total > params.MaxMoney {
			return ruleError(ErrBadTxOutValue, "transaction total output value out of range")
		}
	}

	seen := make(map[core.OutPoint]struct{}, len(msgTx.TxIn))
	for _, in := range msgTx.TxIn {
		if _, dup := seen[in.PreviousOutPoint]; dup {
			return ruleError(ErrDuplicateTxInputs, "transaction contains duplicate inputs")
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}

	if core.IsCoinBaseTx(msgTx) {
		slen := len(msgTx.TxIn[0].SignatureScript)
		if slen < 2 || slen > 100 {
			return ruleError(ErrBadCoinbaseScriptLen, "coinbase script length out of range")
		}
	} else {
		var zero chainhash.Hash
		for _, in := range msgTx.TxIn {
			if in.PreviousOutPoint.Hash == zero && in.PreviousOutPoint.Index == ^uint32(0) {
				return ruleError(ErrBadTxInput, "non-coinbase input refers to null outpoint")
			}
		}
	}

	return nil
}
