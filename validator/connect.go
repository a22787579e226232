package validator

import (
	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

// ScriptVerifier is the boolean oracle spec §1 frames the script
// interpreter as: given the spending input's scripts and the prevout it
// claims to redeem, report whether the claim is valid under the supplied
// activation flags. Its concrete implementation (a full script engine) is
// out of scope for this package.
type ScriptVerifier interface {
	VerifyScript(tx *core.MsgTx, inputIndex int, prevOutScript []byte, prevOutValue int64, ctx ActivationContext) error
}

// PrevOutSource resolves a spent outpoint's originating transaction
// output and the height at which that transaction confirmed, searching
// the main chain up to the fork point and then the orphan chain up to
// orphanIndex, per spec §4.5 Stage C.
type PrevOutSource interface {
	PrevOut(outpoint core.OutPoint) (out *core.TxOut, confirmedHeight int32, isCoinbase bool, found bool)
}

// SpentChecker reports whether an outpoint is already spent somewhere in
// the main chain's UTXO view.
type SpentChecker interface {
	IsSpent(outpoint core.OutPoint) bool
}

// TxExistsChecker looks up whether a transaction hash already exists in
// the tx store and whether every one of its outputs is currently spent,
// for BIP30's duplicate-transaction-hash check.
type TxExistsChecker interface {
	ExistsFullySpent(hash chainhash.Hash) (exists bool, fullySpent bool)
}

// ConnectResult carries the per-block totals ConnectBlock accumulates,
// useful to callers that want to log or assert on them beyond pass/fail.
type ConnectResult struct {
	TotalSigOps int64
	TotalFees   int64
}

// ConnectBlock runs Stage C: the connect-time checks applied under the
// write lock once a block is chosen to extend the main chain. It does not
// itself mutate the UTXO index; the organizer's applyConnect records each
// input's spend once ConnectBlock returns success. New outputs get no
// record, since the index holds spends only.
func ConnectBlock(
	block *core.Block,
	height int32,
	params *ConsensusParams,
	ctx ActivationContext,
	prevOuts PrevOutSource,
	spent SpentChecker,
	txExists TxExistsChecker,
	verifier ScriptVerifier,
	stopped StoppedFunc,
) (ConnectResult, error) {
	var result ConnectResult
	transactions := block.MsgBlock().Transactions

	if ctx.BIP30Active {
		for _, msgTx := range transactions {
			hash := msgTx.TxHash()
			exists, fullySpent := txExists.ExistsFullySpent(hash)
			if exists && !fullySpent {
				return result, ruleError(ErrDuplicateOrSpent, "transaction hash collides with a non-fully-spent prior transaction")
			}
		}
	}

	// outpoints spent by preceding inputs of this block only. Spends by
	// earlier blocks, including earlier blocks of a branch being connected
	// one at a time during a reorganization, are seen through spent.
	seenOutpoints := make(map[core.OutPoint]struct{})

	for i, msgTx := range transactions {
		if stopped() {
			return result, ruleError(ErrServiceStopped, "stopped mid connect")
		}

		result.TotalSigOps += int64(LegacySigOpCount(flattenScripts(msgTx)))
		if result.TotalSigOps > params.MaxSigOps {
			return result, ruleError(ErrTooManySigOps, "block exceeds max sigops at connect time")
		}

		if i == 0 {
			continue // coinbase has no real inputs to resolve
		}

		var valueIn int64
		for j, in := range msgTx.TxIn {
			prevOut, confirmedHeight, isCoinbase, found := prevOuts.PrevOut(in.PreviousOutPoint)
			if !found {
				return result, ruleError(ErrMissingTxOut, "referenced previous output not found")
			}

			if isPayToScriptHash(prevOut.PkScript) {
				result.TotalSigOps += int64(p2shSigOpSurcharge(prevOut.PkScript, in.SignatureScript))
				if result.TotalSigOps > params.MaxSigOps {
					return result, ruleError(ErrTooManySigOps, "block exceeds max sigops including P2SH surcharge")
				}
			}

			if isCoinbase && height-confirmedHeight < params.CoinbaseMaturity {
				return result, ruleError(ErrImmatureSpend, "attempt to spend immature coinbase output")
			}

			if verifier != nil {
				if err := verifier.VerifyScript(msgTx, j, prevOut.PkScript, prevOut.Value, ctx); err != nil {
					return result, err
				}
			}

			if spent.IsSpent(in.PreviousOutPoint) {
				return result, ruleError(ErrMissingTxOut, "referenced output already spent in main chain")
			}
			if _, dup := seenOutpoints[in.PreviousOutPoint]; dup {
				return result, ruleError(ErrMissingTxOut, "referenced output already spent earlier in this block")
			}
			seenOutpoints[in.PreviousOutPoint] = struct{}{}

			valueIn += prevOut.Value
		}

		var valueOut int64
		for _, out := range msgTx.TxOut {
			valueOut += out.Value
		}
		fee := valueIn - valueOut
		if fee < 0 || fee > params.MaxMoney {
			return result, ruleError(ErrBadFees, "transaction fee out of range")
		}
		result.TotalFees += fee
	}

	var coinbaseOut int64
	for _, out := range transactions[0].TxOut {
		coinbaseOut += out.Value
	}
	if coinbaseOut > BlockSubsidy(height, params)+result.TotalFees {
		return result, ruleError(ErrBadCoinbaseValue, "coinbase payout exceeds subsidy plus fees")
	}

	return result, nil
}

// subsidyHalvingInterval is the number of blocks between subsidy halvings.
const subsidyHalvingInterval = 210000

// BlockSubsidy returns the block reward at height, halving every
// subsidyHalvingInterval blocks starting from 50 BTC.
func BlockSubsidy(height int32, params *ConsensusParams) int64 {
	halvings := height / subsidyHalvingInterval
	if halvings >= 64 {
		return 0
	}
	baseSubsidy := int64(50 * 1e8)
	return baseSubsidy >> uint(halvings)
}
