package validator

import (
	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

// ActivationContext reports which BIP rule changes are active for a block
// at a given height, derived from sampling the preceding VersionSampleSize
// header versions (spec §4.5 "Context initialization").
type ActivationContext struct {
	MinimumVersion int32
	BIP16Active    bool
	BIP30Active    bool
	BIP34Active    bool
	BIP65Active    bool
	BIP66Active    bool
}

// VersionSample is the minimal view into preceding header versions that
// BuildActivationContext needs: the last N versions, most recent first.
type VersionSample []int32

// BuildActivationContext computes the activation context for a block at
// height with header version blockVersion, given the preceding versions
// sample (oldest-to-newest ordering not required; only counts matter).
func BuildActivationContext(height int32, blockVersion int32, sample VersionSample, params *ConsensusParams) ActivationContext {
	var c2, c3, c4 int32
	for _, v := range sample {
		if v >= 2 {
			c2++
		}
		if v >= 3 {
			c3++
		}
		if v >= 4 {
			c4++
		}
	}

	ctx := ActivationContext{MinimumVersion: 1}
	if c4 >= params.EnforcedThreshold {
		ctx.MinimumVersion = 4
	} else if c3 >= params.EnforcedThreshold {
		ctx.MinimumVersion = 3
	} else if c2 >= params.EnforcedThreshold {
		ctx.MinimumVersion = 2
	}

	ctx.BIP34Active = c2 >= params.ActivatedThreshold && blockVersion >= 2
	ctx.BIP66Active = c3 >= params.ActivatedThreshold && blockVersion >= 3
	ctx.BIP65Active = c4 >= params.ActivatedThreshold && blockVersion >= 4

	ctx.BIP30Active = !params.BIP30Exceptions[height]
	ctx.BIP16Active = height >= params.BIP16Height

	return ctx
}

// Checkpoint pins a known-good header hash at a specific height.
type Checkpoint struct {
	Height int32
	Hash   chainhash.Hash
}

// AcceptBlock runs Stage B: the contextual checks that require the
// block's resolved height and access to preceding chain history.
func AcceptBlock(
	block *core.Block,
	height int32,
	params *ConsensusParams,
	chain HeaderTimestamper,
	versionSample VersionSample,
	checkpoints map[int32]chainhash.Hash,
	stopped StoppedFunc,
) (ActivationContext, error) {
	header := &block.MsgBlock().Header

	expectedBits, err := WorkRequired(height, header.Timestamp, params, chain)
	if err != nil {
		return ActivationContext{}, err
	}
	if header.Bits != expectedBits {
		return ActivationContext{}, ruleError(ErrBadRetarget, "block bits do not match required work")
	}

	if stopped() {
		return ActivationContext{}, ruleError(ErrServiceStopped, "stopped before median time check")
	}
	medianTime, err := MedianTimePast(height-1, chain)
	if err != nil && height > 0 {
		return ActivationContext{}, err
	}
	if height > 0 && header.Timestamp <= medianTime {
		return ActivationContext{}, ruleError(ErrTimeTooOld, "block timestamp not after median time past")
	}

	for _, msgTx := range block.MsgBlock().Transactions {
		tx := core.NewTx(msgTx)
		if !isFinalTx(tx, height, header.Timestamp) {
			return ActivationContext{}, ruleError(ErrNotFinalTx, "transaction is not final at this height/time")
		}
	}

	if hash, ok := checkpoints[height]; ok {
		if *block.Hash() != hash {
			return ActivationContext{}, ruleError(ErrCheckpointMismatch, "block hash does not match configured checkpoint")
		}
	}

	ctx := BuildActivationContext(height, header.Version, versionSample, params)
	if header.Version < ctx.MinimumVersion {
		return ActivationContext{}, ruleError(ErrBadBlockVersion, "block version below required minimum")
	}

	if ctx.BIP34Active {
		if err := checkSerializedHeight(block.MsgBlock().Transactions[0], height); err != nil {
			return ActivationContext{}, err
		}
	}

	return ctx, nil
}

// isFinalTx reports whether tx is final relative to height and blockTime,
// per the standard lock-time finality rule: a zero lock time is always
// final, and a non-zero one must be satisfied by every input's sequence
// unless every input carries the max sequence, which finalizes
// unconditionally.
func isFinalTx(tx *core.Tx, height int32, blockTime int64) bool {
	msgTx := tx.MsgTx()
	if msgTx.LockTime == 0 {
		return true
	}

	threshold := int64(500000000) // locktimeThreshold: below, lock time is a height; at/above, a timestamp
	var blockTimeOrHeight int64
	if int64(msgTx.LockTime) < threshold {
		blockTimeOrHeight = int64(height)
	} else {
		blockTimeOrHeight = blockTime
	}
	if int64(msgTx.LockTime) < blockTimeOrHeight {
		return true
	}

	for _, in := range msgTx.TxIn {
		if in.Sequence != ^uint32(0) {
			return false
		}
	}
	return true
}

// checkSerializedHeight verifies a BIP34-active coinbase's script begins
// with the serialized block height (spec §4.5 Stage B step 6).
func checkSerializedHeight(coinbase *core.MsgTx, height int32) error {
	sigScript := coinbase.TxIn[0].SignatureScript
	serialized, err := serializeHeight(height)
	if err != nil {
		return err
	}
	if len(sigScript) < len(serialized) {
		return ruleError(ErrBadCoinbaseHeight, "coinbase script too short for serialized height")
	}
	for i, b := range serialized {
		if sigScript[i] != b {
			return ruleError(ErrBadCoinbaseHeight, "coinbase script does not begin with serialized height")
		}
	}
	return nil
}

// serializeHeight encodes height as a minimal-push script data element,
// the same format Bitcoin uses for BIP34 coinbase height commitments.
func serializeHeight(height int32) ([]byte, error) {
	var data []byte
	h := int64(height)
	if h == 0 {
		return []byte{0x00}, nil
	}
	neg := h < 0
	if neg {
		h = -h
	}
	for h > 0 {
		data = append(data, byte(h&0xff))
		h >>= 8
	}
	if data[len(data)-1]&0x80 != 0 {
		if neg {
			data = append(data, 0x80)
		} else {
			data = append(data, 0x00)
		}
	} else if neg {
		data[len(data)-1] |= 0x80
	}
	return append([]byte{byte(len(data))}, data...), nil
}
