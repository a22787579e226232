package validator

import (
	"math/big"

	"github.com/dario-ramos/bitprim-blockchain/chaincfg/chainhash"
	"github.com/dario-ramos/bitprim-blockchain/core"
)

var (
	bigOne    = big.NewInt(1)
	oneLsh256 = new(big.Int).Lsh(bigOne, 256)
)

// CompactToBig expands a block header's compact "bits" encoding into its
// full 256-bit target.
func CompactToBig(compact uint32) *big.Int {
	mantissa := compact & 0x007fffff
	isNegative := compact&0x00800000 != 0
	exponent := uint(compact >> 24)

	var bn *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		bn = big.NewInt(int64(mantissa))
	} else {
		bn = big.NewInt(int64(mantissa))
		bn.Lsh(bn, 8*(exponent-3))
	}
	if isNegative {
		bn = bn.Neg(bn)
	}
	return bn
}

// BigToCompact packs a 256-bit target into the compact encoding used in a
// block header's bits field.
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(target.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(target.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		tn := new(big.Int).Set(target)
		mantissa = uint32(tn.Rsh(tn, 8*(exponent-3)).Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent<<24) | mantissa
	if target.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// CalcWork returns the work represented by bits: (1<<256) / (target+1).
func CalcWork(bits uint32) *big.Int {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return big.NewInt(0)
	}
	denominator := new(big.Int).Add(target, bigOne)
	return new(big.Int).Div(oneLsh256, denominator)
}

// HashToBig interprets a hash's bytes, reversed to big-endian, as an
// integer for comparison against a target.
func HashToBig(hash chainhash.Hash) *big.Int {
	var buf chainhash.Hash
	copy(buf[:], hash[:])
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return new(big.Int).SetBytes(buf[:])
}

// HeaderTimestamper looks up preceding-block timestamps and bits by
// height, the minimal view work_required needs into already-connected
// history.
type HeaderTimestamper interface {
	TimestampAt(height int32) (int64, error)
	BitsAt(height int32) (uint32, error)
}

// WorkRequired implements spec §4.5's retarget algorithm: unchanged bits
// within a period, integer-clamped adjustment at each period boundary,
// with testnet's 20-minute minimum-difficulty exception when
// params.Network20MinuteRule is set. newTimestamp is the candidate
// block's own header timestamp, needed only for that exception.
func WorkRequired(height int32, newTimestamp int64, params *ConsensusParams, chain HeaderTimestamper) (uint32, error) {
	if height == 0 {
		return BigToCompact(params.PowLimit), nil
	}
	if height%params.RetargetInterval != 0 {
		if params.Network20MinuteRule {
			return testnetMinDifficultyBits(height, newTimestamp, params, chain)
		}
		return chain.BitsAt(height - 1)
	}

	lastTime, err := chain.TimestampAt(height - 1)
	if err != nil {
		return 0, err
	}
	firstTime, err := chain.TimestampAt(height - params.RetargetInterval)
	if err != nil {
		return 0, err
	}
	actual := lastTime - firstTime

	minTimespan := params.TargetTimespan / 4
	maxTimespan := params.TargetTimespan * 4
	if actual < minTimespan {
		actual = minTimespan
	}
	if actual > maxTimespan {
		actual = maxTimespan
	}

	prevBits, err := chain.BitsAt(height - 1)
	if err != nil {
		return 0, err
	}
	prevTarget := CompactToBig(prevBits)

	newTarget := new(big.Int).Mul(prevTarget, big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(params.TargetTimespan))
	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}

	return BigToCompact(newTarget), nil
}

// testnetMinDifficultyBits implements spec §4.5's testnet exception: a
// block more than 2*TargetSpacing after its predecessor may claim
// MAX_WORK_BITS; any other non-boundary block inherits the bits of the
// nearest preceding block that didn't use that exception, so difficulty
// doesn't silently stay pinned at the minimum after one slow block.
func testnetMinDifficultyBits(height int32, newTimestamp int64, params *ConsensusParams, chain HeaderTimestamper) (uint32, error) {
	lastTime, err := chain.TimestampAt(height - 1)
	if err != nil {
		return 0, err
	}
	if newTimestamp > lastTime+2*params.TargetSpacing {
		return BigToCompact(params.PowLimit), nil
	}

	maxBits := BigToCompact(params.PowLimit)
	h := height - 1
	bits, err := chain.BitsAt(h)
	if err != nil {
		return 0, err
	}
	for h > 0 && h%params.RetargetInterval != 0 && bits == maxBits {
		h--
		bits, err = chain.BitsAt(h)
		if err != nil {
			return 0, err
		}
	}
	return bits, nil
}

// CheckProofOfWork verifies header's bits are within (0, MAX_TARGET] and
// that its hash satisfies the claimed target (spec §4.5 Stage A step 2).
func CheckProofOfWork(header *core.BlockHeader, powLimit *big.Int) error {
	target := CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		return ruleError(ErrBadProofOfWork, "block target difficulty is not positive")
	}
	if target.Cmp(powLimit) > 0 {
		return ruleError(ErrBadProofOfWork, "block target difficulty exceeds max target")
	}
	hash := header.BlockHash()
	if HashToBig(hash).Cmp(target) > 0 {
		return ruleError(ErrBadProofOfWork, "block hash does not satisfy claimed target")
	}
	return nil
}
