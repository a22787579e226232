package validator

import "math/big"

// ConsensusParams gathers the network-specific constants Stage A/B/C
// checks are parameterized on, per spec §9's redesign note (a single
// value replacing the original's collection of loose globals and
// virtual accessors).
type ConsensusParams struct {
	MaxBlockSize       int64
	MaxSigOps          int64
	CoinbaseMaturity   int32
	MaxMoney           int64
	TargetTimespan     int64 // seconds
	TargetSpacing      int64 // seconds
	RetargetInterval   int32
	BIP16Height        int32
	BIP30Exceptions    map[int32]bool
	MaxGetBlocks       int
	PowLimit           *big.Int
	VersionSampleSize  int32 // N in the context-initialization sample
	EnforcedThreshold  int32 // ENFORCED
	ActivatedThreshold int32 // ACTIVATED

	// Network20MinuteRule enables testnet's retarget exception: a block
	// more than 2*TargetSpacing after its predecessor may claim
	// MAX_WORK_BITS, and work_required for any other non-boundary block
	// scans back for the last block that didn't use that exception.
	Network20MinuteRule bool
}

// mainnetBIP30Exceptions are the two historical blocks whose coinbases
// duplicate the hash of an earlier coinbase that was not fully spent;
// BuildActivationContext turns the BIP30 check off at these heights
// (BIP30 §4.4 Stage C).
var mainnetBIP30Exceptions = map[int32]bool{
	91842: true,
	91880: true,
}

// MainNetParams matches spec §4's "Constants (consensus)" table.
func MainNetParams() *ConsensusParams {
	powLimit, _ := new(big.Int).SetString("00000000FFFF0000000000000000000000000000000000000000000000000000", 16)
	return &ConsensusParams{
		MaxBlockSize:       1_000_000,
		MaxSigOps:          20_000,
		CoinbaseMaturity:   100,
		MaxMoney:           21_000_000 * 1e8,
		TargetTimespan:     1_209_600,
		TargetSpacing:      600,
		RetargetInterval:   2016,
		BIP16Height:        173805,
		BIP30Exceptions:    mainnetBIP30Exceptions,
		MaxGetBlocks:       500,
		PowLimit:           powLimit,
		VersionSampleSize:  1000,
		EnforcedThreshold:  950,
		ActivatedThreshold: 750,
	}
}

// TestNetParams follows the same shape with the sampling and BIP16
// activation constants the spec calls out for testnet; consensus limits
// (block size, sigops, money supply, timespan/spacing/interval) are
// network-wide and unchanged.
func TestNetParams() *ConsensusParams {
	p := MainNetParams()
	p.BIP16Height = 514
	p.BIP30Exceptions = map[int32]bool{}
	p.VersionSampleSize = 100
	p.EnforcedThreshold = 75
	p.ActivatedThreshold = 51
	p.Network20MinuteRule = true
	return p
}
