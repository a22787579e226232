package validator

import (
	"math/big"
	"testing"
)

func TestCompactToBigRoundTrip(t *testing.T) {
	cases := []uint32{0x1d00ffff, 0x1b0404cb, 0x207fffff}
	for _, compact := range cases {
		target := CompactToBig(compact)
		back := BigToCompact(target)
		if back != compact {
			t.Errorf("compact %#x round-tripped to %#x via target %s", compact, back, target)
		}
	}
}

func TestCalcWorkIncreasesAsTargetShrinks(t *testing.T) {
	easy := CalcWork(0x1d00ffff)
	hard := CalcWork(0x1b0404cb)
	if hard.Cmp(easy) <= 0 {
		t.Fatalf("expected smaller target to represent more work: easy=%s hard=%s", easy, hard)
	}
}

func TestCalcWorkZeroTargetIsZero(t *testing.T) {
	work := CalcWork(0)
	if work.Sign() != 0 {
		t.Fatalf("expected zero work for zero-target bits, got %s", work)
	}
}

type fakeChain struct {
	timestamps map[int32]int64
	bits       map[int32]uint32
}

func (f fakeChain) TimestampAt(height int32) (int64, error) { return f.timestamps[height], nil }
func (f fakeChain) BitsAt(height int32) (uint32, error)      { return f.bits[height], nil }

func TestWorkRequiredUnchangedWithinPeriod(t *testing.T) {
	params := MainNetParams()
	chain := fakeChain{bits: map[int32]uint32{2014: 0x1d00ffff}}
	bits, err := WorkRequired(2015, 0, params, chain)
	if err != nil {
		t.Fatal(err)
	}
	if bits != 0x1d00ffff {
		t.Errorf("expected unchanged bits mid-period, got %#x", bits)
	}
}

func TestWorkRequiredRetargetsAtPeriodBoundary(t *testing.T) {
	params := MainNetParams()
	chain := fakeChain{
		timestamps: map[int32]int64{
			2015: params.TargetTimespan * 2,
			0:    0,
		},
		bits: map[int32]uint32{2015: 0x1d00ffff},
	}
	bits, err := WorkRequired(2016, 0, params, chain)
	if err != nil {
		t.Fatal(err)
	}
	// a doubled actual timespan means blocks took longer than expected, so
	// the next target loosens (goes up) rather than tightening.
	if CompactToBig(bits).Cmp(CompactToBig(0x1d00ffff)) < 0 {
		t.Errorf("expected loosened target after slow period, got bits %#x", bits)
	}
}

func TestWorkRequiredClampsExtremeTimespan(t *testing.T) {
	params := MainNetParams()
	chain := fakeChain{
		timestamps: map[int32]int64{
			2015: params.TargetTimespan * 100,
			0:    0,
		},
		bits: map[int32]uint32{2015: 0x1d00ffff},
	}
	bits, err := WorkRequired(2016, 0, params, chain)
	if err != nil {
		t.Fatal(err)
	}
	clampedTarget := new(big.Int).Mul(CompactToBig(0x1d00ffff), big.NewInt(4))
	if CompactToBig(bits).Cmp(clampedTarget) > 0 {
		t.Errorf("expected timespan clamp at 4x, got target %s exceeding %s", CompactToBig(bits), clampedTarget)
	}
}

func TestWorkRequiredTestnetMinDifficultyException(t *testing.T) {
	params := TestNetParams()
	chain := fakeChain{
		timestamps: map[int32]int64{2014: 1_000_000},
		bits:       map[int32]uint32{2014: 0x1b0404cb},
	}
	newTimestamp := int64(1_000_000) + 2*params.TargetSpacing + 1
	bits, err := WorkRequired(2015, newTimestamp, params, chain)
	if err != nil {
		t.Fatal(err)
	}
	if bits != BigToCompact(params.PowLimit) {
		t.Errorf("expected MAX_WORK_BITS after a >20min gap, got %#x", bits)
	}
}

func TestWorkRequiredTestnetScansBackPastMinDifficultyBlocks(t *testing.T) {
	params := TestNetParams()
	maxBits := BigToCompact(params.PowLimit)
	chain := fakeChain{
		timestamps: map[int32]int64{2014: 1_000_000},
		bits: map[int32]uint32{
			2010: 0x1b0404cb,
			2011: maxBits,
			2012: maxBits,
			2013: maxBits,
			2014: maxBits,
		},
	}
	newTimestamp := int64(1_000_000) + params.TargetSpacing
	bits, err := WorkRequired(2015, newTimestamp, params, chain)
	if err != nil {
		t.Fatal(err)
	}
	if bits != 0x1b0404cb {
		t.Errorf("expected scan-back to find last non-special bits 0x1b0404cb, got %#x", bits)
	}
}
