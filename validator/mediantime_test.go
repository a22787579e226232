package validator

import "testing"

func TestMedianTimePastOfElevenBlocks(t *testing.T) {
	timestamps := map[int32]int64{}
	for i := int32(0); i < 11; i++ {
		timestamps[i] = int64(i) * 100
	}
	chain := fakeChain{timestamps: timestamps}
	median, err := MedianTimePast(10, chain)
	if err != nil {
		t.Fatal(err)
	}
	if median != 500 {
		t.Errorf("expected median 500, got %d", median)
	}
}

func TestMedianTimePastShortHistory(t *testing.T) {
	timestamps := map[int32]int64{0: 10, 1: 20, 2: 30}
	chain := fakeChain{timestamps: timestamps}
	median, err := MedianTimePast(2, chain)
	if err != nil {
		t.Fatal(err)
	}
	if median != 20 {
		t.Errorf("expected median 20 over 3-block history, got %d", median)
	}
}
