package validator

import "sort"

// medianTimeBlocks is the number of preceding headers whose timestamps'
// median is median_time_past, per spec §4.5 Stage A step 2 / Stage B step 2.
const medianTimeBlocks = 11

// MedianTimePast computes the median of the timestamps of up to the last
// medianTimeBlocks headers ending at (and including) height, using chain
// to fetch each preceding timestamp.
func MedianTimePast(height int32, chain HeaderTimestamper) (int64, error) {
	n := medianTimeBlocks
	if int(height)+1 < n {
		n = int(height) + 1
	}
	timestamps := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ts, err := chain.TimestampAt(height - int32(i))
		if err != nil {
			return 0, err
		}
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2], nil
}
