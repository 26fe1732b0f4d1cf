package timedataset

import (
	"fmt"
	"math"
	"time"
)

type TimeSlice []time.Time

func (t TimeSlice) StartTime() time.Time {
	var startTime time.Time
	if len(t) < 1 {
		return startTime
	}
	return t[0]
}

func (t TimeSlice) EndTime() time.Time {
	var lastTime time.Time
	if len(t) < 1 {
		return lastTime
	}

	lastTime = t[len(t)-1]
	return lastTime
}

func (t TimeSlice) EstimateFreq() (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}

	frequencies := make(map[time.Duration]int)
	for i := 1; i < len(t); i++ {
		delta := t[i].Sub(t[i-1])
		frequencies[delta] += 1
	}

	var maxCnt int
	maxDelta := time.Duration(math.MaxInt64)

	for delta, cnt := range frequencies {
		if cnt > maxCnt || (cnt == maxCnt && delta < maxDelta) {
			maxCnt = cnt
			maxDelta = delta
		}
	}
	return maxDelta, nil
}

// ValidateHourly returns an error pointing at the first pair of timestamps that are not
// exactly one hour apart.
func (t TimeSlice) ValidateHourly() error {
	for i := 1; i < len(t); i++ {
		if delta := t[i].Sub(t[i-1]); delta != time.Hour {
			return fmt.Errorf("gap of %s at index %d, %w", delta, i, ErrNonHourly)
		}
	}
	return nil
}

// NextHours returns n hourly timestamps starting one hour after the last time point.
func (t TimeSlice) NextHours(n int) []time.Time {
	if len(t) == 0 || n <= 0 {
		return nil
	}
	last := t.EndTime()
	res := make([]time.Time, n)
	for i := 0; i < n; i++ {
		res[i] = last.Add(time.Duration(i+1) * time.Hour)
	}
	return res
}

// Index returns the position of ts, or -1 if it is not part of the slice. Assumes the slice
// is sorted.
func (t TimeSlice) Index(ts time.Time) int {
	lo, hi := 0, len(t)
	for lo < hi {
		mid := (lo + hi) / 2
		if t[mid].Before(ts) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(t) && t[lo].Equal(ts) {
		return lo
	}
	return -1
}
