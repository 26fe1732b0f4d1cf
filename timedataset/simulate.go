package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateHours returns n hourly time points starting at start.
func GenerateHours(start time.Time, n int) []time.Time {
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, start.Add(time.Duration(i)*time.Hour))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

// SetConst overrides the values in [start, end), e.g. to simulate a station stuck at a level.
func (s Series) SetConst(t []time.Time, val float64, start, end time.Time) Series {
	n := len(s)
	for i := 0; i < n; i++ {
		if (t[i].After(start) || t[i].Equal(start)) && t[i].Before(end) {
			s[i] = val
		}
	}
	return s
}

// MaskWithWeekend zeroes every weekday value.
func (s Series) MaskWithWeekend(t []time.Time) Series {
	n := len(s)
	for i := 0; i < n; i++ {
		switch t[i].Weekday() {
		case time.Saturday, time.Sunday:
			continue
		default:
			s[i] = 0.0
		}
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

func GenerateWaveY(t []time.Time, amp, periodSec, order, timeOffset float64) Series {
	n := len(t)
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		val := amp * math.Sin(2.0*math.Pi*order/periodSec*(float64(t[i].Unix())+timeOffset))
		y = append(y, val)
	}
	return Series(y)
}

// GenerateChange is 0 before chpt then bias plus slope per hour elapsed since chpt.
func GenerateChange(t []time.Time, chpt time.Time, bias, slope float64) Series {
	y := make([]float64, len(t))
	for i, tPnt := range t {
		if tPnt.Before(chpt) {
			continue
		}
		y[i] = bias + slope*tPnt.Sub(chpt).Hours()
	}
	return Series(y)
}

// GenerateSeededNoise returns n uniformly distributed values in [-scale, scale) from a fixed
// seed so simulated stations are reproducible.
func GenerateSeededNoise(n int, scale float64, seed uint64) Series {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = (rng.Float64()*2.0 - 1.0) * scale
	}
	return Series(y)
}

// GenerateWeeklyProfile repeats a 168 value profile indexed by day of week (Monday=0) and
// hour of day.
func GenerateWeeklyProfile(t []time.Time, profile [168]float64) Series {
	y := make([]float64, len(t))
	for i, tPnt := range t {
		dow := (int(tPnt.Weekday()) + 6) % 7
		y[i] = profile[dow*24+tPnt.Hour()]
	}
	return Series(y)
}

// InjectRamp overwrites the positions start through end inclusive with a straight line from
// `from` to `to`, mimicking a linearly filled data gap.
func (s Series) InjectRamp(start, end int, from, to float64) Series {
	if start < 0 || end >= len(s) || end <= start {
		return s
	}
	slope := (to - from) / float64(end-start)
	for i := start; i <= end; i++ {
		s[i] = from + slope*float64(i-start)
	}
	return s
}

// Clip bounds every value of the series to [lower, upper].
func (s Series) Clip(lower, upper float64) Series {
	for i, v := range s {
		s[i] = math.Min(math.Max(v, lower), upper)
	}
	return s
}
