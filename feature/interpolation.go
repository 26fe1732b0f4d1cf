package feature

import (
	"math"
)

// InterpolationOptions tunes the detection of synthetically filled points.
type InterpolationOptions struct {
	// Tolerance is the maximum change in slope between neighbouring points of a run
	Tolerance float64 `json:"tolerance"`

	// MinRunLength is the minimum number of consecutive locally linear points forming a run
	MinRunLength int `json:"min_run_length"`

	// MinConstantRunLength is the minimum run length for flat runs. Stations regularly sit at
	// a constant occupancy for a few hours so short flat runs are treated as observed.
	MinConstantRunLength int `json:"min_constant_run_length"`
}

func NewDefaultInterpolationOptions() *InterpolationOptions {
	return &InterpolationOptions{
		Tolerance:            1e-3,
		MinRunLength:         3,
		MinConstantRunLength: 24,
	}
}

// Validate fills unset options with defaults.
func (o *InterpolationOptions) Validate() *InterpolationOptions {
	def := NewDefaultInterpolationOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.Tolerance <= 0 {
		res.Tolerance = def.Tolerance
	}
	if res.MinRunLength < 1 {
		res.MinRunLength = def.MinRunLength
	}
	if res.MinConstantRunLength < 1 {
		res.MinConstantRunLength = def.MinConstantRunLength
	}
	return &res
}

// Run is a maximal sequence of locally linear points, Start and End inclusive.
type Run struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of points in the run.
func (r Run) Len() int {
	return r.End - r.Start + 1
}

// Interior returns the indices of the run without its first and last point.
func (r Run) Interior() []int {
	if r.Len() < 3 {
		return nil
	}
	idx := make([]int, 0, r.Len()-2)
	for i := r.Start + 1; i < r.End; i++ {
		idx = append(idx, i)
	}
	return idx
}

// InterpolatedRuns scans the series for runs of constant slope. A point is locally linear when
// its slope from the previous point matches its slope to the next point within tolerance, so
// a linearly filled gap between two observed anchors yields one run covering every point
// strictly between the anchors. NaN points break runs.
func InterpolatedRuns(y []float64, opt *InterpolationOptions) []Run {
	opt = opt.Validate()

	var runs []Run
	start := -1
	closeRun := func(end int) {
		if start < 0 {
			return
		}
		run := Run{Start: start, End: end}
		start = -1
		if run.Len() < opt.MinRunLength {
			return
		}
		if isFlat(y, run, opt.Tolerance) && run.Len() < opt.MinConstantRunLength {
			return
		}
		runs = append(runs, run)
	}

	for i := 1; i < len(y)-1; i++ {
		if isLocallyLinear(y, i, opt.Tolerance) {
			if start < 0 {
				start = i
			}
			continue
		}
		closeRun(i - 1)
	}
	closeRun(len(y) - 2)
	return runs
}

func isLocallyLinear(y []float64, i int, tol float64) bool {
	prev, curr, next := y[i-1], y[i], y[i+1]
	if math.IsNaN(prev) || math.IsNaN(curr) || math.IsNaN(next) {
		return false
	}
	return math.Abs((next-curr)-(curr-prev)) <= tol
}

func isFlat(y []float64, run Run, tol float64) bool {
	for i := run.Start; i < run.End; i++ {
		if math.Abs(y[i+1]-y[i]) > tol {
			return false
		}
	}
	return true
}

// InterpolatedIndices returns the sorted interior indices of every detected run.
func InterpolatedIndices(y []float64, opt *InterpolationOptions) []int {
	var idx []int
	for _, run := range InterpolatedRuns(y, opt) {
		idx = append(idx, run.Interior()...)
	}
	return idx
}

// InterpolationMask flags the interpolated points of the series.
func InterpolationMask(y []float64, opt *InterpolationOptions) []bool {
	mask := make([]bool, len(y))
	for _, i := range InterpolatedIndices(y, opt) {
		mask[i] = true
	}
	return mask
}
