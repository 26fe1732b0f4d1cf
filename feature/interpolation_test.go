package feature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// zigzag never has two consecutive equal slopes so nothing in it is flagged.
func zigzag(n int) []float64 {
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		y[i] = 0.5 + 0.2*math.Pow(-1, float64(i)) + 0.05*math.Sin(float64(i)/7.0)
	}
	return y
}

func rangeInts(start, end int) []int {
	res := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		res = append(res, i)
	}
	return res
}

func TestInterpolatedRunsRampScenario(t *testing.T) {
	y := zigzag(1000)
	for i := 500; i <= 520; i++ {
		y[i] = 0.2 + 0.02*float64(i-500)
	}

	opt := &InterpolationOptions{Tolerance: 1e-3, MinRunLength: 3, MinConstantRunLength: 24}
	runs := InterpolatedRuns(y, opt)
	assert.Equal(t, []Run{{Start: 501, End: 519}}, runs)

	idx := InterpolatedIndices(y, opt)
	assert.Equal(t, rangeInts(502, 518), idx)
	for _, endpoint := range []int{500, 501, 519, 520} {
		assert.NotContains(t, idx, endpoint)
	}
}

func TestInterpolatedRuns(t *testing.T) {
	testData := map[string]struct {
		y        []float64
		opt      *InterpolationOptions
		expected []int
	}{
		"empty": {
			y: nil,
		},
		"too short": {
			y: []float64{0.1, 0.2},
		},
		"no runs": {
			y: zigzag(50),
		},
		"minimum run": {
			y:        []float64{0.9, 0.1, 0.2, 0.3, 0.4, 0.5, 0.1},
			expected: []int{3},
		},
		"run below minimum length": {
			y: []float64{0.9, 0.1, 0.2, 0.3, 0.4, 0.1},
		},
		"short flat run kept as observed": {
			y: append(append([]float64{0.9}, make([]float64, 10)...), 0.9),
		},
		"long flat run flagged": {
			y:        append(append([]float64{0.9}, make([]float64, 30)...), 0.9),
			expected: rangeInts(3, 28),
		},
		"flat threshold tuned down": {
			y:        append(append([]float64{0.9}, make([]float64, 10)...), 0.9),
			opt:      &InterpolationOptions{MinConstantRunLength: 5},
			expected: rangeInts(3, 8),
		},
		"nan breaks run": {
			y: []float64{0.9, 0.1, 0.2, math.NaN(), 0.4, 0.5, 0.6, 0.1},
		},
		"within tolerance": {
			y:        []float64{0.9, 0.1, 0.2, 0.3001, 0.4, 0.5, 0.6, 0.1},
			expected: []int{3, 4},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := InterpolatedIndices(td.y, td.opt)
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestInterpolationMask(t *testing.T) {
	y := []float64{0.9, 0.1, 0.2, 0.3, 0.4, 0.5, 0.1}
	mask := InterpolationMask(y, nil)
	assert.Equal(t, []bool{false, false, false, true, false, false, false}, mask)
}

func TestRunInterior(t *testing.T) {
	assert.Nil(t, Run{Start: 3, End: 4}.Interior())
	assert.Equal(t, []int{4}, Run{Start: 3, End: 5}.Interior())
	assert.Equal(t, 3, Run{Start: 3, End: 5}.Len())
}
