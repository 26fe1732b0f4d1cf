package timedataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T, n int) *Frame {
	t.Helper()
	tSeries := GenerateHours(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i] = float64(i) / float64(n)
		b[i] = 1.0 - float64(i)/float64(n)
	}
	f, err := NewFrame(tSeries, []string{"a", "b"}, [][]float64{a, b})
	require.NoError(t, err)
	return f
}

func TestNewFrame(t *testing.T) {
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	testData := map[string]struct {
		t        []time.Time
		stations []string
		columns  [][]float64
		err      error
	}{
		"no rows": {
			stations: []string{"a"},
			columns:  [][]float64{{}},
			err:      ErrNoTrainingData,
		},
		"no stations": {
			t:   GenerateHours(start, 2),
			err: ErrNoStations,
		},
		"column count mismatch": {
			t:        GenerateHours(start, 2),
			stations: []string{"a", "b"},
			columns:  [][]float64{{1, 2}},
			err:      ErrDatasetLenMismatch,
		},
		"column length mismatch": {
			t:        GenerateHours(start, 2),
			stations: []string{"a"},
			columns:  [][]float64{{1, 2, 3}},
			err:      ErrDatasetLenMismatch,
		},
		"duplicate station": {
			t:        GenerateHours(start, 2),
			stations: []string{"a", "a"},
			columns:  [][]float64{{1, 2}, {1, 2}},
			err:      ErrDuplicateStation,
		},
		"non monotonic": {
			t:        []time.Time{start.Add(time.Hour), start},
			stations: []string{"a"},
			columns:  [][]float64{{1, 2}},
			err:      ErrNonMontonic,
		},
		"gap in axis": {
			t:        []time.Time{start, start.Add(2 * time.Hour)},
			stations: []string{"a"},
			columns:  [][]float64{{1, 2}},
			err:      ErrNonHourly,
		},
		"valid": {
			t:        GenerateHours(start, 3),
			stations: []string{"a", "b"},
			columns:  [][]float64{{0.1, 0.2, math.NaN()}, {0.3, 0.4, 0.5}},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			f, err := NewFrame(td.t, td.stations, td.columns)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(td.t), f.Len())
			assert.Equal(t, td.stations, f.Stations())
		})
	}
}

func TestFrameColumn(t *testing.T) {
	f := testFrame(t, 10)

	col, err := f.Column("a")
	require.NoError(t, err)
	assert.Equal(t, 10, col.Len())
	assert.InDelta(t, 0.5, col.Y[5], 1e-12)

	// returned column is a copy
	col.Y[0] = 42
	again, err := f.Column("a")
	require.NoError(t, err)
	assert.Equal(t, 0.0, again.Y[0])

	_, err = f.Column("missing")
	assert.ErrorIs(t, err, ErrUnknownStation)
}

func TestFrameSplit(t *testing.T) {
	f := testFrame(t, 101)

	for _, trainSize := range []float64{0.01, 0.3, 0.5, 0.7, 0.99} {
		split, err := f.Split(trainSize)
		require.NoError(t, err)

		assert.Equal(t, int(math.Floor(101*trainSize)), split.Point)
		assert.Equal(t, f.Len(), split.Train.Len()+split.Test.Len())
		assert.True(t, split.Train.Index().EndTime().Before(split.Test.Index().StartTime()))
		assert.Equal(t, f.Index().StartTime(), split.Train.Index().StartTime())
		assert.Equal(t, f.Index().EndTime(), split.Test.Index().EndTime())
	}

	testData := map[string]struct {
		trainSize float64
		err       error
	}{
		"zero":     {trainSize: 0, err: ErrInvalidTrainSize},
		"one":      {trainSize: 1, err: ErrInvalidTrainSize},
		"negative": {trainSize: -0.2, err: ErrInvalidTrainSize},
		"nan":      {trainSize: math.NaN(), err: ErrInvalidTrainSize},
		"empty":    {trainSize: 0.001, err: ErrEmptySplit},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			_, err := f.Split(td.trainSize)
			assert.ErrorIs(t, err, td.err)
		})
	}
}

func TestFrameBetween(t *testing.T) {
	f := testFrame(t, 48)
	start := f.Index().StartTime()

	sub, err := f.Between(start.Add(10*time.Hour), start.Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 10, sub.Len())
	assert.Equal(t, start.Add(10*time.Hour), sub.Index().StartTime())

	_, err = f.Between(start.Add(100*time.Hour), start.Add(120*time.Hour))
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestFingerprint(t *testing.T) {
	f := testFrame(t, 48)

	fpA, err := f.Fingerprint("a")
	require.NoError(t, err)
	fpAagain, err := f.Fingerprint("a")
	require.NoError(t, err)
	assert.Equal(t, fpA, fpAagain)

	fpB, err := f.Fingerprint("b")
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB)

	shorter, err := f.Slice(0, 47)
	require.NoError(t, err)
	fpShort, err := shorter.Fingerprint("a")
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpShort)

	_, err = f.Fingerprint("missing")
	assert.ErrorIs(t, err, ErrUnknownStation)

	assert.Equal(t, f.FrameFingerprint(), f.FrameFingerprint())
	assert.NotEqual(t, f.FrameFingerprint(), shorter.FrameFingerprint())
}
