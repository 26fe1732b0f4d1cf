package timedataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnivariateDataset(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		y        []float64
		expected *TimeDataset
		err      error
	}{
		"no training data": {
			err: ErrNoTrainingData,
		},
		"length mismatch": {
			y:   []float64{0.5},
			err: ErrDatasetLenMismatch,
		},
		"non increasing time": {
			t: []time.Time{
				time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
				time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
			},
			y:   []float64{0.25, 0.5},
			err: ErrNonMontonic,
		},
		"valid": {
			t: []time.Time{
				time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
			},
			y: []float64{0.25, 0.5},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
				},
				Y: []float64{0.25, 0.5},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := NewUnivariateDataset(td.t, td.y)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			assert.Equal(t, td.expected, ds)
		})
	}
}

func TestCopy(t *testing.T) {
	tSeries := []time.Time{
		time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
	}

	y := []float64{0, 1}
	ds, err := NewUnivariateDataset(tSeries, y)
	require.Nil(t, err)

	nextDs := ds.Copy()
	require.Equal(t, ds, nextDs)

	ds.T = []time.Time{
		time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC),
		time.Date(2016, 4, 1, 3, 0, 0, 0, time.UTC),
	}
	require.NotEqual(t, nextDs, ds)
}

func TestDropNan(t *testing.T) {
	testData := map[string]struct {
		tdset    *TimeDataset
		expected *TimeDataset
	}{
		"nil dataset": {tdset: nil, expected: nil},
		"no data to drop": {
			tdset: &TimeDataset{},
			expected: &TimeDataset{
				T: []time.Time{},
				Y: []float64{},
			},
		},
		"every hour observed": {
			tdset: &TimeDataset{
				T: []time.Time{
					time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 3, 0, 0, 0, time.UTC),
				},
				Y: []float64{0.1, 0.2, 0.3, 0.4},
			},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 3, 0, 0, 0, time.UTC),
				},
				Y: []float64{0.1, 0.2, 0.3, 0.4},
			},
		},
		"missing hours": {
			tdset: &TimeDataset{
				T: []time.Time{
					time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 3, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 4, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 5, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 6, 0, 0, 0, time.UTC),
				},
				Y: []float64{math.NaN(), 0.2, 0.3, math.NaN(), 0.5, 0.6, math.NaN()},
			},
			expected: &TimeDataset{
				T: []time.Time{
					time.Date(2016, 4, 1, 1, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 2, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 4, 0, 0, 0, time.UTC),
					time.Date(2016, 4, 1, 5, 0, 0, 0, time.UTC),
				},
				Y: []float64{0.2, 0.3, 0.5, 0.6},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.tdset.DropNan()
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestSliceAndLast(t *testing.T) {
	tSeries := GenerateHours(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), 5)
	ds, err := NewUnivariateDataset(tSeries, []float64{0, 1, 2, 3, 4})
	require.NoError(t, err)

	sub, err := ds.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5}, sub.Y)
	assert.Equal(t, tSeries[1:3], sub.T)

	last, err := ds.Last(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, last.Y)

	_, err = ds.Last(6)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ds.Slice(3, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	between := ds.Between(tSeries[2], tSeries[4])
	assert.Equal(t, []float64{2, 3}, between.Y)
}
