package metrics

import (
	"math"
	"testing"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC)

func series(offset int, y ...float64) *timedataset.TimeDataset {
	return &timedataset.TimeDataset{
		T: timedataset.GenerateHours(testStart.Add(time.Duration(offset)*time.Hour), len(y)),
		Y: y,
	}
}

func TestCompute(t *testing.T) {
	// the ramp from index 1 to 5 is flagged at index 3
	ramp := series(0, 0.9, 0.1, 0.2, 0.3, 0.4, 0.5, 0.05)
	linear := series(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9)
	nan := math.NaN()

	testData := map[string]struct {
		predicted   *timedataset.TimeDataset
		reality     *timedataset.TimeDataset
		opt         *Options
		expected    map[Kind]float64
		expectedErr error
	}{
		"perfect": {
			predicted: series(0, 0.4, 0.7, 0.5, 0.1),
			reality:   series(0, 0.4, 0.7, 0.5, 0.1),
			expected:  map[Kind]float64{MSE: 0, MAE: 0},
		},
		"constant prediction": {
			predicted: series(0, 0.5, 0.5, 0.5, 0.5),
			reality:   series(0, 0.4, 0.7, 0.5, 0.1),
			expected:  map[Kind]float64{MSE: 0.0525, MAE: 0.175},
		},
		"partial overlap": {
			predicted: series(2, 0.5, 0.5, 0.5, 0.5),
			reality:   series(0, 0.4, 0.7, 0.5, 0.1),
			expected:  map[Kind]float64{MSE: 0.08, MAE: 0.2},
		},
		"interpolated excluded": {
			predicted: series(0, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5),
			reality:   ramp,
			expected:  map[Kind]float64{MAE: 1.65 / 6.0, MSE: 0.6225 / 6.0},
		},
		"interpolated included": {
			predicted: series(0, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5),
			reality:   ramp,
			opt:       &Options{ExcludeInterpolated: false},
			expected:  map[Kind]float64{MAE: 1.85 / 7.0, MSE: 0.6625 / 7.0},
		},
		"missing values carry no weight": {
			predicted: series(0, 0.5, nan, 0.5, 0.5),
			reality:   series(0, 0.4, 0.7, 0.5, nan),
			expected:  map[Kind]float64{MSE: 0.005, MAE: 0.05},
		},
		"window inside an interpolated run": {
			predicted:   series(2, 0.5, 0.5, 0.5, 0.5, 0.5),
			reality:     linear,
			expectedErr: ErrZeroWeights,
		},
		"no overlap": {
			predicted:   series(10, 0.5, 0.5),
			reality:     series(0, 0.4, 0.7, 0.5, 0.1),
			expectedErr: ErrDataAlignment,
		},
		"empty prediction": {
			predicted:   &timedataset.TimeDataset{},
			reality:     series(0, 0.4, 0.7, 0.5, 0.1),
			expectedErr: ErrDataAlignment,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := Compute(td.predicted, td.reality, Kinds(), td.opt)
			if td.expectedErr != nil {
				assert.ErrorIs(t, err, td.expectedErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, res, len(td.expected))
			for k, v := range td.expected {
				assert.InDelta(t, v, res[k], 1e-12, k)
			}
		})
	}
}

func TestComputeUnknownMetric(t *testing.T) {
	s := series(0, 0.4, 0.7, 0.5, 0.1)
	_, err := Compute(s, s, []Kind{MSE, "rmse"}, nil)
	assert.ErrorIs(t, err, ErrUnknownMetric)

	res, err := Compute(s, s, []Kind{MAE}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[Kind]float64{MAE: 0}, res)
}

func TestWeightedMetrics(t *testing.T) {
	testData := map[string]struct {
		predicted   []float64
		actual      []float64
		weights     []float64
		expectedMSE float64
		expectedMAE float64
		expectedErr error
	}{
		"uniform": {
			predicted:   []float64{1, 2, 3},
			actual:      []float64{0, 0, 0},
			weights:     []float64{1, 1, 1},
			expectedMSE: 14.0 / 3.0,
			expectedMAE: 2.0,
		},
		"weighted": {
			predicted:   []float64{1, 2, 3},
			actual:      []float64{0, 0, 0},
			weights:     []float64{1, 2, 0},
			expectedMSE: 3.0,
			expectedMAE: 5.0 / 3.0,
		},
		"all zero": {
			predicted:   []float64{1, 2},
			actual:      []float64{0, 0},
			weights:     []float64{0, 0},
			expectedErr: ErrZeroWeights,
		},
		"length mismatch": {
			predicted:   []float64{1, 2},
			actual:      []float64{0},
			weights:     []float64{1, 1},
			expectedErr: ErrResLenMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			mse, err := WeightedMSE(td.predicted, td.actual, td.weights)
			if td.expectedErr != nil {
				assert.ErrorIs(t, err, td.expectedErr)
				_, err = WeightedMAE(td.predicted, td.actual, td.weights)
				assert.ErrorIs(t, err, td.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, td.expectedMSE, mse, 1e-12)

			mae, err := WeightedMAE(td.predicted, td.actual, td.weights)
			require.NoError(t, err)
			assert.InDelta(t, td.expectedMAE, mae, 1e-12)
		})
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("mae")
	require.NoError(t, err)
	assert.Equal(t, MAE, k)

	_, err = ParseKind("MAPE")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestAggregate(t *testing.T) {
	var records []Record
	records = append(records, NewRecords("mean", "s1", map[Kind]float64{MSE: 0.1, MAE: 0.3})...)
	records = append(records, NewRecords("mean", "s2", map[Kind]float64{MSE: 0.3, MAE: 0.5})...)
	records = append(records, NewRecords("linear_regression", "s1", map[Kind]float64{MSE: 0.2})...)

	assert.Equal(t, Record{Model: "mean", Metric: MAE, Station: "s1", Value: 0.3}, records[0])

	testData := map[string]struct {
		byKind   bool
		expected []Summary
	}{
		"by model and metric": {
			byKind: true,
			expected: []Summary{
				{Model: "linear_regression", Metric: MSE, Value: 0.2, Stations: 1},
				{Model: "mean", Metric: MAE, Value: 0.4, Stations: 2},
				{Model: "mean", Metric: MSE, Value: 0.2, Stations: 2},
			},
		},
		"by model": {
			byKind: false,
			expected: []Summary{
				{Model: "linear_regression", Value: 0.2, Stations: 1},
				{Model: "mean", Value: 0.3, Stations: 2},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := Aggregate(records, td.byKind)
			require.Len(t, res, len(td.expected))
			for i, exp := range td.expected {
				assert.Equal(t, exp.Model, res[i].Model)
				assert.Equal(t, exp.Metric, res[i].Metric)
				assert.Equal(t, exp.Stations, res[i].Stations)
				assert.InDelta(t, exp.Value, res[i].Value, 1e-12)
			}
		})
	}

	assert.Empty(t, Aggregate(nil, true))
}
