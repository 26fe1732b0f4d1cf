// Package metrics scores predicted occupancy against observed occupancy. Points that were filled
// in by linear interpolation in the observed series are not real observations and are excluded
// from the score by default.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrDataAlignment  = errors.New("predicted and reality share no timestamps")
	ErrZeroWeights    = errors.New("every sample has a zero weight")
	ErrUnknownMetric  = errors.New("unknown metric")
	ErrResLenMismatch = errors.New("predicted, actual and weights have different lengths")
)

// Kind names an error metric.
type Kind string

const (
	MSE Kind = "mse"
	MAE Kind = "mae"
)

// Kinds lists every supported metric.
func Kinds() []Kind {
	return []Kind{MSE, MAE}
}

// ParseKind validates a metric name.
func ParseKind(name string) (Kind, error) {
	k := Kind(name)
	if !slices.Contains(Kinds(), k) {
		return "", fmt.Errorf("%q, %w", name, ErrUnknownMetric)
	}
	return k, nil
}

// Options configures Compute. A nil Options excludes interpolated points with the default
// detection settings.
type Options struct {
	// ExcludeInterpolated zeroes the weight of every point detected as interpolated in reality
	ExcludeInterpolated bool                          `json:"exclude_interpolated"`
	Interpolation       *feature.InterpolationOptions `json:"interpolation,omitempty"`
}

func NewDefaultOptions() *Options {
	return &Options{
		ExcludeInterpolated: true,
		Interpolation:       feature.NewDefaultInterpolationOptions(),
	}
}

// Validate fills unset options with defaults.
func (o *Options) Validate() *Options {
	if o == nil {
		return NewDefaultOptions()
	}
	res := *o
	res.Interpolation = res.Interpolation.Validate()
	return &res
}

// Compute scores predicted against reality over their common timestamps. Interpolation is
// detected on the whole reality series, before intersecting, so that runs crossing the edge of
// the prediction window are still recognised.
func Compute(predicted, reality *timedataset.TimeDataset, kinds []Kind, opt *Options) (map[Kind]float64, error) {
	opt = opt.Validate()
	for _, k := range kinds {
		if _, err := ParseKind(string(k)); err != nil {
			return nil, err
		}
	}
	if predicted.Len() == 0 || reality.Len() == 0 {
		return nil, fmt.Errorf("empty series, %w", ErrDataAlignment)
	}

	var mask []bool
	if opt.ExcludeInterpolated {
		mask = feature.InterpolationMask(reality.Y, opt.Interpolation)
	}

	realIdx := make(map[int64]int, reality.Len())
	for i, t := range reality.T {
		realIdx[t.UnixNano()] = i
	}

	n := min(predicted.Len(), reality.Len())
	pred := make([]float64, 0, n)
	actual := make([]float64, 0, n)
	weights := make([]float64, 0, n)
	for i, t := range predicted.T {
		j, exists := realIdx[t.UnixNano()]
		if !exists {
			continue
		}
		w := 1.0
		if mask != nil && mask[j] {
			w = 0.0
		}
		pred = append(pred, predicted.Y[i])
		actual = append(actual, reality.Y[j])
		weights = append(weights, w)
	}
	if len(pred) == 0 {
		return nil, fmt.Errorf(
			"predicted [%s, %s] and reality [%s, %s], %w",
			timedataset.TimeSlice(predicted.T).StartTime(), timedataset.TimeSlice(predicted.T).EndTime(),
			timedataset.TimeSlice(reality.T).StartTime(), timedataset.TimeSlice(reality.T).EndTime(),
			ErrDataAlignment,
		)
	}

	res := make(map[Kind]float64, len(kinds))
	for _, k := range kinds {
		var score float64
		var err error
		switch k {
		case MSE:
			score, err = WeightedMSE(pred, actual, weights)
		case MAE:
			score, err = WeightedMAE(pred, actual, weights)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to compute %s, %w", k, err)
		}
		res[k] = score
	}
	return res, nil
}

// WeightedMSE is the weighted mean of the squared errors. Pairs with a missing value carry no
// weight.
func WeightedMSE(predicted, actual, weights []float64) (float64, error) {
	return weightedMean(predicted, actual, weights, func(d float64) float64 {
		return d * d
	})
}

// WeightedMAE is the weighted mean of the absolute errors. Pairs with a missing value carry no
// weight.
func WeightedMAE(predicted, actual, weights []float64) (float64, error) {
	return weightedMean(predicted, actual, weights, math.Abs)
}

func weightedMean(predicted, actual, weights []float64, loss func(float64) float64) (float64, error) {
	if len(predicted) != len(actual) || len(predicted) != len(weights) {
		return 0, fmt.Errorf(
			"predicted %d, actual %d, weights %d, %w",
			len(predicted), len(actual), len(weights), ErrResLenMismatch,
		)
	}

	errs := make([]float64, len(predicted))
	w := make([]float64, len(predicted))
	for i := range predicted {
		d := predicted[i] - actual[i]
		if math.IsNaN(d) || math.IsNaN(weights[i]) {
			continue
		}
		errs[i] = loss(d)
		w[i] = weights[i]
	}
	if floats.Sum(w) <= 0 {
		return 0, ErrZeroWeights
	}
	return stat.Mean(errs, w), nil
}
