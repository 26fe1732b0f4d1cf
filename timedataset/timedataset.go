// Package timedataset holds the hourly station occupancy data used to train and score
// forecast models. A Frame is a whole city, a TimeDataset is a single station column.
package timedataset

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoTrainingData     = errors.New("no training data")
	ErrNonMontonic        = errors.New("time feature is not monotonic")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrCannotInferFreq    = errors.New("cannot infer frequency from time slice")
	ErrNonHourly          = errors.New("time feature is not spaced hourly")
	ErrOutOfRange         = errors.New("requested range is outside of the dataset")
)

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length.
type TimeDataset struct {
	T []time.Time `json:"t"`
	Y []float64   `json:"y"`
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}
	if err := checkMonotonic(t); err != nil {
		return nil, err
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	td := &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}

	return td, nil
}

func checkMonotonic(t []time.Time) error {
	var lastT time.Time
	for i := 0; i < len(t); i++ {
		currT := t[i]
		if i > 0 && (currT.Before(lastT) || currT.Equal(lastT)) {
			return fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMontonic)
		}
		lastT = currT
	}
	return nil
}

// Len returns the number of observations.
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}

func (td *TimeDataset) Copy() *TimeDataset {
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.Y))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// DropNan returns a copy of the dataset without any NaN observations.
func (td *TimeDataset) DropNan() *TimeDataset {
	if td == nil {
		return nil
	}
	res := &TimeDataset{
		T: make([]time.Time, 0, len(td.T)),
		Y: make([]float64, 0, len(td.Y)),
	}
	for i := 0; i < len(td.T); i++ {
		if math.IsNaN(td.Y[i]) {
			continue
		}
		res.T = append(res.T, td.T[i])
		res.Y = append(res.Y, td.Y[i])
	}
	return res
}

// Slice returns a copy of the observations in the half open positional range [i, j).
func (td *TimeDataset) Slice(i, j int) (*TimeDataset, error) {
	if i < 0 || j > td.Len() || i > j {
		return nil, fmt.Errorf("slice [%d, %d) of %d points, %w", i, j, td.Len(), ErrOutOfRange)
	}
	sub := &TimeDataset{T: td.T[i:j], Y: td.Y[i:j]}
	return sub.Copy(), nil
}

// Between returns a copy of the observations with start <= t < end.
func (td *TimeDataset) Between(start, end time.Time) *TimeDataset {
	res := &TimeDataset{
		T: []time.Time{},
		Y: []float64{},
	}
	for i, t := range td.T {
		if t.Before(start) || !t.Before(end) {
			continue
		}
		res.T = append(res.T, t)
		res.Y = append(res.Y, td.Y[i])
	}
	return res
}

// Last returns the last n observations or an error if fewer are available.
func (td *TimeDataset) Last(n int) (*TimeDataset, error) {
	if n > td.Len() || n < 0 {
		return nil, fmt.Errorf("requested last %d points of %d, %w", n, td.Len(), ErrOutOfRange)
	}
	return td.Slice(td.Len()-n, td.Len())
}
