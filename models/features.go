package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
)

// probeStart anchors the synthetic history used to check restored artifacts, a Monday midnight.
var probeStart = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

// probeHistory is a constant hourly series of n points used to check that a restored artifact
// can still forecast.
func probeHistory(n int, fill float64) *timedataset.TimeDataset {
	n = max(n, 1)
	y := make([]float64, n)
	for i := range y {
		y[i] = fill
	}
	return &timedataset.TimeDataset{
		T: timedataset.GenerateHours(probeStart, n),
		Y: y,
	}
}

// checkForecast forecasts one hour from a probe history and rejects non finite output.
func checkForecast(predict func(*timedataset.TimeDataset, int) ([]float64, error), minHistory int, fill float64) error {
	vals, err := predict(probeHistory(minHistory, fill), 1)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptArtifact, err)
	}
	if len(vals) != 1 || math.IsNaN(vals[0]) || math.IsInf(vals[0], 0) {
		return fmt.Errorf("probe forecast %v, %w", vals, ErrCorruptArtifact)
	}
	return nil
}

// finiteMean is the mean of the observed values.
func finiteMean(y []float64) (float64, error) {
	var sum float64
	var cnt int
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		cnt++
	}
	if cnt == 0 {
		return 0, fmt.Errorf("no observed values, %w", ErrInsufficientHistory)
	}
	return sum / float64(cnt), nil
}

// trainingSet builds the calendar and lag columns of a station training column. Rows with a
// missing target or feature are dropped, as are interpolated rows when interp is set, so the
// estimators only see observed data.
func trainingSet(
	train *timedataset.TimeDataset,
	lag int,
	cal *feature.CalendarOptions,
	interp *feature.InterpolationOptions,
) (*feature.Set, []float64, error) {
	if train.Len() <= lag {
		return nil, nil, fmt.Errorf(
			"training set of %d points with lag %d, %w",
			train.Len(), lag, ErrInsufficientHistory,
		)
	}
	set := feature.CalendarFeatures(train.T, cal)
	if lag > 0 {
		set.Set(feature.NewLag(lag), feature.LagValues(train.Y, lag))
	}

	drop := set.NanRows()
	var mask []bool
	if interp != nil {
		mask = feature.InterpolationMask(train.Y, interp)
	}
	y := make([]float64, 0, len(train.Y))
	for i, v := range train.Y {
		if math.IsNaN(v) || (mask != nil && mask[i]) {
			drop[i] = true
		}
		if !drop[i] {
			y = append(y, v)
		}
	}
	if len(y) == 0 {
		return nil, nil, fmt.Errorf("no observed training rows, %w", ErrInsufficientHistory)
	}
	return set.DropRows(drop), y, nil
}

// forecastSet builds the calendar and lag columns of the horizon hours following history. Lag
// values are read from the history only, missing ones are imputed with fill.
func forecastSet(
	history *timedataset.TimeDataset,
	horizon, lag int,
	cal *feature.CalendarOptions,
	fill float64,
) (*feature.Set, error) {
	future := timedataset.TimeSlice(history.T).NextHours(horizon)
	set := feature.CalendarFeatures(future, cal)
	if lag <= 0 {
		return set, nil
	}

	src, err := feature.LagSources(len(history.Y), horizon, lag)
	if err != nil {
		if errors.Is(err, feature.ErrLagBeforeHistory) {
			return nil, fmt.Errorf("%w: %w", ErrInsufficientHistory, err)
		}
		return nil, err
	}
	vals := make([]float64, horizon)
	for h, s := range src {
		vals[h] = history.Y[s]
		if math.IsNaN(vals[h]) {
			vals[h] = fill
		}
	}
	return set.Set(feature.NewLag(lag), vals), nil
}
