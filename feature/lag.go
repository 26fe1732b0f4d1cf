package feature

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrLagTooSmall       = errors.New("lag must be at least the forecast horizon")
	ErrLagBeforeHistory  = errors.New("lag reaches before the start of the history")
	ErrNonPositiveWindow = errors.New("lag and horizon must be positive")
)

// LagValues shifts the series forward by lag points. The first lag values have no source and
// are NaN.
func LagValues(y []float64, lag int) []float64 {
	res := make([]float64, len(y))
	for i := range res {
		if i-lag < 0 {
			res[i] = math.NaN()
			continue
		}
		res[i] = y[i-lag]
	}
	return res
}

// LagSources returns, for each of the horizon points following a history of length start, the
// index in the history its lag feature is read from. A lag at least as large as the horizon
// guarantees every source index precedes start, so no forecast row can read a value from
// inside the forecast window.
func LagSources(start, horizon, lag int) ([]int, error) {
	if lag <= 0 || horizon <= 0 {
		return nil, fmt.Errorf("lag %d, horizon %d, %w", lag, horizon, ErrNonPositiveWindow)
	}
	if lag < horizon {
		return nil, fmt.Errorf("lag %d, horizon %d, %w", lag, horizon, ErrLagTooSmall)
	}
	if start-lag < 0 {
		return nil, fmt.Errorf("history of %d points with lag %d, %w", start, lag, ErrLagBeforeHistory)
	}
	src := make([]int, horizon)
	for h := 0; h < horizon; h++ {
		src[h] = start + h - lag
	}
	return src, nil
}
