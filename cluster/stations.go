package cluster

import (
	"fmt"
	"math"

	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix returns the pearson correlation between every pair of station columns in
// frame order. Missing hours are filled with the station mean so they contribute no
// covariance. Pairs involving a constant station correlate at 0 and the diagonal is always 1.
func CorrelationMatrix(frame *timedataset.Frame) (*mat.SymDense, error) {
	if frame == nil || frame.Len() == 0 {
		return nil, ErrNoObservations
	}
	stations := frame.Stations()
	x := mat.NewDense(frame.Len(), len(stations), nil)
	for c, station := range stations {
		vals, err := frame.Values(station)
		if err != nil {
			return nil, err
		}
		fillMissing(vals)
		x.SetCol(c, vals)
	}

	n := len(stations)
	corr := mat.NewSymDense(n, nil)
	if frame.Len() > 1 {
		stat.CorrelationMatrix(corr, x, nil)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			switch {
			case i == j:
				corr.SetSym(i, j, 1)
			case math.IsNaN(corr.At(i, j)):
				corr.SetSym(i, j, 0)
			}
		}
	}
	return corr, nil
}

// fillMissing replaces NaNs by the mean of the finite values, or 0 if there are none.
func fillMissing(vals []float64) {
	var sum float64
	var cnt int
	for _, v := range vals {
		if !math.IsNaN(v) {
			sum += v
			cnt++
		}
	}
	var mean float64
	if cnt > 0 {
		mean = sum / float64(cnt)
	}
	for i, v := range vals {
		if math.IsNaN(v) {
			vals[i] = mean
		}
	}
}

// StationClusters assigns every station of the frame to a cluster of stations with similar
// correlation profiles.
func StationClusters(frame *timedataset.Frame, opt *Options) (map[string]int, error) {
	corr, err := CorrelationMatrix(frame)
	if err != nil {
		return nil, fmt.Errorf("unable to compute station correlation, %w", err)
	}
	res, err := KMeans(corr, opt)
	if err != nil {
		return nil, fmt.Errorf("unable to cluster stations, %w", err)
	}
	stations := frame.Stations()
	clusters := make(map[string]int, len(stations))
	for i, station := range stations {
		clusters[station] = res.Labels[i]
	}
	return clusters, nil
}

// Sizes returns the number of stations per cluster id.
func Sizes(clusters map[string]int) map[int]int {
	res := make(map[int]int)
	for _, c := range clusters {
		res[c]++
	}
	return res
}
