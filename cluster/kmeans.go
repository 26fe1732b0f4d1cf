// Package cluster groups stations that move together. Each station is described by its row of
// the inter-station correlation matrix and the rows are partitioned with seeded k-means.
package cluster

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoObservations = errors.New("no observations to cluster")
	ErrInvalidK       = errors.New("number of clusters must be positive")
)

// Options configures k-means.
type Options struct {
	K       int    `json:"k"`
	MaxIter int    `json:"max_iter"`
	Seed    uint64 `json:"seed"`
}

func NewDefaultOptions() *Options {
	return &Options{
		K:       5,
		MaxIter: 100,
		Seed:    42,
	}
}

// Validate fills unset options with defaults.
func (o *Options) Validate() (*Options, error) {
	def := NewDefaultOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if res.K < 0 {
		return nil, fmt.Errorf("k=%d, %w", res.K, ErrInvalidK)
	}
	if res.K == 0 {
		res.K = def.K
	}
	if res.MaxIter <= 0 {
		res.MaxIter = def.MaxIter
	}
	return &res, nil
}

// Result holds the assignment of each observation and the final centroids.
type Result struct {
	Labels    []int       `json:"labels"`
	Centroids [][]float64 `json:"centroids"`
	Inertia   float64     `json:"inertia"`
	Iter      int         `json:"iter"`
}

// KMeans clusters the rows of x. Centroids are seeded with k-means++ from a PCG generator so a
// fixed seed always yields the same partition. K is capped at the number of rows. Labels are
// renumbered in order of first appearance which keeps them stable across runs that only
// permute centroid discovery.
func KMeans(x mat.Matrix, opt *Options) (*Result, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, ErrNoObservations
	}
	m, n := x.Dims()
	if m == 0 || n == 0 {
		return nil, ErrNoObservations
	}

	rows := make([][]float64, m)
	for i := range rows {
		rows[i] = mat.Row(nil, i, x)
	}
	k := min(opt.K, m)
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed))
	centroids := seedCentroids(rows, k, rng)

	labels := make([]int, m)
	for i := range labels {
		labels[i] = -1
	}

	var iter int
	for iter = 1; iter <= opt.MaxIter; iter++ {
		changed := false
		for i, row := range rows {
			c := nearest(row, centroids)
			if c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		updateCentroids(rows, labels, centroids)
	}

	res := &Result{
		Labels:    relabel(labels, centroids),
		Centroids: centroids,
		Iter:      min(iter, opt.MaxIter),
	}
	for i, row := range rows {
		res.Inertia += sqDist(row, res.Centroids[res.Labels[i]])
	}
	return res, nil
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

func nearest(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(row, centroid); d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

// seedCentroids runs k-means++: the first centroid is drawn uniformly, each next one with
// probability proportional to its squared distance from the closest chosen centroid.
func seedCentroids(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	chosen := make([]bool, len(rows))
	first := rng.IntN(len(rows))
	chosen[first] = true
	centroids := [][]float64{append([]float64(nil), rows[first]...)}

	dist := make([]float64, len(rows))
	for len(centroids) < k {
		var total float64
		for i, row := range rows {
			dist[i] = sqDist(row, centroids[nearest(row, centroids)])
			total += dist[i]
		}

		next := -1
		if total > 0 {
			target := rng.Float64() * total
			var cum float64
			for i, d := range dist {
				cum += d
				if d > 0 && cum >= target {
					next = i
					break
				}
			}
		}
		// duplicate observations, take the first unused row
		if next < 0 || chosen[next] {
			for i := range rows {
				if !chosen[i] {
					next = i
					break
				}
			}
		}
		chosen[next] = true
		centroids = append(centroids, append([]float64(nil), rows[next]...))
	}
	return centroids
}

// updateCentroids moves each centroid to the mean of its members. Empty clusters keep their
// previous position.
func updateCentroids(rows [][]float64, labels []int, centroids [][]float64) {
	n := len(rows[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for c := range sums {
		sums[c] = make([]float64, n)
	}
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1.0/float64(counts[c]), sums[c])
		centroids[c] = sums[c]
	}
}

// relabel renumbers labels by first appearance and reorders centroids to match.
func relabel(labels []int, centroids [][]float64) []int {
	mapping := make(map[int]int, len(centroids))
	order := make([]int, 0, len(centroids))
	for _, l := range labels {
		if _, ok := mapping[l]; !ok {
			mapping[l] = len(order)
			order = append(order, l)
		}
	}
	// unused centroids go last
	for c := range centroids {
		if _, ok := mapping[c]; !ok {
			mapping[c] = len(order)
			order = append(order, c)
		}
	}

	reordered := make([][]float64, len(centroids))
	for newIdx, old := range order {
		reordered[newIdx] = centroids[old]
	}
	copy(centroids, reordered)

	res := make([]int, len(labels))
	for i, l := range labels {
		res[i] = mapping[l]
	}
	return res
}
