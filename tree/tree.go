// Package tree implements regression trees and the ensembles built on them, random forests and
// gradient boosting, over gonum matrices. All randomness is drawn from seeded generators so a
// fit is reproducible.
package tree

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoTrainingData     = errors.New("no training data")
	ErrTargetLenMismatch  = errors.New("target length does not match training rows")
	ErrFeatureLenMismatch = errors.New("number of features does not match the fitted model")
	ErrNotFitted          = errors.New("model has not been fitted")
	ErrNonFiniteData      = errors.New("training data contains NaN or Inf")
)

// Options configures how a single regression tree grows.
type Options struct {
	MaxDepth       int `json:"max_depth"`
	MinSamplesLeaf int `json:"min_samples_leaf"`

	// MaxFeatures is the number of candidate features drawn at each split, 0 uses all
	MaxFeatures int `json:"max_features"`
}

func NewDefaultOptions() *Options {
	return &Options{
		MaxDepth:       5,
		MinSamplesLeaf: 5,
	}
}

// Validate fills unset options with defaults.
func (o *Options) Validate() *Options {
	def := NewDefaultOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.MaxDepth <= 0 {
		res.MaxDepth = def.MaxDepth
	}
	if res.MinSamplesLeaf <= 0 {
		res.MinSamplesLeaf = 1
	}
	if res.MaxFeatures < 0 {
		res.MaxFeatures = 0
	}
	return &res
}

// Node is a tree node stored in a flat slice. Leaves carry the prediction in Value, inner nodes
// send rows with x[Feature] <= Threshold to Left.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
}

// Tree is a fitted CART regression tree minimising squared error.
type Tree struct {
	NumFeatures int    `json:"num_features"`
	Nodes       []Node `json:"nodes"`
}

type builder struct {
	x    *mat.Dense
	y    []float64
	opt  *Options
	rng  *rand.Rand
	tree *Tree
}

// Fit grows a regression tree on the rows of x. rng is only used when MaxFeatures restricts
// the candidate features and may be nil otherwise.
func Fit(x *mat.Dense, y []float64, opt *Options, rng *rand.Rand) (*Tree, error) {
	if x == nil || x.IsEmpty() {
		return nil, ErrNoTrainingData
	}
	m, n := x.Dims()
	if len(y) != m {
		return nil, fmt.Errorf("training data has %d rows and target has %d, %w", m, len(y), ErrTargetLenMismatch)
	}
	for i := 0; i < m; i++ {
		if !finite(y[i]) || !allFinite(x.RawRowView(i)) {
			return nil, fmt.Errorf("row %d, %w", i, ErrNonFiniteData)
		}
	}
	opt = opt.Validate()
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}

	b := &builder{
		x:    x,
		y:    y,
		opt:  opt,
		rng:  rng,
		tree: &Tree{NumFeatures: n},
	}
	idx := make([]int, m)
	for i := range idx {
		idx[i] = i
	}
	b.grow(idx, 0)
	return b.tree, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(row []float64) bool {
	for _, v := range row {
		if !finite(v) {
			return false
		}
	}
	return true
}

func (b *builder) mean(idx []int) float64 {
	var sum float64
	for _, i := range idx {
		sum += b.y[i]
	}
	return sum / float64(len(idx))
}

// grow appends the subtree for the rows in idx and returns its node position.
func (b *builder) grow(idx []int, depth int) int {
	pos := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Leaf: true, Value: b.mean(idx)})

	if depth >= b.opt.MaxDepth || len(idx) < 2*b.opt.MinSamplesLeaf {
		return pos
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return pos
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[pos] = Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
		Value:     b.tree.Nodes[pos].Value,
	}
	return pos
}

func (b *builder) candidates() []int {
	n := b.tree.NumFeatures
	features := make([]int, n)
	for i := range features {
		features[i] = i
	}
	if b.opt.MaxFeatures == 0 || b.opt.MaxFeatures >= n {
		return features
	}
	b.rng.Shuffle(n, func(i, j int) {
		features[i], features[j] = features[j], features[i]
	})
	features = features[:b.opt.MaxFeatures]
	slices.Sort(features)
	return features
}

type sample struct {
	v float64
	y float64
}

// bestSplit scans every candidate feature in sorted order keeping running sums so each split
// reduction costs O(1).
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}

	bestGain := 1e-12
	bestFeature := -1
	var bestThreshold float64

	samples := make([]sample, n)
	minLeaf := b.opt.MinSamplesLeaf
	for _, f := range b.candidates() {
		for k, i := range idx {
			samples[k] = sample{v: b.x.At(i, f), y: b.y[i]}
		}
		slices.SortStableFunc(samples, func(a, c sample) int {
			switch {
			case a.v < c.v:
				return -1
			case a.v > c.v:
				return 1
			}
			return 0
		})

		var leftSum float64
		for k := 0; k < n-1; k++ {
			leftSum += samples[k].y
			nl := k + 1
			nr := n - nl
			if nl < minLeaf {
				continue
			}
			if nr < minLeaf {
				break
			}
			curr := samples[k].v
			next := samples[k+1].v
			if curr == next {
				continue
			}
			rightSum := total - leftSum
			// reduction in squared error relative to the parent, up to a constant
			gain := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr) - total*total/float64(n)
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = curr + (next-curr)/2.0
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// Predict walks the tree for a single observation.
func (t *Tree) Predict(row []float64) (float64, error) {
	if t == nil || len(t.Nodes) == 0 {
		return 0, ErrNotFitted
	}
	if len(row) != t.NumFeatures {
		return 0, fmt.Errorf("got %d features, expected %d, %w", len(row), t.NumFeatures, ErrFeatureLenMismatch)
	}
	pos := 0
	for {
		node := t.Nodes[pos]
		if node.Leaf {
			return node.Value, nil
		}
		if row[node.Feature] <= node.Threshold {
			pos = node.Left
		} else {
			pos = node.Right
		}
	}
}

// Depth returns the length of the longest root to leaf path.
func (t *Tree) Depth() int {
	if t == nil || len(t.Nodes) == 0 {
		return 0
	}
	var walk func(pos int) int
	walk = func(pos int) int {
		node := t.Nodes[pos]
		if node.Leaf {
			return 0
		}
		return 1 + max(walk(node.Left), walk(node.Right))
	}
	return walk(0)
}
