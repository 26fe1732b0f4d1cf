package tree

import (
	"fmt"
	"math/rand/v2"

	mat_ "github.com/aouyang1/go-stationcast/mat"

	"gonum.org/v1/gonum/mat"
)

// ForestOptions configures a bagged ensemble of regression trees.
type ForestOptions struct {
	NumTrees  int      `json:"num_trees"`
	Tree      *Options `json:"tree"`
	Bootstrap bool     `json:"bootstrap"`
	Seed      uint64   `json:"seed"`
}

func NewDefaultForestOptions() *ForestOptions {
	return &ForestOptions{
		NumTrees:  5,
		Tree:      NewDefaultOptions(),
		Bootstrap: true,
		Seed:      42,
	}
}

// Validate fills unset options with defaults.
func (o *ForestOptions) Validate() *ForestOptions {
	def := NewDefaultForestOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.NumTrees <= 0 {
		res.NumTrees = def.NumTrees
	}
	res.Tree = res.Tree.Validate()
	return &res
}

// Forest averages the predictions of trees fit on bootstrap samples.
type Forest struct {
	Trees []*Tree `json:"trees"`
}

// FitForest grows the trees sequentially, each from its own seeded generator.
func FitForest(x *mat.Dense, y []float64, opt *ForestOptions) (*Forest, error) {
	opt = opt.Validate()
	if x == nil || x.IsEmpty() {
		return nil, ErrNoTrainingData
	}
	m, _ := x.Dims()
	if len(y) != m {
		return nil, fmt.Errorf("training data has %d rows and target has %d, %w", m, len(y), ErrTargetLenMismatch)
	}

	forest := &Forest{Trees: make([]*Tree, 0, opt.NumTrees)}
	for i := 0; i < opt.NumTrees; i++ {
		rng := rand.New(rand.NewPCG(opt.Seed, uint64(i)))
		xs, ys := x, y
		if opt.Bootstrap {
			idx := make([]int, m)
			for j := range idx {
				idx[j] = rng.IntN(m)
			}
			var err error
			xs, err = mat_.SelectRows(x, idx)
			if err != nil {
				return nil, fmt.Errorf("unable to draw bootstrap sample, %w", err)
			}
			ys = make([]float64, m)
			for j, r := range idx {
				ys[j] = y[r]
			}
		}
		t, err := Fit(xs, ys, opt.Tree, rng)
		if err != nil {
			return nil, fmt.Errorf("unable to fit tree %d, %w", i, err)
		}
		forest.Trees = append(forest.Trees, t)
	}
	return forest, nil
}

// Predict returns the mean of the tree predictions.
func (f *Forest) Predict(row []float64) (float64, error) {
	if f == nil || len(f.Trees) == 0 {
		return 0, ErrNotFitted
	}
	var sum float64
	for _, t := range f.Trees {
		v, err := t.Predict(row)
		if err != nil {
			return 0, err
		}
		sum += v
	}
	return sum / float64(len(f.Trees)), nil
}

// BoostOptions configures gradient boosting with squared loss.
type BoostOptions struct {
	NumRounds    int      `json:"num_rounds"`
	LearningRate float64  `json:"learning_rate"`
	Tree         *Options `json:"tree"`

	// Subsample is the fraction of rows drawn without replacement for each round, 1 uses all
	Subsample float64 `json:"subsample"`
	Seed      uint64  `json:"seed"`
}

func NewDefaultBoostOptions() *BoostOptions {
	return &BoostOptions{
		NumRounds:    50,
		LearningRate: 0.05,
		Tree: &Options{
			MaxDepth:       6,
			MinSamplesLeaf: 1,
		},
		Subsample: 1.0,
		Seed:      42,
	}
}

// Validate fills unset options with defaults.
func (o *BoostOptions) Validate() *BoostOptions {
	def := NewDefaultBoostOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.NumRounds <= 0 {
		res.NumRounds = def.NumRounds
	}
	if res.LearningRate <= 0 || res.LearningRate > 1 {
		res.LearningRate = def.LearningRate
	}
	if res.Subsample <= 0 || res.Subsample > 1 {
		res.Subsample = 1.0
	}
	if res.Tree == nil {
		res.Tree = def.Tree
	}
	res.Tree = res.Tree.Validate()
	return &res
}

// Booster is an additive model of shrunken regression trees fit to successive residuals.
type Booster struct {
	Base         float64 `json:"base"`
	LearningRate float64 `json:"learning_rate"`
	Trees        []*Tree `json:"trees"`
}

// FitBooster starts from the target mean and adds one tree per round fit to the residuals of
// the current ensemble.
func FitBooster(x *mat.Dense, y []float64, opt *BoostOptions) (*Booster, error) {
	opt = opt.Validate()
	if x == nil || x.IsEmpty() {
		return nil, ErrNoTrainingData
	}
	m, _ := x.Dims()
	if len(y) != m {
		return nil, fmt.Errorf("training data has %d rows and target has %d, %w", m, len(y), ErrTargetLenMismatch)
	}

	var base float64
	for _, v := range y {
		base += v
	}
	base /= float64(m)

	b := &Booster{
		Base:         base,
		LearningRate: opt.LearningRate,
		Trees:        make([]*Tree, 0, opt.NumRounds),
	}
	pred := make([]float64, m)
	for i := range pred {
		pred[i] = base
	}
	residual := make([]float64, m)
	nSample := max(1, int(float64(m)*opt.Subsample))
	rng := rand.New(rand.NewPCG(opt.Seed, opt.Seed))

	for round := 0; round < opt.NumRounds; round++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		xs, rs := x, residual
		if nSample < m {
			idx := rng.Perm(m)[:nSample]
			var err error
			xs, err = mat_.SelectRows(x, idx)
			if err != nil {
				return nil, fmt.Errorf("unable to draw round sample, %w", err)
			}
			rs = make([]float64, nSample)
			for j, r := range idx {
				rs[j] = residual[r]
			}
		}

		t, err := Fit(xs, rs, opt.Tree, rng)
		if err != nil {
			return nil, fmt.Errorf("unable to fit round %d, %w", round, err)
		}
		b.Trees = append(b.Trees, t)

		for i := 0; i < m; i++ {
			v, err := t.Predict(x.RawRowView(i))
			if err != nil {
				return nil, err
			}
			pred[i] += opt.LearningRate * v
		}
	}
	return b, nil
}

// Predict sums the shrunken tree predictions on top of the base value.
func (b *Booster) Predict(row []float64) (float64, error) {
	if b == nil || len(b.Trees) == 0 {
		return 0, ErrNotFitted
	}
	res := b.Base
	for _, t := range b.Trees {
		v, err := t.Predict(row)
		if err != nil {
			return 0, err
		}
		res += b.LearningRate * v
	}
	return res, nil
}
