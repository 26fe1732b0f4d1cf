package feature

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

var ErrMissingColumn = errors.New("feature column not found in set")

// OneHotEncoder expands integer valued categorical columns into indicator columns. The fitted
// output column order is recorded so that inference sets line up with the training set even
// when a level is absent from the inference window.
type OneHotEncoder struct {
	Columns   []string         `json:"columns"`
	DropFirst bool             `json:"drop_first"`
	Levels    map[string][]int `json:"levels"`
	Output    []string         `json:"output"`
}

func NewOneHotEncoder(columns []string, dropFirst bool) *OneHotEncoder {
	return &OneHotEncoder{
		Columns:   columns,
		DropFirst: dropFirst,
	}
}

// Fit records the sorted levels of each categorical column and the resulting output columns.
// Columns of the set that are not encoded pass through in their original order.
func (e *OneHotEncoder) Fit(s *Set) error {
	e.Levels = make(map[string][]int, len(e.Columns))
	e.Output = nil

	encoded := make(map[string]struct{}, len(e.Columns))
	for _, col := range e.Columns {
		vals, exists := s.GetName(col)
		if !exists {
			return fmt.Errorf("%s, %w", col, ErrMissingColumn)
		}
		encoded[col] = struct{}{}
		e.Levels[col] = levels(vals)
	}

	for _, name := range s.Labels().Names() {
		if _, isEncoded := encoded[name]; isEncoded {
			continue
		}
		e.Output = append(e.Output, name)
	}
	for _, col := range e.Columns {
		lvls := e.Levels[col]
		if e.DropFirst && len(lvls) > 0 {
			lvls = lvls[1:]
		}
		for _, lvl := range lvls {
			e.Output = append(e.Output, NewDummy(col, lvl).String())
		}
	}
	return nil
}

// Transform returns a set with every encoded column replaced by one indicator column per level
// present in the input. Use the Output order with Set.AlignedMatrix to drop unseen levels and
// zero fill levels missing from this input.
func (e *OneHotEncoder) Transform(s *Set) (*Set, error) {
	encoded := make(map[string]struct{}, len(e.Columns))
	for _, col := range e.Columns {
		encoded[col] = struct{}{}
	}

	res := NewSet()
	for _, label := range s.Labels().Labels() {
		if _, isEncoded := encoded[label.String()]; isEncoded {
			continue
		}
		vals, _ := s.Get(label)
		res.Set(label, vals)
	}
	for _, col := range e.Columns {
		vals, exists := s.GetName(col)
		if !exists {
			return nil, fmt.Errorf("%s, %w", col, ErrMissingColumn)
		}
		for _, lvl := range levels(vals) {
			indicator := make([]float64, len(vals))
			for i, v := range vals {
				if int(v) == lvl {
					indicator[i] = 1.0
				}
			}
			res.Set(NewDummy(col, lvl), indicator)
		}
	}
	return res, nil
}

func levels(vals []float64) []int {
	seen := make(map[int]struct{})
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		seen[int(v)] = struct{}{}
	}
	lvls := make([]int, 0, len(seen))
	for lvl := range seen {
		lvls = append(lvls, lvl)
	}
	slices.Sort(lvls)
	return lvls
}

// StandardScaler centers columns on their training mean and scales them to unit variance.
type StandardScaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func NewStandardScaler(columns []string) *StandardScaler {
	return &StandardScaler{Columns: columns}
}

// Fit computes the population mean and standard deviation of each column. Constant columns get
// a scale of 1 so they are only centered.
func (sc *StandardScaler) Fit(s *Set) error {
	sc.Mean = make([]float64, len(sc.Columns))
	sc.Scale = make([]float64, len(sc.Columns))
	for i, col := range sc.Columns {
		vals, exists := s.GetName(col)
		if !exists {
			return fmt.Errorf("%s, %w", col, ErrMissingColumn)
		}
		mean, std := stat.PopMeanStdDev(vals, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1.0
		}
		sc.Mean[i] = mean
		sc.Scale[i] = std
	}
	return nil
}

// Transform returns a copy of the set with the fitted columns standardised.
func (sc *StandardScaler) Transform(s *Set) (*Set, error) {
	res := NewSet().Update(s)
	for i, col := range sc.Columns {
		vals, exists := s.GetName(col)
		if !exists {
			return nil, fmt.Errorf("%s, %w", col, ErrMissingColumn)
		}
		scaled := make([]float64, len(vals))
		for j, v := range vals {
			scaled[j] = (v - sc.Mean[i]) / sc.Scale[i]
		}
		for _, label := range s.Labels().Labels() {
			if label.String() == col {
				res.Set(label, scaled)
				break
			}
		}
	}
	return res, nil
}
