package feature

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Set represents an ordered mapping of feature columns keyed by the string representation of
// each feature. Every column has m rows, shorter columns are padded with zeros.
type Set struct {
	m      int
	set    map[string][]float64
	labels []Feature
}

func NewSet() *Set {
	return &Set{
		set: make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.m
}

// NumFeatures returns the number of columns.
func (s *Set) NumFeatures() int {
	if s == nil {
		return 0
	}
	return len(s.labels)
}

// Set stores the column for a feature, overriding any existing column for the same feature
// while keeping its position.
func (s *Set) Set(f Feature, data []float64) *Set {
	if s.set == nil {
		s.set = make(map[string][]float64)
	}
	key := f.String()
	if _, exists := s.set[key]; !exists {
		s.labels = append(s.labels, f)
	}

	if len(data) > s.m {
		for k, v := range s.set {
			padded := make([]float64, len(data))
			copy(padded, v)
			s.set[k] = padded
		}
		s.m = len(data)
	}
	col := make([]float64, s.m)
	copy(col, data)
	s.set[key] = col
	return s
}

func (s *Set) Get(f Feature) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	data, exists := s.set[f.String()]
	return data, exists
}

// GetName fetches a column by its string representation.
func (s *Set) GetName(name string) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	data, exists := s.set[name]
	return data, exists
}

func (s *Set) Del(f Feature) *Set {
	key := f.String()
	if _, exists := s.set[key]; !exists {
		return s
	}
	delete(s.set, key)
	for i, label := range s.labels {
		if label.String() == key {
			s.labels = append(s.labels[:i], s.labels[i+1:]...)
			break
		}
	}
	if len(s.labels) == 0 {
		s.labels = nil
		s.m = 0
	}
	return s
}

// Update merges all features of the input set into this set.
func (s *Set) Update(next *Set) *Set {
	if next == nil {
		return s
	}
	for _, label := range next.labels {
		s.Set(label, next.set[label.String()])
	}
	return s
}

// Labels returns the features in column order.
func (s *Set) Labels() *Labels {
	if s == nil {
		return nil
	}
	labels := make([]Feature, len(s.labels))
	copy(labels, s.labels)
	return NewLabels(labels)
}

// Row returns the i-th observation in column order.
func (s *Set) Row(i int) []float64 {
	row := make([]float64, len(s.labels))
	for j, label := range s.labels {
		row[j] = s.set[label.String()][i]
	}
	return row
}

// Matrix returns a matrix representation of the Set to be used with matrix methods.
// The matrix has m rows representing the number of observations and n columns representing
// the number of features.
func (s *Set) Matrix(intercept bool) *mat.Dense {
	if s == nil || len(s.labels) == 0 {
		return nil
	}
	names := make([]string, len(s.labels))
	for i, label := range s.labels {
		names[i] = label.String()
	}
	return s.AlignedMatrix(names, intercept)
}

// AlignedMatrix returns the matrix with the given column order. Columns the set does not
// carry are filled with zeros so inference matrices line up with the recorded training
// columns.
func (s *Set) AlignedMatrix(columns []string, intercept bool) *mat.Dense {
	if s == nil || s.m == 0 || len(columns) == 0 {
		return nil
	}
	n := len(columns)
	if intercept {
		n += 1
	}
	obs := make([]float64, s.m*n)

	featNum := 0
	if intercept {
		for i := 0; i < s.m; i++ {
			obs[n*i] = 1.0
		}
		featNum += 1
	}
	for _, name := range columns {
		if feature, exists := s.set[name]; exists {
			for i := 0; i < s.m; i++ {
				obs[n*i+featNum] = feature[i]
			}
		}
		featNum += 1
	}
	return mat.NewDense(s.m, n, obs)
}

// DropRows returns a new set without the rows flagged in drop.
func (s *Set) DropRows(drop []bool) *Set {
	res := NewSet()
	for _, label := range s.labels {
		col := s.set[label.String()]
		kept := make([]float64, 0, len(col))
		for i, v := range col {
			if i < len(drop) && drop[i] {
				continue
			}
			kept = append(kept, v)
		}
		res.Set(label, kept)
	}
	return res
}

// NanRows flags every row that has at least one NaN column.
func (s *Set) NanRows() []bool {
	flags := make([]bool, s.m)
	for _, col := range s.set {
		for i, v := range col {
			if math.IsNaN(v) {
				flags[i] = true
			}
		}
	}
	return flags
}

// RemoveZeroOnlyFeatures drops every column where all values are zero.
func (s *Set) RemoveZeroOnlyFeatures() {
	for _, label := range s.Labels().Labels() {
		allZero := true
		for _, v := range s.set[label.String()] {
			if v != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			s.Del(label)
		}
	}
}
