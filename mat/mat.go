// Package mat holds small helpers for building gonum matrices from row oriented data.
package mat

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrColMismatch    = errors.New("column size mismatch")
	ErrEmptyMatrix    = errors.New("matrix needs at least one row and column")
	ErrRowOutOfBounds = errors.New("row is out of bounds")
)

// NewDenseFromArray converts a slice of equally sized rows into a dense matrix.
func NewDenseFromArray(x [][]float64) (*mat.Dense, error) {
	m := len(x)

	n := -1
	for i, row := range x {
		if n >= 0 && len(row) != n {
			return nil, fmt.Errorf("at row %d, %w", i, ErrColMismatch)
		}
		if n < 0 {
			n = len(row)
		}
	}
	if m == 0 || n <= 0 {
		return nil, ErrEmptyMatrix
	}

	// flatten to row order
	data := make([]float64, 0, m*n)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(m, n, data), nil
}

// SelectRows copies the rows at the given indices, in order, into a new matrix. Indices may
// repeat which is how bootstrap samples are drawn.
func SelectRows(x mat.Matrix, idx []int) (*mat.Dense, error) {
	m, n := x.Dims()
	if len(idx) == 0 || n == 0 {
		return nil, ErrEmptyMatrix
	}
	res := mat.NewDense(len(idx), n, nil)
	row := make([]float64, n)
	for i, r := range idx {
		if r < 0 || r >= m {
			return nil, fmt.Errorf("row %d of %d, %w", r, m, ErrRowOutOfBounds)
		}
		mat.Row(row, r, x)
		res.SetRow(i, row)
	}
	return res, nil
}
