package linearmodel

import (
	"testing"

	mat_ "github.com/aouyang1/go-stationcast/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLassoOptionsValidate(t *testing.T) {
	testData := map[string]struct {
		opt      *LassoOptions
		err      error
		expected *LassoOptions
	}{
		"nil": {nil, nil, NewDefaultLassoOptions()},
		"valid": {
			&LassoOptions{
				Lambda:     1.0,
				Iterations: 100,
				Tolerance:  1e-5,
			}, nil,
			&LassoOptions{
				Lambda:     1.0,
				Iterations: 100,
				Tolerance:  1e-5,
			},
		},
		"invalid lambda": {
			&LassoOptions{Lambda: -1.0},
			ErrNegativeLambda, nil,
		},
		"invalid iterations": {
			&LassoOptions{Iterations: -1.0},
			ErrNegativeIterations, nil,
		},
		"invalid tolerance": {
			&LassoOptions{Tolerance: -1.0},
			ErrNegativeTolerance, nil,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			opt, err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, opt)
		})
	}
}

func TestLassoRegression(t *testing.T) {
	// y = 2 + 3*x0 + 4*x1
	tol := 1e-5
	testData := map[string]struct {
		x         [][]float64
		y         []float64
		opt       *LassoOptions
		intercept float64
		coef      []float64
	}{
		"model intercept": {
			x: [][]float64{
				{0, 0},
				{3, 5},
				{9, 20},
				{12, 6},
				{15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: &LassoOptions{
				Iterations:   1000,
				Tolerance:    1e-9,
				FitIntercept: true,
			},
			intercept: 2.0,
			coef:      []float64{3.0, 4.0},
		},
		"model no intercept": {
			x: [][]float64{
				{1, 0, 0},
				{1, 3, 5},
				{1, 9, 20},
				{1, 12, 6},
				{1, 15, 10},
			},
			y: []float64{2, 31, 109, 62, 87},
			opt: &LassoOptions{
				Iterations: 1000,
				Tolerance:  1e-9,
			},
			intercept: 0.0,
			coef:      []float64{2.0, 3.0, 4.0},
		},
		"model constant": {
			x: [][]float64{
				{1},
				{1},
				{1},
				{1},
				{1},
			},
			y: []float64{3, 3, 3, 3, 3},
			opt: &LassoOptions{
				Iterations: 1000,
				Tolerance:  1e-9,
			},
			intercept: 0.0,
			coef:      []float64{3.0},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			x, err := mat_.NewDenseFromArray(td.x)
			require.Nil(t, err)

			y := mat.NewDense(len(td.y), 1, td.y)

			model, err := NewLassoRegression(td.opt)
			require.Nil(t, err)

			testModel(t, model, x, y, td.intercept, td.coef, tol)
		})
	}
}

func TestLassoRegressionShrinks(t *testing.T) {
	x, err := mat_.NewDenseFromArray([][]float64{
		{0, 0},
		{3, 5},
		{9, 20},
		{12, 6},
		{15, 10},
	})
	require.NoError(t, err)
	y := mat.NewDense(5, 1, []float64{2, 31, 109, 62, 87})

	model, err := NewLassoRegression(&LassoOptions{
		Lambda:       1000,
		Iterations:   1000,
		Tolerance:    1e-9,
		FitIntercept: true,
	})
	require.NoError(t, err)
	require.NoError(t, model.Fit(x, y))

	coef := model.Coef()
	assert.Equal(t, 0.0, coef[0], "weakest feature is dropped")
	assert.Greater(t, coef[1], 0.0)
	assert.Less(t, coef[1], 4.0)

	_, err = model.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}

func TestSoftThreshold(t *testing.T) {
	testData := map[string]struct {
		x, gamma, expected float64
	}{
		"inside":   {0.5, 1.0, 0.0},
		"positive": {3.0, 1.0, 2.0},
		"negative": {-3.0, 1.0, -2.0},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, SoftThreshold(td.x, td.gamma))
		})
	}
}
