package linearmodel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// OLSOptions represents input options to run the OLS Regression
type OLSOptions struct {
	// FitIntercept adds a constant 1.0 feature as the first column if set to true
	FitIntercept bool `json:"fit_intercept"`

	// Rcond is the relative threshold on the diagonal of R below which the training matrix is
	// considered rank deficient and the minimum norm solution is used instead
	Rcond float64 `json:"rcond"`
}

// Validate runs basic validation on OLS options
func (o *OLSOptions) Validate() (*OLSOptions, error) {
	if o == nil {
		return NewDefaultOLSOptions(), nil
	}
	res := *o
	if res.Rcond <= 0 {
		res.Rcond = 1e-10
	}

	return &res, nil
}

// NewDefaultOLSOptions returns a default set of OLS Regression options
func NewDefaultOLSOptions() *OLSOptions {
	return &OLSOptions{
		FitIntercept: true,
		Rcond:        1e-10,
	}
}

// OLSModel is the serialisable state of a fitted OLS regression.
type OLSModel struct {
	Options   *OLSOptions `json:"options"`
	Intercept float64     `json:"intercept"`
	Coef      []float64   `json:"coef"`
}

// OLSRegression computes ordinary least squares using QR factorization, falling back to a
// minimum norm SVD solution when the training matrix is rank deficient, as happens with
// collinear one-hot encoded calendar columns.
type OLSRegression struct {
	opt       *OLSOptions
	coef      []float64
	intercept float64
}

// NewOLSRegression initializes an ordinary least squares model ready for fitting
func NewOLSRegression(opt *OLSOptions) (*OLSRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &OLSRegression{
		opt: opt,
	}, nil
}

// NewOLSRegressionFromModel restores a fitted regression.
func NewOLSRegressionFromModel(model OLSModel) (*OLSRegression, error) {
	opt, err := model.Options.Validate()
	if err != nil {
		return nil, err
	}
	coef := make([]float64, len(model.Coef))
	copy(coef, model.Coef)
	return &OLSRegression{
		opt:       opt,
		coef:      coef,
		intercept: model.Intercept,
	}, nil
}

// Model returns the serialisable state of the regression.
func (o *OLSRegression) Model() OLSModel {
	return OLSModel{
		Options:   o.opt,
		Intercept: o.intercept,
		Coef:      o.Coef(),
	}
}

func withIntercept(x mat.Matrix) mat.Matrix {
	m, _ := x.Dims()
	ones := make([]float64, m)
	floats.AddConst(1.0, ones)
	onesMx := mat.NewDense(1, m, ones)

	var xWithOnes mat.Dense
	xWithOnes.Stack(onesMx, x.T())
	return xWithOnes.T()
}

// Fit the model according to the given training data
func (o *OLSRegression) Fit(x, y mat.Matrix) error {
	if o.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, n := x.Dims()

	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}

	if o.opt.FitIntercept {
		x = withIntercept(x)
		_, n = x.Dims()
	}

	var c []float64
	if m >= n {
		c = o.solveQR(x, y, n)
	}
	if c == nil {
		var err error
		c, err = o.solveSVD(x, y, n)
		if err != nil {
			return err
		}
	}

	if o.opt.FitIntercept {
		o.intercept = c[0]
		o.coef = c[1:]
	} else {
		o.coef = c
	}

	return nil
}

// solveQR returns nil if the triangular factor is numerically singular.
func (o *OLSRegression) solveQR(x, y mat.Matrix, n int) []float64 {
	qr := new(mat.QR)
	qr.Factorize(x)

	q := new(mat.Dense)
	r := new(mat.Dense)

	qr.QTo(q)
	qr.RTo(r)

	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(r.At(i, i)))
	}
	for i := 0; i < n; i++ {
		if math.Abs(r.At(i, i)) <= o.opt.Rcond*maxDiag {
			return nil
		}
	}

	yq := new(mat.Dense)
	yq.Mul(y.T(), q)

	c := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		c[i] = yq.At(0, i)
		for j := i + 1; j < n; j++ {
			c[i] -= c[j] * r.At(i, j)
		}
		c[i] /= r.At(i, i)
	}
	return c
}

func (o *OLSRegression) solveSVD(x, y mat.Matrix, n int) ([]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, ErrSingularMatrix
	}
	rank := svd.Rank(o.opt.Rcond)
	if rank == 0 {
		return make([]float64, n), nil
	}
	var beta mat.Dense
	svd.SolveTo(&beta, y, rank)
	return mat.Col(nil, 0, &beta), nil
}

// Predict using the OLS model
func (o *OLSRegression) Predict(x mat.Matrix) ([]float64, error) {
	if o.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}

	coef := o.coef
	if o.opt.FitIntercept {
		coef = append([]float64{o.intercept}, o.coef...)
		x = withIntercept(x)
	}
	n := len(coef)

	xT := x.T()
	xn, _ := xT.Dims()
	if xn != n {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", xn, n, ErrFeatureLenMismatch)
	}
	coefMx := mat.NewDense(1, n, coef)

	var res mat.Dense
	res.Mul(coefMx, xT)
	return res.RawRowView(0), nil
}

// Score computes the coefficient of determination of the prediction
func (o *OLSRegression) Score(x, y mat.Matrix) (float64, error) {
	if o.opt == nil {
		return 0.0, ErrNoOptions
	}
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()

	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := o.Predict(x)
	if err != nil {
		return 0.0, err
	}

	ySlice := mat.Col(nil, 0, y)

	return stat.RSquaredFrom(res, ySlice, nil), nil
}

// Intercept returns the computed intercept if FitIntercept is set to true. Defaults to 0.0 if not set.
func (o *OLSRegression) Intercept() float64 {
	return o.intercept
}

// Coef returns a slice of the trained coefficients in the same order of the training feature Matrix by column.
func (o *OLSRegression) Coef() []float64 {
	c := make([]float64, len(o.coef))
	copy(c, o.coef)
	return c
}
