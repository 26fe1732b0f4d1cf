package models

import (
	"context"
	"fmt"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/linearmodel"
	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	EstimatorOLS   = "ols"
	EstimatorLasso = "lasso"
)

var (
	categoricalColumns = []string{feature.DayOfWeek, feature.IsWeekend, feature.IsSunday}
	scaledColumns      = []string{feature.Hour, feature.DayOfMonth, feature.Month}
)

// LinearRegressionOptions configures the per station regression.
type LinearRegressionOptions struct {
	Lag int `json:"lag"`

	// Estimator is either ols or lasso
	Estimator string                    `json:"estimator"`
	OLS       *linearmodel.OLSOptions   `json:"ols,omitempty"`
	Lasso     *linearmodel.LassoOptions `json:"lasso,omitempty"`
}

func NewDefaultLinearRegressionOptions() *LinearRegressionOptions {
	return &LinearRegressionOptions{
		Lag:       DefaultLag,
		Estimator: EstimatorOLS,
		OLS:       linearmodel.NewDefaultOLSOptions(),
		Lasso:     linearmodel.NewDefaultLassoOptions(),
	}
}

// Validate fills unset options with defaults.
func (o *LinearRegressionOptions) Validate() (*LinearRegressionOptions, error) {
	def := NewDefaultLinearRegressionOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if res.Lag < 0 {
		return nil, fmt.Errorf("lag %d, %w", res.Lag, ErrInvalidOptions)
	}
	if res.Lag == 0 {
		res.Lag = def.Lag
	}
	switch res.Estimator {
	case "":
		res.Estimator = def.Estimator
	case EstimatorOLS, EstimatorLasso:
	default:
		return nil, fmt.Errorf("estimator %q, %w", res.Estimator, ErrInvalidOptions)
	}
	if res.OLS == nil {
		res.OLS = def.OLS
	}
	if res.Lasso == nil {
		res.Lasso = def.Lasso
	}
	return &res, nil
}

// linearArtifact carries everything needed to rebuild the training design matrix at inference:
// the scaler parameters, the encoder levels and the recorded column order.
type linearArtifact struct {
	Lag       int                     `json:"lag"`
	Mean      float64                 `json:"mean"`
	Scaler    *feature.StandardScaler `json:"scaler"`
	Encoder   *feature.OneHotEncoder  `json:"encoder"`
	Columns   []string                `json:"columns"`
	Estimator string                  `json:"estimator"`
	Intercept float64                 `json:"intercept"`
	Coef      []float64               `json:"coef"`
}

// LinearRegression fits a linear model per station on one-hot encoded day columns, standardised
// hour, day of month and month, and the lagged occupancy.
type LinearRegression struct {
	opt       *Options
	linearOpt *LinearRegressionOptions
	models    stationModels[*linearArtifact]
}

func NewLinearRegression(opt *Options, linearOpt *LinearRegressionOptions) (*LinearRegression, error) {
	linearOpt, err := linearOpt.Validate()
	if err != nil {
		return nil, err
	}
	return &LinearRegression{
		opt:       opt.Validate(),
		linearOpt: linearOpt,
	}, nil
}

func (l *LinearRegression) Name() string {
	return LinearRegressionName
}

func (l *LinearRegression) MinHistory() int {
	return l.linearOpt.Lag
}

func (l *LinearRegression) estimator() (linearmodel.Model, error) {
	if l.linearOpt.Estimator == EstimatorLasso {
		return linearmodel.NewLassoRegression(l.linearOpt.Lasso)
	}
	return linearmodel.NewOLSRegression(l.linearOpt.OLS)
}

// encode applies the fitted scaler then the encoder and lines the result up with the recorded
// columns. Levels unseen in training are dropped and missing ones are zero filled.
func encode(a *linearArtifact, set *feature.Set) (*mat.Dense, error) {
	scaled, err := a.Scaler.Transform(set)
	if err != nil {
		return nil, err
	}
	encoded, err := a.Encoder.Transform(scaled)
	if err != nil {
		return nil, err
	}
	return encoded.AlignedMatrix(a.Columns, false), nil
}

func (l *LinearRegression) fit(_ context.Context, _ string, train *timedataset.TimeDataset) (*linearArtifact, error) {
	mean, err := finiteMean(train.Y)
	if err != nil {
		return nil, err
	}
	set, y, err := trainingSet(train, l.linearOpt.Lag, l.opt.Calendar, l.opt.Interpolation)
	if err != nil {
		return nil, err
	}

	a := &linearArtifact{
		Lag:       l.linearOpt.Lag,
		Mean:      mean,
		Scaler:    feature.NewStandardScaler(scaledColumns),
		Encoder:   feature.NewOneHotEncoder(categoricalColumns, true),
		Estimator: l.linearOpt.Estimator,
	}
	if err := a.Scaler.Fit(set); err != nil {
		return nil, fmt.Errorf("unable to fit scaler, %w", err)
	}
	if err := a.Encoder.Fit(set); err != nil {
		return nil, fmt.Errorf("unable to fit encoder, %w", err)
	}
	a.Columns = a.Encoder.Output

	x, err := encode(a, set)
	if err != nil {
		return nil, err
	}
	model, err := l.estimator()
	if err != nil {
		return nil, err
	}
	if err := model.Fit(x, mat.NewDense(len(y), 1, y)); err != nil {
		return nil, fmt.Errorf("unable to fit %s, %w", a.Estimator, err)
	}
	a.Intercept = model.Intercept()
	a.Coef = model.Coef()
	return a, nil
}

func (l *LinearRegression) predict(a *linearArtifact, history *timedataset.TimeDataset, horizon int) ([]float64, error) {
	if a == nil || a.Scaler == nil || a.Encoder == nil || len(a.Coef) != len(a.Columns) {
		return nil, ErrCorruptArtifact
	}
	set, err := forecastSet(history, horizon, a.Lag, l.opt.Calendar, a.Mean)
	if err != nil {
		return nil, err
	}
	x, err := encode(a, set)
	if err != nil {
		return nil, err
	}
	res := make([]float64, horizon)
	for i := range res {
		res[i] = a.Intercept + floats.Dot(x.RawRowView(i), a.Coef)
	}
	return res, nil
}

func (l *LinearRegression) check(a *linearArtifact) error {
	if a == nil || a.Lag != l.linearOpt.Lag || a.Estimator != l.linearOpt.Estimator {
		return fmt.Errorf("artifact does not match options, %w", ErrCorruptArtifact)
	}
	return checkForecast(func(history *timedataset.TimeDataset, horizon int) ([]float64, error) {
		return l.predict(a, history, horizon)
	}, a.Lag, a.Mean)
}

func (l *LinearRegression) Train(ctx context.Context, frame *timedataset.Frame) error {
	tr := &trainer[*linearArtifact]{
		strategy: l.Name(),
		opt:      l.opt,
		fit:      l.fit,
		check:    l.check,
	}
	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	l.models.set(res, report)
	return nil
}

func (l *LinearRegression) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := l.models.get(station)
	if err != nil {
		return nil, err
	}
	if horizon > a.Lag {
		return nil, fmt.Errorf("horizon %d with lag %d, %w", horizon, a.Lag, ErrLagTooSmall)
	}
	if err := validateRequest(ctx, history, horizon, a.Lag); err != nil {
		return nil, err
	}
	vals, err := l.predict(a, history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(l.Name(), station, history, vals), nil
}

func (l *LinearRegression) Stations() []string {
	return l.models.stations()
}

func (l *LinearRegression) Report() TrainReport {
	return l.models.lastReport()
}
