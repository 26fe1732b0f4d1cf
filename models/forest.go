package models

import (
	"context"
	"fmt"

	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/aouyang1/go-stationcast/tree"
)

// DefaultLag is one week of hours, the recurring pattern of station occupancy.
const DefaultLag = 168

// RandomForestOptions configures the per station forest.
type RandomForestOptions struct {
	// Lag is the offset in hours of the lag feature. Forecasts cannot be longer than Lag.
	Lag    int                 `json:"lag"`
	Forest *tree.ForestOptions `json:"forest"`
}

func NewDefaultRandomForestOptions() *RandomForestOptions {
	return &RandomForestOptions{
		Lag:    DefaultLag,
		Forest: tree.NewDefaultForestOptions(),
	}
}

// Validate fills unset options with defaults.
func (o *RandomForestOptions) Validate() (*RandomForestOptions, error) {
	def := NewDefaultRandomForestOptions()
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
	res.Forest = res.Forest.Validate()
	return &res, nil
}

type forestArtifact struct {
	Lag     int          `json:"lag"`
	Mean    float64      `json:"mean"`
	Columns []string     `json:"columns"`
	Forest  *tree.Forest `json:"forest"`
}

// RandomForest fits a forest of regression trees per station on calendar features and the
// occupancy one lag earlier.
type RandomForest struct {
	opt       *Options
	forestOpt *RandomForestOptions
	models    stationModels[*forestArtifact]
}

func NewRandomForest(opt *Options, forestOpt *RandomForestOptions) (*RandomForest, error) {
	forestOpt, err := forestOpt.Validate()
	if err != nil {
		return nil, err
	}
	return &RandomForest{
		opt:       opt.Validate(),
		forestOpt: forestOpt,
	}, nil
}

func (r *RandomForest) Name() string {
	return RandomForestName
}

func (r *RandomForest) MinHistory() int {
	return r.forestOpt.Lag
}

func (r *RandomForest) fit(_ context.Context, _ string, train *timedataset.TimeDataset) (*forestArtifact, error) {
	mean, err := finiteMean(train.Y)
	if err != nil {
		return nil, err
	}
	set, y, err := trainingSet(train, r.forestOpt.Lag, r.opt.Calendar, r.opt.Interpolation)
	if err != nil {
		return nil, err
	}
	columns := set.Labels().Names()
	forest, err := tree.FitForest(set.AlignedMatrix(columns, false), y, r.forestOpt.Forest)
	if err != nil {
		return nil, fmt.Errorf("unable to fit forest, %w", err)
	}
	return &forestArtifact{
		Lag:     r.forestOpt.Lag,
		Mean:    mean,
		Columns: columns,
		Forest:  forest,
	}, nil
}

func (r *RandomForest) predict(a *forestArtifact, history *timedataset.TimeDataset, horizon int) ([]float64, error) {
	if a == nil || a.Forest == nil {
		return nil, ErrCorruptArtifact
	}
	set, err := forecastSet(history, horizon, a.Lag, r.opt.Calendar, a.Mean)
	if err != nil {
		return nil, err
	}
	x := set.AlignedMatrix(a.Columns, false)
	res := make([]float64, horizon)
	for i := range res {
		res[i], err = a.Forest.Predict(x.RawRowView(i))
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *RandomForest) check(a *forestArtifact) error {
	if a == nil || a.Lag != r.forestOpt.Lag {
		return fmt.Errorf("artifact lag does not match options, %w", ErrCorruptArtifact)
	}
	return checkForecast(func(history *timedataset.TimeDataset, horizon int) ([]float64, error) {
		return r.predict(a, history, horizon)
	}, a.Lag, a.Mean)
}

func (r *RandomForest) Train(ctx context.Context, frame *timedataset.Frame) error {
	tr := &trainer[*forestArtifact]{
		strategy: r.Name(),
		opt:      r.opt,
		fit:      r.fit,
		check:    r.check,
	}
	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	r.models.set(res, report)
	return nil
}

func (r *RandomForest) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := r.models.get(station)
	if err != nil {
		return nil, err
	}
	if horizon > a.Lag {
		return nil, fmt.Errorf("horizon %d with lag %d, %w", horizon, a.Lag, ErrLagTooSmall)
	}
	if err := validateRequest(ctx, history, horizon, a.Lag); err != nil {
		return nil, err
	}
	vals, err := r.predict(a, history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(r.Name(), station, history, vals), nil
}

func (r *RandomForest) Stations() []string {
	return r.models.stations()
}

func (r *RandomForest) Report() TrainReport {
	return r.models.lastReport()
}
