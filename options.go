package forecaster

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/metrics"
	"github.com/aouyang1/go-stationcast/models"
	"github.com/aouyang1/go-stationcast/registry"
	"github.com/aouyang1/go-stationcast/timedataset"
)

// Options configures a Forecaster.
type Options struct {
	// Models are the strategy names trained by TrainAll, every strategy by default
	Models []string `json:"models"`

	// ModelDir persists fitted station models between runs, empty disables persistence
	ModelDir string `json:"model_dir"`

	// Workers bounds the number of stations trained concurrently per strategy
	Workers int `json:"workers"`

	// Horizon is the window length used to compute the predictions evaluated by Evaluate
	Horizon int `json:"horizon"`

	// TrainSize trains on the chronological prefix floor(n * TrainSize) of the frame leaving the
	// suffix held out for evaluation, registry.DefaultTrainSize when zero. A negative value such
	// as registry.WholeFrame trains on the whole frame.
	TrainSize float64 `json:"train_size"`

	// Country adds an is_holiday calendar column for the public holidays of the country
	Country string `json:"country"`

	Interpolation *feature.InterpolationOptions `json:"interpolation,omitempty"`
	Metrics       *metrics.Options              `json:"metrics,omitempty"`

	// Cache persists the evaluation predictions, none by default
	Cache           registry.PredictionCache  `json:"-"`
	Instrumentation *registry.Instrumentation `json:"-"`
	Logger          *slog.Logger              `json:"-"`
}

func NewDefaultOptions() *Options {
	return &Options{
		Models:        models.Names(),
		Workers:       runtime.NumCPU(),
		Horizon:       registry.DefaultHorizon,
		TrainSize:     registry.DefaultTrainSize,
		Interpolation: feature.NewDefaultInterpolationOptions(),
		Metrics:       metrics.NewDefaultOptions(),
		Cache:         registry.NopCache{},
		Logger:        slog.Default(),
	}
}

// Validate fills unset options with defaults and rejects unknown strategies.
func (o *Options) Validate() (*Options, error) {
	def := NewDefaultOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if len(res.Models) == 0 {
		res.Models = def.Models
	}
	known := make(map[string]struct{}, len(def.Models))
	for _, name := range def.Models {
		known[name] = struct{}{}
	}
	for _, name := range res.Models {
		if _, exists := known[name]; !exists {
			return nil, fmt.Errorf("%q, %w", name, ErrUnknownModel)
		}
	}
	if res.Workers <= 0 {
		res.Workers = def.Workers
	}
	if res.Horizon < 0 {
		return nil, fmt.Errorf("horizon %d, %w", res.Horizon, models.ErrInvalidHorizon)
	}
	if res.Horizon == 0 {
		res.Horizon = def.Horizon
	}
	if res.TrainSize >= 1 || math.IsNaN(res.TrainSize) {
		return nil, fmt.Errorf("got %f, %w", res.TrainSize, timedataset.ErrInvalidTrainSize)
	}
	if res.TrainSize == 0 {
		res.TrainSize = def.TrainSize
	}
	res.Interpolation = res.Interpolation.Validate()
	if res.Metrics == nil {
		res.Metrics = def.Metrics
	}
	if res.Metrics.Interpolation == nil {
		m := *res.Metrics
		m.Interpolation = res.Interpolation
		res.Metrics = &m
	}
	if res.Cache == nil {
		res.Cache = def.Cache
	}
	if res.Logger == nil {
		res.Logger = def.Logger
	}
	return &res, nil
}

// modelOptions builds the options shared by every strategy.
func (o *Options) modelOptions() (*models.Options, error) {
	opt := &models.Options{
		Workers:       o.Workers,
		Logger:        o.Logger,
		Calendar:      &feature.CalendarOptions{},
		Interpolation: o.Interpolation,
	}
	if o.Country != "" {
		holidays, err := feature.NewHolidayCalendar(o.Country)
		if err != nil {
			return nil, err
		}
		opt.Calendar.Holidays = holidays
	}
	if o.ModelDir != "" {
		store, err := models.NewStore(o.ModelDir)
		if err != nil {
			return nil, err
		}
		opt.Store = store
	}
	return opt, nil
}
