// Package forecaster trains interchangeable occupancy forecasting strategies on the hourly
// history of every station of a bike share city, forecasts any station from a supplied history
// and scores the strategies against the observed occupancy over arbitrary windows.
package forecaster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aouyang1/go-stationcast/metrics"
	"github.com/aouyang1/go-stationcast/models"
	"github.com/aouyang1/go-stationcast/registry"
	"github.com/aouyang1/go-stationcast/timedataset"
)

var (
	ErrDataAlignment   = metrics.ErrDataAlignment
	ErrModelNotTrained = models.ErrModelNotTrained
	ErrUnknownModel    = models.ErrUnknownModel
	ErrNotTrained      = errors.New("forecaster has not been trained")
)

// Forecaster is the entry point of the library. TrainAll must be called before any forecast
// or evaluation.
type Forecaster struct {
	opt      *Options
	modelOpt *models.Options
	logger   *slog.Logger

	mu       sync.RWMutex
	registry *registry.Registry
}

// New creates a Forecaster using the provided options. If no options are provided a default is
// used.
func New(opt *Options) (*Forecaster, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	modelOpt, err := opt.modelOptions()
	if err != nil {
		return nil, fmt.Errorf("unable to initialize model options, %w", err)
	}
	return &Forecaster{
		opt:      opt,
		modelOpt: modelOpt,
		logger:   opt.Logger,
	}, nil
}

// TrainAll builds every configured strategy and trains it on the training prefix of the frame,
// or on the whole frame when TrainSize is negative. A successful call replaces the strategies of
// any previous call.
func (f *Forecaster) TrainAll(ctx context.Context, frame *timedataset.Frame) error {
	reg, err := registry.New(
		&registry.Options{
			Horizon:         f.opt.Horizon,
			TrainSize:       f.opt.TrainSize,
			Instrumentation: f.opt.Instrumentation,
		},
		f.opt.Cache,
		f.logger,
	)
	if err != nil {
		return err
	}
	for _, name := range f.opt.Models {
		m, err := models.New(name, f.modelOpt)
		if err != nil {
			return fmt.Errorf("unable to build %s, %w", name, err)
		}
		if err := reg.Register(m); err != nil {
			return err
		}
	}

	start := time.Now()
	if err := reg.Initialize(ctx, frame); err != nil {
		return fmt.Errorf("unable to train models, %w", err)
	}
	f.logger.Info("trained every model",
		"models", len(f.opt.Models),
		"stations", len(frame.Stations()),
		"hours", frame.Len(),
		"duration", time.Since(start),
	)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry = reg
	return nil
}

func (f *Forecaster) trained() (*registry.Registry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.registry == nil {
		return nil, ErrNotTrained
	}
	return f.registry, nil
}

// ListModels returns the sorted names of the trained strategies.
func (f *Forecaster) ListModels() []string {
	reg, err := f.trained()
	if err != nil {
		return nil
	}
	return reg.List()
}

// Predict forecasts the horizon hours following history with the named strategy.
func (f *Forecaster) Predict(
	ctx context.Context,
	model, station string,
	history *timedataset.TimeDataset,
	horizon int,
) (*models.Forecast, error) {
	reg, err := f.trained()
	if err != nil {
		return nil, err
	}
	m, err := reg.Get(model)
	if err != nil {
		return nil, err
	}
	return m.Predict(ctx, station, history, horizon)
}

// Evaluate scores a strategy over the window [start, start+horizon hours) of the training
// frame, for one station or for every trained station when station is empty. The window must
// lie within the frame. Interpolated hours of the observed occupancy carry no weight.
func (f *Forecaster) Evaluate(
	ctx context.Context,
	model, station string,
	start time.Time,
	horizon int,
	kinds []metrics.Kind,
) (map[string]map[metrics.Kind]float64, error) {
	reg, err := f.trained()
	if err != nil {
		return nil, err
	}
	m, err := reg.Get(model)
	if err != nil {
		return nil, err
	}
	frame, err := reg.Frame()
	if err != nil {
		return nil, err
	}
	end, err := window(frame, start, horizon)
	if err != nil {
		return nil, err
	}

	stations := []string{station}
	if station == "" {
		stations = m.Stations()
	} else if !frame.HasStation(station) {
		return nil, fmt.Errorf("station %s, %w", station, ErrModelNotTrained)
	}

	defer f.flush(ctx, reg)

	res := make(map[string]map[metrics.Kind]float64, len(stations))
	for _, st := range stations {
		scores, err := f.evaluateStation(ctx, reg, frame, model, st, start, end, kinds)
		if err != nil {
			if station == "" && errors.Is(err, metrics.ErrZeroWeights) {
				f.logger.Warn("no observed hours to score",
					"model", model,
					"station", st,
					"start", start,
					"end", end,
				)
				continue
			}
			return nil, err
		}
		res[st] = scores
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("model %s between %s and %s, %w", model, start, end, metrics.ErrZeroWeights)
	}
	return res, nil
}

// flush persists the predictions computed by an evaluation. A failing cache only costs a
// recomputation on the next run.
func (f *Forecaster) flush(ctx context.Context, reg *registry.Registry) {
	if err := reg.Flush(ctx); err != nil {
		f.logger.Warn("unable to save prediction cache", "error", err.Error())
	}
}

func (f *Forecaster) evaluateStation(
	ctx context.Context,
	reg *registry.Registry,
	frame *timedataset.Frame,
	model, station string,
	start, end time.Time,
	kinds []metrics.Kind,
) (map[metrics.Kind]float64, error) {
	pred, err := reg.PredictionsFor(ctx, model, station)
	if err != nil {
		return nil, err
	}
	reality, err := frame.Column(station)
	if err != nil {
		return nil, err
	}
	// interpolation is detected on the whole observed column so only the prediction is windowed
	scores, err := metrics.Compute(pred.Between(start, end), reality, kinds, f.opt.Metrics)
	if err != nil {
		return nil, fmt.Errorf("unable to score station %s, %w", station, err)
	}
	return scores, nil
}

// window returns the exclusive end of the evaluation window after checking it lies within the
// frame.
func window(frame *timedataset.Frame, start time.Time, horizon int) (time.Time, error) {
	if horizon <= 0 {
		return time.Time{}, fmt.Errorf("horizon %d, %w", horizon, models.ErrInvalidHorizon)
	}
	idx := frame.Index()
	first := idx.StartTime()
	last := idx.EndTime()
	end := start.Add(time.Duration(horizon) * time.Hour)
	if start.Before(first) || end.After(last.Add(time.Hour)) {
		return time.Time{}, fmt.Errorf(
			"window [%s, %s) outside of frame [%s, %s], %w",
			start, end, first, last, ErrDataAlignment,
		)
	}
	return end, nil
}

// EvaluateRecords scores every trained strategy on every station over the window.
func (f *Forecaster) EvaluateRecords(
	ctx context.Context,
	start time.Time,
	horizon int,
	kinds []metrics.Kind,
) ([]metrics.Record, error) {
	reg, err := f.trained()
	if err != nil {
		return nil, err
	}
	var records []metrics.Record
	for _, model := range reg.List() {
		scores, err := f.Evaluate(ctx, model, "", start, horizon, kinds)
		if err != nil {
			return nil, fmt.Errorf("unable to evaluate %s, %w", model, err)
		}
		for _, station := range slices.Sorted(maps.Keys(scores)) {
			records = append(records, metrics.NewRecords(model, station, scores[station])...)
		}
	}
	return records, nil
}

// EvaluateAll is the global score table, the mean score of every strategy and metric across
// stations.
func (f *Forecaster) EvaluateAll(
	ctx context.Context,
	start time.Time,
	horizon int,
	kinds []metrics.Kind,
) ([]metrics.Summary, error) {
	records, err := f.EvaluateRecords(ctx, start, horizon, kinds)
	if err != nil {
		return nil, err
	}
	return metrics.Aggregate(records, true), nil
}
