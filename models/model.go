// Package models holds the station forecasting strategies. Every strategy fits one model per
// station from its own training column, persists the fitted parameters through a Store and
// forecasts a fixed number of hours following a supplied history.
package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
)

// Model is the lifecycle shared by every strategy. Predict fails with ErrModelNotTrained until
// Train has fitted the requested station.
type Model interface {
	Name() string
	Train(ctx context.Context, frame *timedataset.Frame) error
	Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error)
	Stations() []string

	// MinHistory is the number of history points Predict needs to anchor a forecast
	MinHistory() int
}

// Reporter is implemented by strategies that expose the outcome of their last training run.
type Reporter interface {
	Report() TrainReport
}

// TrainReport counts how each station was handled in a training run.
type TrainReport struct {
	Fitted int `json:"fitted"`
	Loaded int `json:"loaded"`
	Failed int `json:"failed"`
}

// Options are shared by every strategy.
type Options struct {
	// Workers bounds the number of stations fitted concurrently
	Workers int

	// Store persists fitted station models, nil disables persistence
	Store *Store

	Logger        *slog.Logger
	Calendar      *feature.CalendarOptions
	Interpolation *feature.InterpolationOptions
}

func NewDefaultOptions() *Options {
	return &Options{
		Workers:       runtime.NumCPU(),
		Logger:        slog.Default(),
		Calendar:      &feature.CalendarOptions{},
		Interpolation: feature.NewDefaultInterpolationOptions(),
	}
}

// Validate fills unset options with defaults.
func (o *Options) Validate() *Options {
	def := NewDefaultOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.Workers <= 0 {
		res.Workers = def.Workers
	}
	if res.Logger == nil {
		res.Logger = def.Logger
	}
	if res.Calendar == nil {
		res.Calendar = def.Calendar
	}
	res.Interpolation = res.Interpolation.Validate()
	return &res
}

// Forecast is the predicted occupancy for the hours following a history.
type Forecast struct {
	Model   string `json:"model"`
	Station string `json:"station"`
	timedataset.TimeDataset
}

// newForecast indexes the values on the hours after the last history point and clips them to
// the valid occupancy range.
func newForecast(model, station string, history *timedataset.TimeDataset, values []float64) *Forecast {
	y := make([]float64, len(values))
	for i, v := range values {
		y[i] = clip(v)
	}
	return &Forecast{
		Model:   model,
		Station: station,
		TimeDataset: timedataset.TimeDataset{
			T: timedataset.TimeSlice(history.T).NextHours(len(values)),
			Y: y,
		},
	}
}

func clip(v float64) float64 {
	return math.Min(math.Max(v, 0.0), 1.0)
}

// validateRequest checks the arguments common to every Predict call.
func validateRequest(ctx context.Context, history *timedataset.TimeDataset, horizon, minHistory int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if horizon <= 0 {
		return fmt.Errorf("horizon %d, %w", horizon, ErrInvalidHorizon)
	}
	if history == nil || len(history.T) == 0 {
		return fmt.Errorf("empty history, %w", ErrInsufficientHistory)
	}
	if len(history.T) != len(history.Y) {
		return fmt.Errorf(
			"history has %d time points and %d values, %w",
			len(history.T), len(history.Y), timedataset.ErrDatasetLenMismatch,
		)
	}
	if err := timedataset.TimeSlice(history.T).ValidateHourly(); err != nil {
		return fmt.Errorf("invalid history, %w", err)
	}
	if len(history.T) < minHistory {
		return fmt.Errorf("got %d history points, need %d, %w", len(history.T), minHistory, ErrInsufficientHistory)
	}
	return nil
}
