package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"time"

	forecaster "github.com/aouyang1/go-stationcast"
	"github.com/aouyang1/go-stationcast/cmd/stationcast/loader"
	"github.com/aouyang1/go-stationcast/internal/fsutil"
	"github.com/aouyang1/go-stationcast/metrics"
	"github.com/aouyang1/go-stationcast/models"
	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/goccy/go-json"
)

// report is the document written at the end of a run.
type report struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Frame       frameSummary          `json:"frame"`
	Centroid    []float64             `json:"centroid,omitempty"`
	Stations    []timedataset.Station `json:"stations,omitempty"`
	Evaluation  evaluation            `json:"evaluation"`
	Forecasts   []*models.Forecast    `json:"forecasts,omitempty"`
}

type frameSummary struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Hours    int       `json:"hours"`
	Stations int       `json:"stations"`
}

type evaluation struct {
	RunID     string            `json:"run_id,omitempty"`
	Start     time.Time         `json:"start"`
	Hours     int               `json:"hours"`
	Summaries []metrics.Summary `json:"summaries"`
	Records   []metrics.Record  `json:"records"`
}

func newReport(frame *timedataset.Frame) *report {
	idx := frame.Index()
	return &report{
		GeneratedAt: time.Now().UTC(),
		Frame: frameSummary{
			Start:    idx.StartTime(),
			End:      idx.EndTime(),
			Hours:    frame.Len(),
			Stations: len(frame.Stations()),
		},
	}
}

// setStations keeps the coordinates of the stations present in the frame.
func (r *report) setStations(frame *timedataset.Frame, stations []timedataset.Station, logger *slog.Logger) {
	var located []timedataset.Station
	for _, s := range stations {
		if frame.HasStation(s.Code) {
			located = append(located, s)
		}
	}
	if missing := len(frame.Stations()) - len(located); missing > 0 {
		logger.Warn("stations without coordinates", "count", missing)
	}
	if len(located) == 0 {
		return
	}
	lat, lon := loader.Centroid(located)
	r.Centroid = []float64{lat, lon}
	r.Stations = located
}

func (r *report) setEvaluation(start time.Time, hours int, records []metrics.Record) {
	r.Evaluation = evaluation{
		Start:     start,
		Hours:     hours,
		Summaries: metrics.Aggregate(records, true),
		Records:   records,
	}
}

// addForecasts forecasts the hours following the frame for every trained model and station.
// Stations a model cannot forecast are logged and left out.
func (r *report) addForecasts(
	ctx context.Context,
	f *forecaster.Forecaster,
	frame *timedataset.Frame,
	horizon int,
	logger *slog.Logger,
) error {
	for _, model := range f.ListModels() {
		for _, station := range frame.Stations() {
			history, err := frame.Column(station)
			if err != nil {
				return err
			}
			fc, err := f.Predict(ctx, model, station, history, horizon)
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return err
			case err != nil:
				logger.Warn("unable to forecast station", "model", model, "station", station, "error", err)
				continue
			case slices.ContainsFunc(fc.Y, math.IsNaN):
				logger.Warn("forecast has missing hours", "model", model, "station", station)
				continue
			}
			r.Forecasts = append(r.Forecasts, fc)
		}
	}
	return nil
}

// write encodes the report to path, or to stdout when path is empty.
func (r *report) write(path string, stdout io.Writer) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode report, %w", err)
	}
	data = append(data, '\n')
	if path == "" {
		_, err := stdout.Write(data)
		return err
	}
	return fsutil.WriteFileAtomic(path, data, 0o644)
}
