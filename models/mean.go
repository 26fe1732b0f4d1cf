package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
)

// profileArtifact is an occupancy value for each hour of a Monday based week.
type profileArtifact struct {
	Profile []float64 `json:"profile"`
	Mean    float64   `json:"mean"`
}

// weeklyProfile averages the observed values by (day of week, hour). Hours of the week that were
// never observed take the station mean.
func weeklyProfile(t []time.Time, y []float64) (*profileArtifact, error) {
	mean, err := finiteMean(y)
	if err != nil {
		return nil, err
	}
	sums := make([]float64, feature.HoursInWeek)
	counts := make([]int, feature.HoursInWeek)
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		wh := feature.WeekHour(t[i])
		sums[wh] += v
		counts[wh]++
	}
	profile := make([]float64, feature.HoursInWeek)
	for wh := range profile {
		if counts[wh] == 0 {
			profile[wh] = mean
			continue
		}
		profile[wh] = sums[wh] / float64(counts[wh])
	}
	return &profileArtifact{Profile: profile, Mean: mean}, nil
}

// predict looks up the (day of week, hour) of each forecast hour. The lookup follows the
// calendar position of the forecast hours so a window starting mid week stays aligned.
func (a *profileArtifact) predict(history *timedataset.TimeDataset, horizon int) ([]float64, error) {
	if a == nil || len(a.Profile) != feature.HoursInWeek {
		return nil, ErrCorruptArtifact
	}
	future := timedataset.TimeSlice(history.T).NextHours(horizon)
	res := make([]float64, len(future))
	for i, t := range future {
		res[i] = a.Profile[feature.WeekHour(t)]
	}
	return res, nil
}

func (a *profileArtifact) check() error {
	if a == nil {
		return ErrCorruptArtifact
	}
	return checkForecast(a.predict, 1, a.Mean)
}

// MeanProfile forecasts the average occupancy observed at the same hour of the week.
type MeanProfile struct {
	opt    *Options
	models stationModels[*profileArtifact]
}

func NewMeanProfile(opt *Options) *MeanProfile {
	return &MeanProfile{opt: opt.Validate()}
}

func (m *MeanProfile) Name() string {
	return MeanName
}

func (m *MeanProfile) MinHistory() int {
	return 1
}

// Train builds the weekly profile of every station. Interpolated points are kept since a
// smooth fill barely moves an hourly average.
func (m *MeanProfile) Train(ctx context.Context, frame *timedataset.Frame) error {
	tr := &trainer[*profileArtifact]{
		strategy: m.Name(),
		opt:      m.opt,
		fit: func(_ context.Context, _ string, train *timedataset.TimeDataset) (*profileArtifact, error) {
			return weeklyProfile(train.T, train.Y)
		},
		check: (*profileArtifact).check,
	}
	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	m.models.set(res, report)
	return nil
}

func (m *MeanProfile) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := m.models.get(station)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, history, horizon, m.MinHistory()); err != nil {
		return nil, err
	}
	vals, err := a.predict(history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(m.Name(), station, history, vals), nil
}

func (m *MeanProfile) Stations() []string {
	return m.models.stations()
}

func (m *MeanProfile) Report() TrainReport {
	return m.models.lastReport()
}
