package models

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aouyang1/go-stationcast/timedataset"
	"golang.org/x/sync/errgroup"
)

// stationModels is the fitted state of one strategy, one artifact per station.
type stationModels[A any] struct {
	mu        sync.RWMutex
	artifacts map[string]A
	report    TrainReport
}

func (s *stationModels[A]) get(station string) (A, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, exists := s.artifacts[station]
	if !exists {
		var zero A
		return zero, fmt.Errorf("station %s, %w", station, ErrModelNotTrained)
	}
	return a, nil
}

func (s *stationModels[A]) set(artifacts map[string]A, report TrainReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = artifacts
	s.report = report
}

func (s *stationModels[A]) stations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.artifacts))
}

func (s *stationModels[A]) lastReport() TrainReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// trainer fits or restores the artifact of every station of a frame.
type trainer[A any] struct {
	strategy string
	opt      *Options

	// fit builds a fresh artifact from the station training column
	fit func(ctx context.Context, station string, train *timedataset.TimeDataset) (A, error)

	// check must succeed before a restored artifact is used, usually by forecasting one hour
	check func(A) error

	// fingerprint identifies the data an artifact depends on, defaults to the station column
	fingerprint func(frame *timedataset.Frame, station string) (string, error)
}

// run trains every station concurrently. Station failures are logged and skipped, the run only
// fails if ctx is done or no station at all could be trained.
func (tr *trainer[A]) run(ctx context.Context, frame *timedataset.Frame) (map[string]A, TrainReport, error) {
	var report TrainReport
	if frame == nil {
		return nil, report, timedataset.ErrNoTrainingData
	}
	logger := tr.opt.Logger.With("model", tr.strategy)
	fingerprint := tr.fingerprint
	if fingerprint == nil {
		fingerprint = func(f *timedataset.Frame, station string) (string, error) {
			return f.Fingerprint(station)
		}
	}

	var mu sync.Mutex
	res := make(map[string]A)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tr.opt.Workers)
	for _, station := range frame.Stations() {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, loaded, err := tr.station(gctx, frame, station, fingerprint)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				report.Failed++
				logger.Warn("skipping station", "station", station, "error", err.Error())
				return nil
			case loaded:
				report.Loaded++
			default:
				report.Fitted++
			}
			res[station] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, fmt.Errorf("training %s interrupted, %w", tr.strategy, err)
	}
	if len(res) == 0 {
		return nil, report, fmt.Errorf("%s, %w", tr.strategy, ErrNoStationsTrained)
	}
	logger.Info("trained model",
		"fitted", report.Fitted,
		"loaded", report.Loaded,
		"failed", report.Failed,
		"duration", time.Since(start),
	)
	return res, report, nil
}

// station restores the persisted artifact when it is present, current and usable, and fits
// the station otherwise. The returned flag is true for restored artifacts.
func (tr *trainer[A]) station(
	ctx context.Context,
	frame *timedataset.Frame,
	station string,
	fingerprint func(*timedataset.Frame, string) (string, error),
) (A, bool, error) {
	var zero A
	logger := tr.opt.Logger.With("model", tr.strategy, "station", station)

	fp, err := fingerprint(frame, station)
	if err != nil {
		return zero, false, err
	}

	store := tr.opt.Store
	if store != nil {
		var a A
		_, err := store.Load(tr.strategy, station, fp, &a)
		switch {
		case err == nil:
			cerr := tr.check(a)
			if cerr == nil {
				return a, true, nil
			}
			logger.Warn("persisted model failed validation, refitting", "error", cerr.Error())
		case errors.Is(err, ErrArtifactNotFound):
			// first run for this station
		case errors.Is(err, ErrStaleArtifact):
			logger.Warn("stale persisted model, refitting", "error", err.Error())
		default:
			logger.Error("unable to load persisted model, refitting", "error", err.Error())
		}
	}

	train, err := frame.Column(station)
	if err != nil {
		return zero, false, err
	}
	a, err := tr.fit(ctx, station, train)
	if err != nil {
		return zero, false, err
	}

	if store != nil {
		if err := store.Save(tr.strategy, station, fp, a); err != nil {
			logger.Error("unable to persist model", "error", err.Error())
		}
	}
	return a, false, nil
}
