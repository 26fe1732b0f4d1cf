// Package main implements the stationcast batch command. It loads a city occupancy export,
// trains every forecasting strategy, scores them on the held out hours and writes a report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	forecaster "github.com/aouyang1/go-stationcast"
	"github.com/aouyang1/go-stationcast/cmd/stationcast/config"
	"github.com/aouyang1/go-stationcast/cmd/stationcast/loader"
	"github.com/aouyang1/go-stationcast/cmd/stationcast/logger"
	"github.com/aouyang1/go-stationcast/metrics"
	"github.com/aouyang1/go-stationcast/registry"
	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	os.Exit(realMain(config.ParseFlags(), os.Stdout, os.Stderr))
}

// realMain returns the exit code so deferred profiling and signal cleanup run before exiting.
func realMain(cfg *config.Config, stdout, stderr io.Writer) int {
	logger := logger.NewWithWriter(cfg, stderr)
	slog.SetDefault(logger)

	switch cfg.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, logger, stdout); err != nil {
		logger.Error("run failed", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	frame, err := loader.LoadFrame(cfg.Data)
	if err != nil {
		return err
	}
	idx := frame.Index()
	logger.Info("loaded occupancy",
		"stations", len(frame.Stations()),
		"hours", frame.Len(),
		"start", idx.StartTime(),
		"end", idx.EndTime(),
	)

	rep := newReport(frame)
	if cfg.Stations != "" {
		stations, err := loader.LoadStations(cfg.Stations)
		if err != nil {
			return err
		}
		rep.setStations(frame, stations, logger)
	}

	cache, closeCache, err := predictionCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	trainSize := cfg.TrainSize
	if trainSize <= 0 {
		trainSize = registry.WholeFrame
	}
	promReg := prometheus.NewRegistry()
	f, err := forecaster.New(&forecaster.Options{
		Models:          cfg.Models,
		ModelDir:        cfg.ModelDir,
		Workers:         cfg.Workers,
		Horizon:         cfg.Horizon,
		TrainSize:       trainSize,
		Country:         cfg.Country,
		Cache:           cache,
		Instrumentation: registry.NewInstrumentation(promReg),
		Logger:          logger,
	})
	if err != nil {
		return err
	}
	if err := f.TrainAll(ctx, frame); err != nil {
		return err
	}

	start, hours, err := evaluationWindow(frame, cfg.TrainSize)
	if err != nil {
		return err
	}
	records, err := f.EvaluateRecords(ctx, start, hours, metrics.Kinds())
	if err != nil {
		return err
	}
	rep.setEvaluation(start, hours, records)
	for _, s := range rep.Evaluation.Summaries {
		logger.Info("score", "model", s.Model, "metric", s.Metric, "value", s.Value, "stations", s.Stations)
	}

	if cfg.DatabaseURL != "" {
		runID, err := recordEvaluation(ctx, cfg.DatabaseURL, records)
		if err != nil {
			return err
		}
		rep.Evaluation.RunID = runID
		logger.Info("recorded evaluation", "run_id", runID, "records", len(records))
	}

	if cfg.Forecast > 0 {
		if err := rep.addForecasts(ctx, f, frame, cfg.Forecast, logger); err != nil {
			return err
		}
	}

	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, promReg); err != nil {
			return fmt.Errorf("unable to write metrics file, %w", err)
		}
	}
	return rep.write(cfg.Output, stdout)
}

// predictionCache builds the cache selected by the configuration and a function releasing it.
func predictionCache(ctx context.Context, cfg *config.Config) (registry.PredictionCache, func(), error) {
	switch {
	case cfg.RedisURL != "":
		client, err := registry.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				slog.Warn("unable to close redis client", "error", err)
			}
		}
		return registry.NewRedisCache(client, cfg.CacheKey, cfg.CacheTTL), closeFn, nil
	case cfg.CacheFile != "":
		return registry.NewFileCache(cfg.CacheFile), func() {}, nil
	default:
		return registry.NopCache{}, func() {}, nil
	}
}

// evaluationWindow returns the held out hours, or the whole frame when nothing is held out.
func evaluationWindow(frame *timedataset.Frame, trainSize float64) (time.Time, int, error) {
	if trainSize <= 0 {
		return frame.Index().StartTime(), frame.Len(), nil
	}
	split, err := frame.Split(trainSize)
	if err != nil {
		return time.Time{}, 0, err
	}
	return split.Test.Index().StartTime(), split.Test.Len(), nil
}

func recordEvaluation(ctx context.Context, databaseURL string, records []metrics.Record) (string, error) {
	if len(records) == 0 {
		return "", errors.New("no evaluation records to store")
	}
	recorder, err := metrics.NewPostgresRecorder(ctx, databaseURL)
	if err != nil {
		return "", err
	}
	defer recorder.Close()

	runID, err := recorder.Record(ctx, records)
	if err != nil {
		return "", err
	}
	return runID.String(), nil
}
