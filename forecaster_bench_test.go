package forecaster

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/models"
	"github.com/pkg/profile"
)

var benchPredictRes *models.Forecast

func benchForecaster(b *testing.B, names ...string) *Forecaster {
	b.Helper()
	f, err := New(&Options{
		Models: names,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		b.Fatal(err)
	}
	return f
}

func BenchmarkTrainAll(b *testing.B) {
	frame, err := cityFrame(8, 0.02)
	if err != nil {
		b.Fatal(err)
	}
	f := benchForecaster(b, models.MeanName, models.LinearRegressionName, models.RandomForestName)

	b.ResetTimer()
	for b.Loop() {
		if err := f.TrainAll(context.Background(), frame); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPredictGradientBoosted(b *testing.B) {
	ctx := context.Background()
	frame, err := cityFrame(4, 0.02)
	if err != nil {
		b.Fatal(err)
	}
	f := benchForecaster(b, models.GradientBoostedName)
	if err := f.TrainAll(ctx, frame); err != nil {
		b.Fatal(err)
	}
	col, err := frame.Column("s0")
	if err != nil {
		b.Fatal(err)
	}
	history, err := col.Last(2 * feature.HoursInWeek)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	defer profile.Start(profile.CPUProfile, profile.ProfilePath(b.TempDir()), profile.Quiet).Stop()
	for b.Loop() {
		benchPredictRes, err = f.Predict(ctx, models.GradientBoostedName, "s0", history, 24)
		if err != nil {
			b.Fatal(err)
		}
	}
}
