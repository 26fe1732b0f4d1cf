package forecaster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aouyang1/go-stationcast/metrics"
	"github.com/aouyang1/go-stationcast/models"
)

func ExampleForecaster_Predict() {
	ctx := context.Background()
	frame, err := cityFrame(3, 0.02)
	if err != nil {
		panic(err)
	}

	f, err := New(&Options{
		Models: []string{models.MeanName, models.LinearRegressionName},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		panic(err)
	}
	if err := f.TrainAll(ctx, frame); err != nil {
		panic(err)
	}
	fmt.Println(f.ListModels())

	history, err := frame.Column("s0")
	if err != nil {
		panic(err)
	}
	fc, err := f.Predict(ctx, models.LinearRegressionName, "s0", history, 12)
	if err != nil {
		panic(err)
	}
	fmt.Println(len(fc.Y), fc.T[0].Format(time.RFC3339))
	// Output:
	// [linear_regression mean]
	// 12 2023-03-27T00:00:00Z
}

func ExampleForecaster_Evaluate() {
	ctx := context.Background()
	frame, err := cityFrame(3, 0)
	if err != nil {
		panic(err)
	}

	f, err := New(&Options{
		Models: []string{models.MeanName},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		panic(err)
	}
	if err := f.TrainAll(ctx, frame); err != nil {
		panic(err)
	}

	start := cityStart.Add(14 * 24 * time.Hour)
	scores, err := f.Evaluate(ctx, models.MeanName, "s1", start, 24, []metrics.Kind{metrics.MAE})
	if err != nil {
		panic(err)
	}
	fmt.Printf("mae: %.3f\n", scores["s1"][metrics.MAE])
	// Output:
	// mae: 0.000
}
