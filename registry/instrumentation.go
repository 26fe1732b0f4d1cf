package registry

import (
	"time"

	"github.com/aouyang1/go-stationcast/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instrumentation holds the registry Prometheus collectors.
type Instrumentation struct {
	TrainDuration     *prometheus.HistogramVec
	StationsTrained   *prometheus.CounterVec
	CacheRequests     *prometheus.CounterVec
	PredictionsServed *prometheus.CounterVec
	PredictionErrors  *prometheus.CounterVec
}

// NewInstrumentation registers the collectors with reg. A nil reg leaves them unregistered.
func NewInstrumentation(reg prometheus.Registerer) *Instrumentation {
	f := promauto.With(reg)
	return &Instrumentation{
		TrainDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stationcast_training_duration_seconds",
			Help:    "Duration of training every station of a model",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"model"}),

		StationsTrained: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_stations_trained_total",
			Help: "Stations handled by training, by model and outcome (fitted, loaded or failed)",
		}, []string{"model", "outcome"}),

		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_prediction_cache_requests_total",
			Help: "Prediction lookups by result (hit or miss)",
		}, []string{"result"}),

		PredictionsServed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_predictions_served_total",
			Help: "Full length station predictions returned, by model",
		}, []string{"model"}),

		PredictionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stationcast_prediction_errors_total",
			Help: "Failed station predictions, by model",
		}, []string{"model"}),
	}
}

func (i *Instrumentation) ObserveTraining(model string, d time.Duration, report models.TrainReport) {
	i.TrainDuration.WithLabelValues(model).Observe(d.Seconds())
	i.StationsTrained.WithLabelValues(model, "fitted").Add(float64(report.Fitted))
	i.StationsTrained.WithLabelValues(model, "loaded").Add(float64(report.Loaded))
	i.StationsTrained.WithLabelValues(model, "failed").Add(float64(report.Failed))
}

func (i *Instrumentation) RecordCacheHit() {
	i.CacheRequests.WithLabelValues("hit").Inc()
}

func (i *Instrumentation) RecordCacheMiss() {
	i.CacheRequests.WithLabelValues("miss").Inc()
}

func (i *Instrumentation) RecordPrediction(model string) {
	i.PredictionsServed.WithLabelValues(model).Inc()
}

func (i *Instrumentation) RecordPredictionError(model string) {
	i.PredictionErrors.WithLabelValues(model).Inc()
}
