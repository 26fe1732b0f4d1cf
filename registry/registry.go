// Package registry trains a set of named forecasting strategies on a city frame and serves full
// length rolling predictions of every station, memoised in memory and persisted through a
// PredictionCache so evaluation windows do not recompute them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/aouyang1/go-stationcast/models"
	"github.com/aouyang1/go-stationcast/timedataset"
)

var (
	ErrDuplicateModel = errors.New("model already registered")
	ErrUnknownModel   = models.ErrUnknownModel
	ErrNotInitialized = errors.New("registry has not been initialized")
	ErrStaleCache     = errors.New("prediction cache was computed on other data")
	ErrInvalidHorizon = models.ErrInvalidHorizon
)

const (
	// DefaultHorizon is the length in hours of each rolling forecast window.
	DefaultHorizon = 24

	// DefaultTrainSize is the fraction of the frame, taken from its start, used for training.
	DefaultTrainSize = 0.7

	// WholeFrame trains on every hour of the frame, leaving nothing held out.
	WholeFrame = -1.0
)

// Options configures the registry.
type Options struct {
	// Horizon is the length of each rolling forecast window
	Horizon int

	// TrainSize restricts training to the chronological prefix floor(n * TrainSize) of the
	// frame so predictions over the suffix are out of sample. Zero uses DefaultTrainSize and a
	// negative value such as WholeFrame trains on the whole frame.
	TrainSize float64

	// Instrumentation receives training and prediction measurements, unregistered by default
	Instrumentation *Instrumentation
}

func NewDefaultOptions() *Options {
	return &Options{
		Horizon:         DefaultHorizon,
		TrainSize:       DefaultTrainSize,
		Instrumentation: NewInstrumentation(nil),
	}
}

// Validate fills unset options with defaults.
func (o *Options) Validate() (*Options, error) {
	def := NewDefaultOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if res.Horizon < 0 {
		return nil, fmt.Errorf("horizon %d, %w", res.Horizon, ErrInvalidHorizon)
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
	if res.Instrumentation == nil {
		res.Instrumentation = def.Instrumentation
	}
	return &res, nil
}

// Registry owns the named strategies. Strategies are only trained by Initialize.
type Registry struct {
	opt    *Options
	cache  PredictionCache
	logger *slog.Logger

	mu     sync.RWMutex
	models map[string]models.Model
	frame  *timedataset.Frame

	// predMu guards table and serialises prediction computation
	predMu sync.Mutex
	table  *Table
	dirty  bool
}

// New creates an empty registry. A nil cache disables persistence of predictions and a nil
// logger uses slog.Default.
func New(opt *Options, cache PredictionCache, logger *slog.Logger) (*Registry, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		opt:    opt,
		cache:  cache,
		logger: logger,
		models: make(map[string]models.Model),
	}, nil
}

// Register adds a strategy under its name.
func (r *Registry) Register(m models.Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := m.Name()
	if _, exists := r.models[name]; exists {
		return fmt.Errorf("%s, %w", name, ErrDuplicateModel)
	}
	r.models[name] = m
	return nil
}

// Get returns a registered strategy.
func (r *Registry) Get(name string) (models.Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, exists := r.models[name]
	if !exists {
		return nil, fmt.Errorf("%s, %w", name, ErrUnknownModel)
	}
	return m, nil
}

// List returns the sorted names of the registered strategies.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Frame returns the frame passed to Initialize.
func (r *Registry) Frame() (*timedataset.Frame, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.frame == nil {
		return nil, ErrNotInitialized
	}
	return r.frame, nil
}

// Initialize trains every registered strategy on the training prefix of frame, or on the whole
// frame when TrainSize is negative, then restores the prediction cache.
// Cache problems are logged and never fail initialization. A cache computed on another frame
// is still used since invalidating it is left to the operator.
func (r *Registry) Initialize(ctx context.Context, frame *timedataset.Frame) error {
	if frame == nil {
		return timedataset.ErrNoTrainingData
	}
	train := frame
	fingerprint := frame.FrameFingerprint()
	if r.opt.TrainSize > 0 {
		split, err := frame.Split(r.opt.TrainSize)
		if err != nil {
			return fmt.Errorf("unable to split frame, %w", err)
		}
		train = split.Train
		fingerprint = fmt.Sprintf("%s-%d", fingerprint, split.Point)
	}
	for _, name := range r.List() {
		m, err := r.Get(name)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := m.Train(ctx, train); err != nil {
			return fmt.Errorf("unable to train %s, %w", name, err)
		}
		var report models.TrainReport
		if reporter, ok := m.(models.Reporter); ok {
			report = reporter.Report()
		}
		r.opt.Instrumentation.ObserveTraining(name, time.Since(start), report)
	}

	r.mu.Lock()
	r.frame = frame
	r.mu.Unlock()

	r.predMu.Lock()
	defer r.predMu.Unlock()
	r.table = r.loadCache(ctx, fingerprint)
	r.dirty = false
	return nil
}

func (r *Registry) loadCache(ctx context.Context, fingerprint string) *Table {
	empty := NewTable(fingerprint, r.opt.Horizon)

	table, err := r.cache.Load(ctx)
	switch {
	case errors.Is(err, ErrCacheNotFound):
		r.logger.Debug("no prediction cache", "error", err.Error())
		return empty
	case err != nil:
		r.logger.Warn("ignoring unreadable prediction cache", "error", err.Error())
		return empty
	case table.Horizon != r.opt.Horizon:
		r.logger.Warn("ignoring prediction cache computed with another horizon",
			"cache_horizon", table.Horizon,
			"horizon", r.opt.Horizon,
		)
		return empty
	}
	if table.Fingerprint != fingerprint {
		r.logger.Warn("using prediction cache computed on other data, clear it to recompute",
			"error", fmt.Errorf("cache %s, frame %s, %w", table.Fingerprint, fingerprint, ErrStaleCache).Error(),
		)
	}
	r.logger.Info("loaded prediction cache", "models", len(table.Predictions))
	return table
}

// PredictionsFor returns the prediction of a station over the whole frame. The frame is cut into
// consecutive windows of the configured horizon and each window is forecast from every hour
// preceding it. The first MinHistory hours cannot be anchored and are NaN. New predictions are
// kept in memory until Flush.
func (r *Registry) PredictionsFor(ctx context.Context, name, station string) (*timedataset.TimeDataset, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	frame, err := r.Frame()
	if err != nil {
		return nil, err
	}
	col, err := frame.Column(station)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrModelNotTrained, err)
	}

	r.predMu.Lock()
	defer r.predMu.Unlock()
	if r.table == nil {
		r.table = NewTable(frame.FrameFingerprint(), r.opt.Horizon)
	}
	if td, exists := r.table.Get(name, station); exists && td.Len() == col.Len() {
		r.opt.Instrumentation.RecordCacheHit()
		r.opt.Instrumentation.RecordPrediction(name)
		return td, nil
	}
	r.opt.Instrumentation.RecordCacheMiss()

	td, err := rolling(ctx, m, station, col, r.opt.Horizon)
	if err != nil {
		r.opt.Instrumentation.RecordPredictionError(name)
		return nil, fmt.Errorf("unable to predict station %s with %s, %w", station, name, err)
	}
	r.table.Put(name, station, td)
	r.dirty = true
	r.opt.Instrumentation.RecordPrediction(name)
	return td, nil
}

// Flush saves the prediction table to the cache when predictions were added since the last
// save.
func (r *Registry) Flush(ctx context.Context) error {
	r.predMu.Lock()
	defer r.predMu.Unlock()
	if !r.dirty || r.table == nil {
		return nil
	}
	if err := r.cache.Save(ctx, r.table); err != nil {
		return fmt.Errorf("unable to save prediction cache, %w", err)
	}
	r.dirty = false
	return nil
}

func rolling(ctx context.Context, m models.Model, station string, col *timedataset.TimeDataset, horizon int) (*timedataset.TimeDataset, error) {
	n := col.Len()
	y := make([]float64, n)
	for i := range y {
		y[i] = math.NaN()
	}
	for start := max(m.MinHistory(), 1); start < n; start += horizon {
		h := min(horizon, n-start)
		history := &timedataset.TimeDataset{T: col.T[:start], Y: col.Y[:start]}
		fc, err := m.Predict(ctx, station, history, h)
		if err != nil {
			return nil, fmt.Errorf("window at %s, %w", col.T[start], err)
		}
		copy(y[start:start+h], fc.Y)
	}
	res := &timedataset.TimeDataset{
		T: make([]time.Time, n),
		Y: y,
	}
	copy(res.T, col.T)
	return res, nil
}
