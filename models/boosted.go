package models

import (
	"context"
	"fmt"
	"slices"

	"github.com/aouyang1/go-stationcast/cluster"
	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
	"github.com/aouyang1/go-stationcast/tree"
	"gonum.org/v1/gonum/mat"
)

// GradientBoostedOptions configures the per station boosted trees. With PCAComponents set the
// calendar columns are replaced by their top principal components, otherwise the station
// cluster id is added as a feature.
type GradientBoostedOptions struct {
	Lag           int                `json:"lag"`
	Clusters      *cluster.Options   `json:"clusters,omitempty"`
	PCAComponents int                `json:"pca_components"`
	Boost         *tree.BoostOptions `json:"boost"`
}

func NewDefaultGradientBoostedOptions() *GradientBoostedOptions {
	return &GradientBoostedOptions{
		Lag:      DefaultLag,
		Clusters: cluster.NewDefaultOptions(),
		Boost:    tree.NewDefaultBoostOptions(),
	}
}

func NewDefaultGradientBoostedPCAOptions() *GradientBoostedOptions {
	return &GradientBoostedOptions{
		Lag:           DefaultLag,
		PCAComponents: 5,
		Boost: &tree.BoostOptions{
			NumRounds:    100,
			LearningRate: 0.1,
			Tree: &tree.Options{
				MaxDepth:       5,
				MinSamplesLeaf: 1,
			},
			Subsample: 1.0,
			Seed:      42,
		},
	}
}

// Validate fills unset options with defaults.
func (o *GradientBoostedOptions) Validate() (*GradientBoostedOptions, error) {
	def := NewDefaultGradientBoostedOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if res.Lag < 0 || res.PCAComponents < 0 {
		return nil, fmt.Errorf("lag %d, components %d, %w", res.Lag, res.PCAComponents, ErrInvalidOptions)
	}
	if res.Lag == 0 {
		res.Lag = def.Lag
	}
	if res.PCAComponents == 0 {
		clusters, err := res.Clusters.Validate()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
		res.Clusters = clusters
	}
	res.Boost = res.Boost.Validate()
	return &res, nil
}

const noCluster = -1

type boostArtifact struct {
	Lag     int     `json:"lag"`
	Mean    float64 `json:"mean"`
	Cluster int     `json:"cluster"`

	// Columns are the feature columns read from the feature set, before any projection
	Columns []string                `json:"columns"`
	Scaler  *feature.StandardScaler `json:"scaler,omitempty"`
	Basis   *basis                  `json:"basis,omitempty"`
	Booster *tree.Booster           `json:"booster"`
}

// design turns a calendar and lag feature set into the estimator input.
func (a *boostArtifact) design(set *feature.Set) (*mat.Dense, error) {
	if a.Basis == nil {
		if a.Cluster != noCluster {
			ids := make([]float64, set.Len())
			for i := range ids {
				ids[i] = float64(a.Cluster)
			}
			set.Set(feature.NewCluster(), ids)
		}
		return set.AlignedMatrix(a.Columns, false), nil
	}

	if a.Scaler == nil || !a.Basis.valid(len(a.Columns)) {
		return nil, ErrCorruptArtifact
	}
	scaled, err := a.Scaler.Transform(set)
	if err != nil {
		return nil, err
	}
	cal := scaled.AlignedMatrix(a.Columns, false)
	lag, exists := set.GetName(feature.NewLag(a.Lag).String())
	if !exists {
		return nil, fmt.Errorf("%s, %w", feature.NewLag(a.Lag), feature.ErrMissingColumn)
	}

	k := len(a.Basis.Vectors)
	x := mat.NewDense(set.Len(), k+1, nil)
	for i := 0; i < set.Len(); i++ {
		row := x.RawRowView(i)
		copy(row, a.Basis.project(cal.RawRowView(i)))
		row[k] = lag[i]
	}
	return x, nil
}

// GradientBoosted fits boosted regression trees per station on calendar features and the
// occupancy one lag earlier.
type GradientBoosted struct {
	opt      *Options
	boostOpt *GradientBoostedOptions
	models   stationModels[*boostArtifact]
}

func NewGradientBoosted(opt *Options, boostOpt *GradientBoostedOptions) (*GradientBoosted, error) {
	boostOpt, err := boostOpt.Validate()
	if err != nil {
		return nil, err
	}
	return &GradientBoosted{
		opt:      opt.Validate(),
		boostOpt: boostOpt,
	}, nil
}

func (g *GradientBoosted) Name() string {
	if g.boostOpt.PCAComponents > 0 {
		return GradientBoostedPCAName
	}
	return GradientBoostedName
}

func (g *GradientBoosted) MinHistory() int {
	return g.boostOpt.Lag
}

func (g *GradientBoosted) fit(clusters map[string]int) func(context.Context, string, *timedataset.TimeDataset) (*boostArtifact, error) {
	return func(_ context.Context, station string, train *timedataset.TimeDataset) (*boostArtifact, error) {
		mean, err := finiteMean(train.Y)
		if err != nil {
			return nil, err
		}
		set, y, err := trainingSet(train, g.boostOpt.Lag, g.opt.Calendar, g.opt.Interpolation)
		if err != nil {
			return nil, err
		}

		a := &boostArtifact{
			Lag:     g.boostOpt.Lag,
			Mean:    mean,
			Cluster: noCluster,
		}
		if g.boostOpt.PCAComponents > 0 {
			lagName := feature.NewLag(a.Lag).String()
			a.Columns = slices.DeleteFunc(set.Labels().Names(), func(name string) bool {
				return name == lagName
			})
			a.Scaler = feature.NewStandardScaler(a.Columns)
			if err := a.Scaler.Fit(set); err != nil {
				return nil, fmt.Errorf("unable to fit scaler, %w", err)
			}
			scaled, err := a.Scaler.Transform(set)
			if err != nil {
				return nil, err
			}
			a.Basis, err = fitBasis(scaled.AlignedMatrix(a.Columns, false), g.boostOpt.PCAComponents)
			if err != nil {
				return nil, fmt.Errorf("unable to fit calendar components, %w", err)
			}
		} else {
			a.Cluster = clusters[station]
			a.Columns = append(set.Labels().Names(), feature.NewCluster().String())
		}

		x, err := a.design(set)
		if err != nil {
			return nil, err
		}
		a.Booster, err = tree.FitBooster(x, y, g.boostOpt.Boost)
		if err != nil {
			return nil, fmt.Errorf("unable to fit boosted trees, %w", err)
		}
		return a, nil
	}
}

func (g *GradientBoosted) predict(a *boostArtifact, history *timedataset.TimeDataset, horizon int) ([]float64, error) {
	if a == nil || a.Booster == nil {
		return nil, ErrCorruptArtifact
	}
	set, err := forecastSet(history, horizon, a.Lag, g.opt.Calendar, a.Mean)
	if err != nil {
		return nil, err
	}
	x, err := a.design(set)
	if err != nil {
		return nil, err
	}
	res := make([]float64, horizon)
	for i := range res {
		res[i], err = a.Booster.Predict(x.RawRowView(i))
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (g *GradientBoosted) check(a *boostArtifact) error {
	if a == nil || a.Lag != g.boostOpt.Lag || (a.Basis != nil) != (g.boostOpt.PCAComponents > 0) {
		return fmt.Errorf("artifact does not match options, %w", ErrCorruptArtifact)
	}
	return checkForecast(func(history *timedataset.TimeDataset, horizon int) ([]float64, error) {
		return g.predict(a, history, horizon)
	}, a.Lag, a.Mean)
}

// stationClusters groups the stations of the training frame. A frame that cannot be clustered,
// such as a single station, puts every station in cluster 0.
func (g *GradientBoosted) stationClusters(frame *timedataset.Frame) map[string]int {
	clusters, err := cluster.StationClusters(frame, g.boostOpt.Clusters)
	if err != nil {
		g.opt.Logger.Warn("unable to cluster stations, using a single cluster", "model", g.Name(), "error", err.Error())
		clusters = make(map[string]int)
		for _, station := range frame.Stations() {
			clusters[station] = 0
		}
	}
	g.opt.Logger.Debug("station clusters", "model", g.Name(), "sizes", cluster.Sizes(clusters))
	return clusters
}

func (g *GradientBoosted) Train(ctx context.Context, frame *timedataset.Frame) error {
	if frame == nil {
		return timedataset.ErrNoTrainingData
	}
	tr := &trainer[*boostArtifact]{
		strategy: g.Name(),
		opt:      g.opt,
		check:    g.check,
	}
	if g.boostOpt.PCAComponents > 0 {
		tr.fit = g.fit(nil)
	} else {
		// cluster ids depend on every station so artifacts are keyed on the whole frame
		tr.fit = g.fit(g.stationClusters(frame))
		tr.fingerprint = func(f *timedataset.Frame, _ string) (string, error) {
			return f.FrameFingerprint(), nil
		}
	}
	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	g.models.set(res, report)
	return nil
}

func (g *GradientBoosted) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := g.models.get(station)
	if err != nil {
		return nil, err
	}
	if horizon > a.Lag {
		return nil, fmt.Errorf("horizon %d with lag %d, %w", horizon, a.Lag, ErrLagTooSmall)
	}
	if err := validateRequest(ctx, history, horizon, a.Lag); err != nil {
		return nil, err
	}
	vals, err := g.predict(a, history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(g.Name(), station, history, vals), nil
}

func (g *GradientBoosted) Stations() []string {
	return g.models.stations()
}

func (g *GradientBoosted) Report() TrainReport {
	return g.models.lastReport()
}
