package models

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var errPCAFailed = errors.New("principal components analysis did not converge")

// basis is a truncated principal component basis. Vectors holds one component per row.
type basis struct {
	Mean    []float64   `json:"mean"`
	Vectors [][]float64 `json:"vectors"`
}

// fitBasis runs PCA over the rows of x and keeps the top k components, fewer if x has less
// rows or columns.
func fitBasis(x mat.Matrix, k int) (*basis, error) {
	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errPCAFailed
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	n, d := x.Dims()
	k = min(k, n, d)
	b := &basis{
		Mean:    make([]float64, d),
		Vectors: make([][]float64, k),
	}
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		b.Mean[j] = stat.Mean(col, nil)
	}
	for c := 0; c < k; c++ {
		b.Vectors[c] = mat.Col(nil, c, &vecs)
	}
	return b, nil
}

// project returns the component scores of one observation.
func (b *basis) project(row []float64) []float64 {
	centered := make([]float64, len(row))
	floats.SubTo(centered, row, b.Mean)
	scores := make([]float64, len(b.Vectors))
	for c, v := range b.Vectors {
		scores[c] = floats.Dot(centered, v)
	}
	return scores
}

// reconstruct maps an observation back from its component scores.
func (b *basis) reconstruct(row []float64) []float64 {
	res := slices.Clone(b.Mean)
	for c, score := range b.project(row) {
		floats.AddScaled(res, score, b.Vectors[c])
	}
	return res
}

func (b *basis) valid(d int) bool {
	if b == nil || len(b.Mean) != d {
		return false
	}
	for _, v := range b.Vectors {
		if len(v) != d {
			return false
		}
	}
	return true
}

// PCAOptions configures the profile smoothing.
type PCAOptions struct {
	Components int `json:"components"`
}

func NewDefaultPCAOptions() *PCAOptions {
	return &PCAOptions{Components: 4}
}

// Validate fills unset options with defaults.
func (o *PCAOptions) Validate() *PCAOptions {
	def := NewDefaultPCAOptions()
	if o == nil {
		return def
	}
	res := *o
	if res.Components <= 0 {
		res.Components = def.Components
	}
	return &res
}

// PCAReconstruction smooths each station weekly profile by projecting it onto the main
// components shared by every station of the city and forecasts by table lookup. Stations are
// the observations of the analysis and the 168 hours of the week its variables.
type PCAReconstruction struct {
	opt    *Options
	pcaOpt *PCAOptions
	models stationModels[*profileArtifact]
}

func NewPCAReconstruction(opt *Options, pcaOpt *PCAOptions) *PCAReconstruction {
	return &PCAReconstruction{
		opt:    opt.Validate(),
		pcaOpt: pcaOpt.Validate(),
	}
}

func (p *PCAReconstruction) Name() string {
	return PCAName
}

func (p *PCAReconstruction) MinHistory() int {
	return 1
}

// smoothProfiles computes the raw profile of every station and the reconstruction of each from
// the top components. A single usable station has nothing to share and keeps its raw profile.
func (p *PCAReconstruction) smoothProfiles(frame *timedataset.Frame) (map[string]*profileArtifact, error) {
	raw := make(map[string]*profileArtifact)
	var names []string
	for _, station := range frame.Stations() {
		col, err := frame.Column(station)
		if err != nil {
			return nil, err
		}
		profile, err := weeklyProfile(col.T, col.Y)
		if err != nil {
			p.opt.Logger.Warn("station has no profile", "model", p.Name(), "station", station, "error", err.Error())
			continue
		}
		raw[station] = profile
		names = append(names, station)
	}
	if len(names) < 2 {
		return raw, nil
	}

	x := mat.NewDense(len(names), feature.HoursInWeek, nil)
	for i, station := range names {
		x.SetRow(i, raw[station].Profile)
	}
	b, err := fitBasis(x, p.pcaOpt.Components)
	if err != nil {
		return nil, fmt.Errorf("unable to fit station profile components, %w", err)
	}

	res := make(map[string]*profileArtifact, len(names))
	for i, station := range names {
		profile := b.reconstruct(x.RawRowView(i))
		for wh, v := range profile {
			profile[wh] = clip(v)
		}
		res[station] = &profileArtifact{Profile: profile, Mean: raw[station].Mean}
	}
	return res, nil
}

// Train smooths every station profile. The components depend on the whole city so persisted
// artifacts are keyed on the fingerprint of the full frame.
func (p *PCAReconstruction) Train(ctx context.Context, frame *timedataset.Frame) error {
	if frame == nil {
		return timedataset.ErrNoTrainingData
	}
	profiles, err := p.smoothProfiles(frame)
	if err != nil {
		return err
	}
	tr := &trainer[*profileArtifact]{
		strategy: p.Name(),
		opt:      p.opt,
		fit: func(_ context.Context, station string, _ *timedataset.TimeDataset) (*profileArtifact, error) {
			a, exists := profiles[station]
			if !exists {
				return nil, fmt.Errorf("station %s has no observed values, %w", station, ErrInsufficientHistory)
			}
			return a, nil
		},
		check: (*profileArtifact).check,
		fingerprint: func(f *timedataset.Frame, _ string) (string, error) {
			return f.FrameFingerprint(), nil
		},
	}

	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	p.models.set(res, report)
	return nil
}

func (p *PCAReconstruction) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := p.models.get(station)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, history, horizon, p.MinHistory()); err != nil {
		return nil, err
	}
	vals, err := a.predict(history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(p.Name(), station, history, vals), nil
}

func (p *PCAReconstruction) Stations() []string {
	return p.models.stations()
}

func (p *PCAReconstruction) Report() TrainReport {
	return p.models.lastReport()
}
