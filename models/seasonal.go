package models

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/aouyang1/go-stationcast/feature"
	"github.com/aouyang1/go-stationcast/linearmodel"
	"github.com/aouyang1/go-stationcast/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultDailyOrders      = 12
	DefaultWeeklyOrders     = 6
	DefaultOffDayOrders     = 4
	DefaultChangepoints     = 5
	DefaultChangepointRange = 0.8

	offDaySeasonality = "off_day"
)

// SeasonalOptions configures the decomposition of a station into a piecewise linear trend and
// daily and weekly Fourier seasonalities.
type SeasonalOptions struct {
	DailyOrders  int `json:"daily_orders"`
	WeeklyOrders int `json:"weekly_orders"`

	// OffDayOrders fits a second daily seasonality on weekends and holidays only, when commuting
	// peaks disappear
	OffDayOrders int `json:"off_day_orders"`

	// Changepoints are spread evenly over the first ChangepointRange of the training window
	Changepoints     int     `json:"changepoints"`
	ChangepointRange float64 `json:"changepoint_range"`

	// DisableGrowth keeps only the level shift at each changepoint
	DisableGrowth bool `json:"disable_growth"`

	Estimator string                    `json:"estimator"`
	OLS       *linearmodel.OLSOptions   `json:"ols,omitempty"`
	Lasso     *linearmodel.LassoOptions `json:"lasso,omitempty"`
}

func NewDefaultSeasonalOptions() *SeasonalOptions {
	return &SeasonalOptions{
		DailyOrders:      DefaultDailyOrders,
		WeeklyOrders:     DefaultWeeklyOrders,
		OffDayOrders:     DefaultOffDayOrders,
		Changepoints:     DefaultChangepoints,
		ChangepointRange: DefaultChangepointRange,
		Estimator:        EstimatorOLS,
		OLS:              linearmodel.NewDefaultOLSOptions(),
		Lasso:            linearmodel.NewDefaultLassoOptions(),
	}
}

// Validate fills unset options with defaults.
func (o *SeasonalOptions) Validate() (*SeasonalOptions, error) {
	def := NewDefaultSeasonalOptions()
	if o == nil {
		return def, nil
	}
	res := *o
	if res.DailyOrders < 0 || res.WeeklyOrders < 0 || res.OffDayOrders < 0 || res.Changepoints < 0 {
		return nil, fmt.Errorf(
			"orders %d/%d/%d changepoints %d, %w",
			res.DailyOrders, res.WeeklyOrders, res.OffDayOrders, res.Changepoints, ErrInvalidOptions,
		)
	}
	if res.DailyOrders == 0 {
		res.DailyOrders = def.DailyOrders
	}
	if res.WeeklyOrders == 0 {
		res.WeeklyOrders = def.WeeklyOrders
	}
	if res.OffDayOrders == 0 {
		res.OffDayOrders = def.OffDayOrders
	}
	if res.Changepoints == 0 {
		res.Changepoints = def.Changepoints
	}
	if math.IsNaN(res.ChangepointRange) || res.ChangepointRange < 0 || res.ChangepointRange > 1 {
		return nil, fmt.Errorf("changepoint range %v, %w", res.ChangepointRange, ErrInvalidOptions)
	}
	if res.ChangepointRange == 0 {
		res.ChangepointRange = def.ChangepointRange
	}
	switch res.Estimator {
	case "":
		res.Estimator = def.Estimator
	case EstimatorOLS, EstimatorLasso:
	default:
		return nil, fmt.Errorf("estimator %q, %w", res.Estimator, ErrInvalidOptions)
	}
	if res.OLS == nil {
		res.OLS = def.OLS
	}
	if res.Lasso == nil {
		res.Lasso = def.Lasso
	}
	return &res, nil
}

func (o *SeasonalOptions) seasonalities() []feature.Seasonality {
	return []feature.Seasonality{
		feature.NewDailySeasonality(o.DailyOrders),
		feature.NewWeeklySeasonality(o.WeeklyOrders),
	}
}

func (o *SeasonalOptions) offDay() feature.Seasonality {
	return feature.Seasonality{Name: offDaySeasonality, Period: 24 * time.Hour, Orders: o.OffDayOrders}
}

// seasonalArtifact holds the training window the trend is scaled on, the changepoints and the
// regression over the recorded columns.
type seasonalArtifact struct {
	TrainStart    time.Time             `json:"train_start"`
	TrainEnd      time.Time             `json:"train_end"`
	Requested     int                   `json:"requested_changepoints"`
	Changepoints  []time.Time           `json:"changepoints"`
	Growth        bool                  `json:"growth"`
	Seasonalities []feature.Seasonality `json:"seasonalities"`
	OffDay        feature.Seasonality   `json:"off_day"`
	Holidays      string                `json:"holidays,omitempty"`
	Mean          float64               `json:"mean"`
	Columns       []string              `json:"columns"`
	Estimator     string                `json:"estimator"`
	Intercept     float64               `json:"intercept"`
	Coef          []float64             `json:"coef"`
}

// Seasonal models each station as a trend with changepoints plus daily and weekly seasonality,
// with a separate daily cycle on weekends and holidays. Forecasts only depend on the forecast
// hours, not on the recent occupancy.
type Seasonal struct {
	opt         *Options
	seasonalOpt *SeasonalOptions
	models      stationModels[*seasonalArtifact]
}

func NewSeasonal(opt *Options, seasonalOpt *SeasonalOptions) (*Seasonal, error) {
	seasonalOpt, err := seasonalOpt.Validate()
	if err != nil {
		return nil, err
	}
	return &Seasonal{
		opt:         opt.Validate(),
		seasonalOpt: seasonalOpt,
	}, nil
}

func (s *Seasonal) Name() string {
	return SeasonalName
}

func (s *Seasonal) MinHistory() int {
	return 1
}

func (s *Seasonal) holidays() string {
	if s.opt.Calendar.Holidays == nil {
		return ""
	}
	return s.opt.Calendar.Holidays.Country
}

// design builds the trend, changepoint and seasonality columns of the time points.
func (s *Seasonal) design(a *seasonalArtifact, t []time.Time) (*feature.Set, error) {
	set := feature.NewSet().
		Set(feature.NewCalendar(feature.Trend), feature.TrendValues(t, a.TrainStart, a.TrainEnd)).
		Update(feature.ChangepointFeatures(t, a.Changepoints, a.TrainEnd, a.Growth))

	for _, seas := range a.Seasonalities {
		f, err := feature.FourierFeatures(t, seas, nil)
		if err != nil {
			return nil, err
		}
		set.Update(f)
	}
	offDay, err := feature.FourierFeatures(t, a.OffDay, feature.OffDayMask(t, s.opt.Calendar.Holidays))
	if err != nil {
		return nil, err
	}
	return set.Update(offDay), nil
}

func (s *Seasonal) estimator() (linearmodel.Model, error) {
	if s.seasonalOpt.Estimator == EstimatorLasso {
		return linearmodel.NewLassoRegression(s.seasonalOpt.Lasso)
	}
	return linearmodel.NewOLSRegression(s.seasonalOpt.OLS)
}

func (s *Seasonal) fit(_ context.Context, _ string, train *timedataset.TimeDataset) (*seasonalArtifact, error) {
	mean, err := finiteMean(train.Y)
	if err != nil {
		return nil, err
	}
	idx := timedataset.TimeSlice(train.T)
	start, end := idx.StartTime(), idx.EndTime()

	a := &seasonalArtifact{
		TrainStart:    start,
		TrainEnd:      end,
		Requested:     s.seasonalOpt.Changepoints,
		Growth:        !s.seasonalOpt.DisableGrowth,
		Seasonalities: s.seasonalOpt.seasonalities(),
		OffDay:        s.seasonalOpt.offDay(),
		Holidays:      s.holidays(),
		Mean:          mean,
		Estimator:     s.seasonalOpt.Estimator,
	}
	// the first changepoint sits on the training start and would duplicate the trend
	rangeEnd := start.Add(time.Duration(float64(end.Sub(start)) * s.seasonalOpt.ChangepointRange))
	if chpts := feature.EvenChangepoints(start, rangeEnd, a.Requested+1); len(chpts) > 1 {
		a.Changepoints = chpts[1:]
	}

	set, err := s.design(a, train.T)
	if err != nil {
		return nil, err
	}
	drop := make([]bool, len(train.Y))
	mask := feature.InterpolationMask(train.Y, s.opt.Interpolation)
	y := make([]float64, 0, len(train.Y))
	for i, v := range train.Y {
		drop[i] = math.IsNaN(v) || mask[i]
		if !drop[i] {
			y = append(y, v)
		}
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("no observed training rows, %w", ErrInsufficientHistory)
	}
	set = set.DropRows(drop)
	set.RemoveZeroOnlyFeatures()
	if set.NumFeatures() == 0 {
		return nil, fmt.Errorf("no informative columns, %w", ErrInsufficientHistory)
	}
	a.Columns = set.Labels().Names()

	model, err := s.estimator()
	if err != nil {
		return nil, err
	}
	if err := model.Fit(set.AlignedMatrix(a.Columns, false), mat.NewDense(len(y), 1, y)); err != nil {
		return nil, fmt.Errorf("unable to fit %s, %w", a.Estimator, err)
	}
	a.Intercept = model.Intercept()
	a.Coef = model.Coef()
	return a, nil
}

func (s *Seasonal) predict(a *seasonalArtifact, history *timedataset.TimeDataset, horizon int) ([]float64, error) {
	if a == nil || len(a.Columns) == 0 || len(a.Coef) != len(a.Columns) {
		return nil, ErrCorruptArtifact
	}
	future := timedataset.TimeSlice(history.T).NextHours(horizon)
	set, err := s.design(a, future)
	if err != nil {
		return nil, err
	}
	x := set.AlignedMatrix(a.Columns, false)
	res := make([]float64, horizon)
	for i := range res {
		res[i] = a.Intercept + floats.Dot(x.RawRowView(i), a.Coef)
	}
	return res, nil
}

func (s *Seasonal) check(a *seasonalArtifact) error {
	if a == nil ||
		a.Estimator != s.seasonalOpt.Estimator ||
		a.Growth == s.seasonalOpt.DisableGrowth ||
		a.Holidays != s.holidays() ||
		a.Requested != s.seasonalOpt.Changepoints ||
		a.OffDay != s.seasonalOpt.offDay() {
		return fmt.Errorf("artifact does not match options, %w", ErrCorruptArtifact)
	}
	want := s.seasonalOpt.seasonalities()
	if len(a.Seasonalities) != len(want) {
		return fmt.Errorf("artifact does not match options, %w", ErrCorruptArtifact)
	}
	for i := range want {
		if a.Seasonalities[i] != want[i] {
			return fmt.Errorf("artifact does not match options, %w", ErrCorruptArtifact)
		}
	}
	return checkForecast(func(history *timedataset.TimeDataset, horizon int) ([]float64, error) {
		return s.predict(a, history, horizon)
	}, s.MinHistory(), a.Mean)
}

func (s *Seasonal) Train(ctx context.Context, frame *timedataset.Frame) error {
	tr := &trainer[*seasonalArtifact]{
		strategy: s.Name(),
		opt:      s.opt,
		fit:      s.fit,
		check:    s.check,
	}
	res, report, err := tr.run(ctx, frame)
	if err != nil {
		return err
	}
	s.models.set(res, report)
	return nil
}

func (s *Seasonal) Predict(ctx context.Context, station string, history *timedataset.TimeDataset, horizon int) (*Forecast, error) {
	a, err := s.models.get(station)
	if err != nil {
		return nil, err
	}
	if err := validateRequest(ctx, history, horizon, s.MinHistory()); err != nil {
		return nil, err
	}
	vals, err := s.predict(a, history, horizon)
	if err != nil {
		return nil, fmt.Errorf("unable to forecast station %s, %w", station, err)
	}
	return newForecast(s.Name(), station, history, vals), nil
}

func (s *Seasonal) Stations() []string {
	return s.models.stations()
}

func (s *Seasonal) Report() TrainReport {
	return s.models.lastReport()
}
