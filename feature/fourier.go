package feature

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	Trend = "trend"

	FourierCompSin = "sin"
	FourierCompCos = "cos"

	ChangepointCompBias   = "bias"
	ChangepointCompGrowth = "growth"

	DailySeasonality  = "daily"
	WeeklySeasonality = "weekly"
)

var (
	ErrInvalidSeasonality = errors.New("seasonality needs a positive period and order")
	ErrMaskLenMismatch    = errors.New("mask length does not match the time points")
)

// Seasonality is a Fourier series of the given period, fitted with Orders sin/cos pairs.
type Seasonality struct {
	Name   string        `json:"name"`
	Period time.Duration `json:"period"`
	Orders int           `json:"orders"`
}

func NewDailySeasonality(orders int) Seasonality {
	return Seasonality{Name: DailySeasonality, Period: 24 * time.Hour, Orders: orders}
}

func NewWeeklySeasonality(orders int) Seasonality {
	return Seasonality{Name: WeeklySeasonality, Period: HoursInWeek * time.Hour, Orders: orders}
}

// Fourier is one component of a seasonality, e.g. the cosine of order 2 of the daily cycle.
type Fourier struct {
	Name      string `json:"name"`
	Component string `json:"component"`
	Order     int    `json:"order"`
}

func NewFourier(name, component string, order int) *Fourier {
	return &Fourier{Name: name, Component: component, Order: order}
}

func (f Fourier) String() string {
	return fmt.Sprintf("%s_%s_%d", f.Name, f.Component, f.Order)
}

func (f Fourier) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return f.Name, true
	case "component":
		return f.Component, true
	case "order":
		return strconv.Itoa(f.Order), true
	}
	return "", false
}

func (f Fourier) Type() FeatureType {
	return FeatureTypeFourier
}

func (f Fourier) Decode() map[string]string {
	return map[string]string{
		"name":      f.Name,
		"component": f.Component,
		"order":     strconv.Itoa(f.Order),
	}
}

// Changepoint is the level shift or the extra slope of the trend after a point in time.
type Changepoint struct {
	Index     int    `json:"index"`
	Component string `json:"component"`
}

func NewChangepoint(index int, component string) *Changepoint {
	return &Changepoint{Index: index, Component: component}
}

func (c Changepoint) String() string {
	return fmt.Sprintf("chpt_%d_%s", c.Index, c.Component)
}

func (c Changepoint) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "index":
		return strconv.Itoa(c.Index), true
	case "component":
		return c.Component, true
	}
	return "", false
}

func (c Changepoint) Type() FeatureType {
	return FeatureTypeChangepoint
}

func (c Changepoint) Decode() map[string]string {
	return map[string]string{
		"index":     strconv.Itoa(c.Index),
		"component": c.Component,
	}
}

// FourierFeatures generates the sin and cos columns of every order of the seasonality from
// the unix epoch of each time point. Rows where mask is false are zeroed so the seasonality
// only applies to the masked hours, a nil mask keeps every row.
func FourierFeatures(t []time.Time, s Seasonality, mask []bool) (*Set, error) {
	if s.Period <= 0 || s.Orders <= 0 {
		return nil, fmt.Errorf("%s period %s orders %d, %w", s.Name, s.Period, s.Orders, ErrInvalidSeasonality)
	}
	if mask != nil && len(mask) != len(t) {
		return nil, fmt.Errorf("%d mask values for %d time points, %w", len(mask), len(t), ErrMaskLenMismatch)
	}
	period := s.Period.Seconds()
	set := NewSet()
	for order := 1; order <= s.Orders; order++ {
		sinVals := make([]float64, len(t))
		cosVals := make([]float64, len(t))
		for i, tPnt := range t {
			if mask != nil && !mask[i] {
				continue
			}
			// seconds of the current period keep the phase precise for large epochs
			sec := math.Mod(float64(tPnt.Unix()), period)
			rad := 2.0 * math.Pi * float64(order) * sec / period
			sinVals[i] = math.Sin(rad)
			cosVals[i] = math.Cos(rad)
		}
		set.Set(NewFourier(s.Name, FourierCompSin, order), sinVals)
		set.Set(NewFourier(s.Name, FourierCompCos, order), cosVals)
	}
	return set, nil
}

// TrendValues scales the time points to the training window, 0 at start and 1 at end. Points
// after end keep growing linearly.
func TrendValues(t []time.Time, start, end time.Time) []float64 {
	res := make([]float64, len(t))
	window := end.Sub(start).Seconds()
	if window <= 0 {
		return res
	}
	for i, tPnt := range t {
		res[i] = tPnt.Sub(start).Seconds() / window
	}
	return res
}

// EvenChangepoints spreads n changepoints evenly over [start, end), the first one on start.
func EvenChangepoints(start, end time.Time, n int) []time.Time {
	if n <= 0 || !end.After(start) {
		return nil
	}
	step := end.Sub(start) / time.Duration(n)
	res := make([]time.Time, n)
	for i := range res {
		res[i] = start.Add(step * time.Duration(i))
	}
	return res
}

// ChangepointFeatures generates a bias column per changepoint, 1 from the changepoint on, and
// when growth is set a slope column rising from 0 on the changepoint to 1 on end.
func ChangepointFeatures(t []time.Time, chpts []time.Time, end time.Time, growth bool) *Set {
	set := NewSet()
	for c, chpt := range chpts {
		bias := make([]float64, len(t))
		var slope []float64
		if growth {
			slope = make([]float64, len(t))
		}
		window := end.Sub(chpt).Seconds()
		for i, tPnt := range t {
			if tPnt.Before(chpt) {
				continue
			}
			bias[i] = 1.0
			if growth && window > 0 {
				slope[i] = tPnt.Sub(chpt).Seconds() / window
			}
		}
		set.Set(NewChangepoint(c, ChangepointCompBias), bias)
		if growth {
			set.Set(NewChangepoint(c, ChangepointCompGrowth), slope)
		}
	}
	return set
}

// OffDayMask flags the weekend hours and, when holidays is set, the public holidays.
func OffDayMask(t []time.Time, holidays *HolidayCalendar) []bool {
	mask := make([]bool, len(t))
	for i, tPnt := range t {
		mask[i] = Weekday(tPnt) >= 5 || (holidays != nil && holidays.IsHoliday(tPnt))
	}
	return mask
}
