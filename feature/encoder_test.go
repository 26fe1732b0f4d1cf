package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOneHotEncoder(t *testing.T) {
	train := NewSet().
		Set(NewCalendar(Hour), []float64{0, 1, 2, 3}).
		Set(NewCalendar(DayOfWeek), []float64{0, 1, 2, 1}).
		Set(NewCalendar(IsWeekend), []float64{0, 0, 1, 1})

	enc := NewOneHotEncoder([]string{DayOfWeek, IsWeekend}, true)
	require.NoError(t, enc.Fit(train))

	assert.Equal(t, map[string][]int{DayOfWeek: {0, 1, 2}, IsWeekend: {0, 1}}, enc.Levels)
	assert.Equal(t, []string{Hour, "day_of_week_1", "day_of_week_2", "is_weekend_1"}, enc.Output)

	// inference window only sees day 1 and an unseen day 5
	infer := NewSet().
		Set(NewCalendar(Hour), []float64{7, 8}).
		Set(NewCalendar(DayOfWeek), []float64{1, 5}).
		Set(NewCalendar(IsWeekend), []float64{0, 1})

	res, err := enc.Transform(infer)
	require.NoError(t, err)

	x := res.AlignedMatrix(enc.Output, false)
	require.NotNil(t, x)
	assert.Equal(t, []float64{7, 1, 0, 0}, x.RawRowView(0))
	assert.Equal(t, []float64{8, 0, 0, 1}, x.RawRowView(1))

	_, err = enc.Transform(NewSet().Set(NewCalendar(Hour), []float64{1}))
	assert.ErrorIs(t, err, ErrMissingColumn)

	err = NewOneHotEncoder([]string{Month}, false).Fit(train)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestStandardScaler(t *testing.T) {
	s := NewSet().
		Set(NewCalendar(Hour), []float64{0, 2, 4, 6}).
		Set(NewCalendar(Month), []float64{3, 3, 3, 3}).
		Set(NewCalendar(IsSunday), []float64{0, 1, 0, 1})

	sc := NewStandardScaler([]string{Hour, Month})
	require.NoError(t, sc.Fit(s))
	assert.InDeltaSlice(t, []float64{3, 3}, sc.Mean, 1e-12)
	assert.InDeltaSlice(t, []float64{math.Sqrt(5), 1}, sc.Scale, 1e-12)

	res, err := sc.Transform(s)
	require.NoError(t, err)

	hour, _ := res.GetName(Hour)
	assert.InDeltaSlice(t, []float64{-3 / math.Sqrt(5), -1 / math.Sqrt(5), 1 / math.Sqrt(5), 3 / math.Sqrt(5)}, hour, 1e-12)
	month, _ := res.GetName(Month)
	assert.Equal(t, []float64{0, 0, 0, 0}, month)
	sunday, _ := res.GetName(IsSunday)
	assert.Equal(t, []float64{0, 1, 0, 1}, sunday)
	assert.Equal(t, s.Labels().Names(), res.Labels().Names())

	// input is left untouched
	orig, _ := s.GetName(Hour)
	assert.Equal(t, []float64{0, 2, 4, 6}, orig)
}

func TestLagValues(t *testing.T) {
	res := LagValues([]float64{1, 2, 3, 4}, 2)
	assert.True(t, math.IsNaN(res[0]))
	assert.True(t, math.IsNaN(res[1]))
	assert.Equal(t, []float64{1, 2}, res[2:])
}

func TestLagSources(t *testing.T) {
	testData := map[string]struct {
		start    int
		horizon  int
		lag      int
		expected []int
		err      error
	}{
		"lag smaller than horizon": {start: 200, horizon: 24, lag: 12, err: ErrLagTooSmall},
		"not enough history":       {start: 100, horizon: 24, lag: 168, err: ErrLagBeforeHistory},
		"zero horizon":             {start: 100, horizon: 0, lag: 24, err: ErrNonPositiveWindow},
		"lag equal to horizon": {
			start: 5, horizon: 3, lag: 3,
			expected: []int{2, 3, 4},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res, err := LagSources(td.start, td.horizon, td.lag)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, td.expected, res)
		})
	}
}

func TestLagSourcesWeeklyLagNeverLeaks(t *testing.T) {
	start := 24 * 7 * 3
	src, err := LagSources(start, 24, 168)
	require.NoError(t, err)
	require.Len(t, src, 24)

	tSeries := make([]time.Time, start)
	for i := range tSeries {
		tSeries[i] = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour)
	}
	for h, s := range src {
		assert.Less(t, s, start, "row %d", h)
		assert.Equal(t, 168, start+h-s)
		assert.Equal(t, tSeries[0].Add(time.Duration(start+h)*time.Hour).Add(-168*time.Hour), tSeries[s])
	}
}
