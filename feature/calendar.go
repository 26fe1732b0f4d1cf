package feature

import (
	"time"
)

const (
	Hour        = "hour"
	DayOfWeek   = "day_of_week"
	DayOfMonth  = "day_of_month"
	Month       = "month"
	IsWeekend   = "is_weekend"
	IsSunday    = "is_sunday"
	IsHoliday   = "is_holiday"
	HoursInWeek = 168
)

// CalendarOptions configures the optional calendar columns.
type CalendarOptions struct {
	// Holidays adds an is_holiday column when set
	Holidays *HolidayCalendar
}

// Weekday returns the day of week with Monday as 0 and Sunday as 6.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// WeekHour returns the position of the timestamp within a Monday based week, [0, 168).
func WeekHour(t time.Time) int {
	return Weekday(t)*24 + t.Hour()
}

// CalendarFeatures derives the calendar columns from the time points. Columns are always
// produced in the same order: hour, day_of_week, day_of_month, month, is_weekend, is_sunday
// and is_holiday when configured.
func CalendarFeatures(t []time.Time, opt *CalendarOptions) *Set {
	n := len(t)
	hour := make([]float64, n)
	dow := make([]float64, n)
	dom := make([]float64, n)
	month := make([]float64, n)
	weekend := make([]float64, n)
	sunday := make([]float64, n)

	for i, tPnt := range t {
		d := Weekday(tPnt)
		hour[i] = float64(tPnt.Hour())
		dow[i] = float64(d)
		dom[i] = float64(tPnt.Day())
		month[i] = float64(tPnt.Month())
		if d >= 5 {
			weekend[i] = 1.0
		}
		if d == 6 {
			sunday[i] = 1.0
		}
	}

	set := NewSet().
		Set(NewCalendar(Hour), hour).
		Set(NewCalendar(DayOfWeek), dow).
		Set(NewCalendar(DayOfMonth), dom).
		Set(NewCalendar(Month), month).
		Set(NewCalendar(IsWeekend), weekend).
		Set(NewCalendar(IsSunday), sunday)

	if opt != nil && opt.Holidays != nil {
		holiday := make([]float64, n)
		for i, tPnt := range t {
			if opt.Holidays.IsHoliday(tPnt) {
				holiday[i] = 1.0
			}
		}
		set.Set(NewCalendar(IsHoliday), holiday)
	}
	return set
}
