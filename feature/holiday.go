package feature

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/us"
)

var ErrUnknownCountry = errors.New("no holiday calendar for country")

var countryHolidays = map[string][]*cal.Holiday{
	"fr": fr.Holidays,
	"us": us.Holidays,
}

// HolidayCalendar flags the observed public holidays of one country.
type HolidayCalendar struct {
	Country  string
	holidays []*cal.Holiday

	mu    sync.Mutex
	years map[int]map[string]struct{}
}

// NewHolidayCalendar returns the calendar for a country code such as "fr" or "us".
func NewHolidayCalendar(country string) (*HolidayCalendar, error) {
	country = strings.ToLower(country)
	holidays, exists := countryHolidays[country]
	if !exists {
		return nil, fmt.Errorf("%q, %w", country, ErrUnknownCountry)
	}
	return NewHolidayCalendarFrom(country, holidays), nil
}

// NewHolidayCalendarFrom builds a calendar from an explicit holiday list.
func NewHolidayCalendarFrom(name string, holidays []*cal.Holiday) *HolidayCalendar {
	return &HolidayCalendar{
		Country:  name,
		holidays: holidays,
		years:    make(map[int]map[string]struct{}),
	}
}

// IsHoliday reports whether the calendar day of t, in t's own location, is an observed
// holiday.
func (h *HolidayCalendar) IsHoliday(t time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	days, exists := h.years[t.Year()]
	if !exists {
		days = make(map[string]struct{})
		for _, hol := range h.holidays {
			_, observed := hol.Calc(t.Year())
			if observed.IsZero() {
				continue
			}
			days[observed.Format(time.DateOnly)] = struct{}{}
		}
		h.years[t.Year()] = days
	}
	_, isHoliday := days[t.Format(time.DateOnly)]
	return isHoliday
}
