// Package calendar provides the exchange trading calendar and resolves an
// arbitrary date to its trading session.
//
// A calendar is described by a JSON document (see nyse.json): trading
// hours, an optional named exchange whose standing holiday rules apply,
// the covered years and the one-off closures and early closes layered on
// top of those rules.
package calendar

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	xcal "github.com/scmhub/calendar"
)

// ErrScheduleUnavailable is returned when the calendar cannot produce a
// schedule for the requested window
var ErrScheduleUnavailable = errors.New("market schedule unavailable")

//go:embed nyse.json
var nyseJSON []byte

type dayState int

const (
	closed dayState = iota
	earlyClose
)

type clock struct {
	hour, minute, second int
}

// Session is one trading day
type Session struct {
	// Date is the session day at UTC midnight
	Date       time.Time
	Open       time.Time
	Close      time.Time
	EarlyClose bool
}

// Calendar knows which days in its covered years are trading sessions
type Calendar struct {
	rules          *xcal.Calendar
	days           map[int]dayState
	tz             *time.Location
	openTime       clock
	closeTime      clock
	earlyCloseTime clock
	first, last    time.Time
}

// exchangeRules maps a holiday_rules name to its exchange calendar
var exchangeRules = map[string]func(years ...int) *xcal.Calendar{
	"nyse":   xcal.XNYS,
	"nasdaq": xcal.XNAS,
}

type calendarJSON struct {
	NonTradingDays []string `json:"non_trading_days"`
	EarlyCloses    []string `json:"early_closes"`
	Timezone       string   `json:"timezone"`
	OpenTime       string   `json:"open_time"`
	CloseTime      string   `json:"close_time"`
	EarlyCloseTime string   `json:"early_close_time"`
	HolidayRules   string   `json:"holiday_rules"`
	FirstYear      int      `json:"first_year"`
	LastYear       int      `json:"last_year"`
}

// NYSE returns the New York Stock Exchange calendar
func NYSE() (*Calendar, error) {
	return New(nyseJSON)
}

// New builds a calendar from its JSON description
func New(data []byte) (*Calendar, error) {
	var cmap calendarJSON
	if err := json.Unmarshal(data, &cmap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal calendar: %w", err)
	}
	if cmap.FirstYear == 0 || cmap.LastYear < cmap.FirstYear {
		return nil, fmt.Errorf("invalid calendar coverage %d-%d", cmap.FirstYear, cmap.LastYear)
	}

	tz, err := time.LoadLocation(cmap.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar timezone %q: %w", cmap.Timezone, err)
	}

	cal := &Calendar{
		days:  map[int]dayState{},
		tz:    tz,
		first: date(cmap.FirstYear, time.January, 1),
		last:  date(cmap.LastYear, time.December, 31),
	}
	if cal.openTime, err = parseClock(cmap.OpenTime); err != nil {
		return nil, err
	}
	if cal.closeTime, err = parseClock(cmap.CloseTime); err != nil {
		return nil, err
	}
	if cal.earlyCloseTime, err = parseClock(cmap.EarlyCloseTime); err != nil {
		return nil, err
	}

	if cmap.HolidayRules != "" {
		build, ok := exchangeRules[cmap.HolidayRules]
		if !ok {
			return nil, fmt.Errorf("unknown holiday rules %q", cmap.HolidayRules)
		}
		cal.rules = build(cmap.FirstYear, cmap.LastYear)
		if cal.rules.Loc == nil {
			return nil, fmt.Errorf("holiday rules %q: exchange timezone unavailable", cmap.HolidayRules)
		}
	}

	for _, s := range cmap.EarlyCloses {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("invalid early close %q: %w", s, err)
		}
		cal.days[julianDate(t)] = earlyClose
	}
	for _, s := range cmap.NonTradingDays {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return nil, fmt.Errorf("invalid non-trading day %q: %w", s, err)
		}
		cal.days[julianDate(t)] = closed
	}

	return cal, nil
}

// Day truncates t to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return date(y, m, d)
}

// Coverage returns the first and last day the calendar knows about
func (c *Calendar) Coverage() (time.Time, time.Time) {
	return c.first, c.last
}

// Tz returns the exchange timezone
func (c *Calendar) Tz() *time.Location {
	return c.tz
}

// IsMarketDay reports whether the day of t is a trading session. Days
// outside the coverage are reported as weekday sessions.
func (c *Calendar) IsMarketDay(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	if state, ok := c.days[julianDate(t)]; ok {
		return state != closed
	}
	if local, ok := c.ruled(t); ok {
		return c.rules.IsBusinessDay(local)
	}
	return true
}

// isEarlyClose reports whether the session on the day of t closes early
func (c *Calendar) isEarlyClose(t time.Time) bool {
	if state, ok := c.days[julianDate(t)]; ok {
		return state == earlyClose
	}
	if local, ok := c.ruled(t); ok {
		return c.rules.IsEarlyClose(local)
	}
	return false
}

// ruled returns the day of t at exchange-local midnight when the holiday
// rules cover it. The rules key their days on that instant.
func (c *Calendar) ruled(t time.Time) (time.Time, bool) {
	if c.rules == nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	if start, end := c.rules.Years(); y < start || y > end {
		return time.Time{}, false
	}
	return time.Date(y, m, d, 0, 0, 0, 0, c.rules.Loc), true
}

// Sessions lists the trading sessions between start and end inclusive.
// The window is clamped to the coverage; a window entirely outside it
// fails with ErrScheduleUnavailable.
func (c *Calendar) Sessions(start, end time.Time) ([]Session, error) {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("invalid window %s to %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if end.Before(c.first) || start.After(c.last) {
		return nil, fmt.Errorf("%w: %s to %s outside %s to %s", ErrScheduleUnavailable,
			start.Format("2006-01-02"), end.Format("2006-01-02"),
			c.first.Format("2006-01-02"), c.last.Format("2006-01-02"))
	}
	if start.Before(c.first) {
		start = c.first
	}
	if end.After(c.last) {
		end = c.last
	}

	var sessions []Session
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !c.IsMarketDay(d) {
			continue
		}
		sessions = append(sessions, c.session(d))
	}
	return sessions, nil
}

func (c *Calendar) session(d time.Time) Session {
	y, m, day := d.Date()
	at := func(k clock) time.Time {
		return time.Date(y, m, day, k.hour, k.minute, k.second, 0, c.tz)
	}
	s := Session{Date: d, Open: at(c.openTime), Close: at(c.closeTime)}
	if c.isEarlyClose(d) {
		s.EarlyClose = true
		s.Close = at(c.earlyCloseTime)
	}
	return s
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func julianDate(t time.Time) int {
	year, m, day := t.Date()
	month := int(m)
	return day - 32075 + 1461*(year+4800+(month-14)/12)/4 + 367*(month-2-(month-14)/12*12)/12 -
		3*((year+4900+(month-14)/12)/100)/4
}

func parseClock(s string) (clock, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return clock{}, fmt.Errorf("invalid time of day %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
		}
		vals[i] = v
	}
	return clock{vals[0], vals[1], vals[2]}, nil
}
