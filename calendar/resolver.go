package calendar

import (
	"errors"
	"fmt"
	"time"
)

// Schedule produces the trading sessions of a window
type Schedule interface {
	Sessions(start, end time.Time) ([]Session, error)
}

// bounded is implemented by schedules that know their coverage
type bounded interface {
	Coverage() (time.Time, time.Time)
}

// DefaultWindowDays is how far around a date the resolver looks
const DefaultWindowDays = 10

// Resolution is the session a date resolved to
type Resolution struct {
	Session Session
	// Exact is set when the date itself is a session
	Exact bool
	// Degraded is set when no session on or after the date was found and
	// the last known session was used instead
	Degraded bool
}

// Date returns the resolved session day
func (r Resolution) Date() time.Time {
	return r.Session.Date
}

// Resolver maps a date to the nearest session on or after it
type Resolver struct {
	schedule Schedule
	window   int
}

// NewResolver creates a resolver looking windowDays either side of a date
func NewResolver(schedule Schedule, windowDays int) *Resolver {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Resolver{schedule: schedule, window: windowDays}
}

// Resolve returns the date itself if it is a session, otherwise the
// earliest later session in the window, otherwise the last session in the
// window. A date past the end of a bounded schedule resolves to the last
// session the schedule knows.
func (r *Resolver) Resolve(t time.Time) (Resolution, error) {
	d := Day(t)
	sessions, err := r.schedule.Sessions(d.AddDate(0, 0, -r.window), d.AddDate(0, 0, r.window))
	if err != nil {
		if !errors.Is(err, ErrScheduleUnavailable) {
			return Resolution{}, err
		}
		b, ok := r.schedule.(bounded)
		if !ok {
			return Resolution{}, err
		}
		_, last := b.Coverage()
		if !d.After(last) {
			return Resolution{}, err
		}
		if sessions, err = r.schedule.Sessions(last.AddDate(0, 0, -r.window), last); err != nil {
			return Resolution{}, err
		}
	}
	if len(sessions) == 0 {
		return Resolution{}, fmt.Errorf("%w: no sessions near %s", ErrScheduleUnavailable, d.Format("2006-01-02"))
	}

	for _, s := range sessions {
		if s.Date.Equal(d) {
			return Resolution{Session: s, Exact: true}, nil
		}
	}
	for _, s := range sessions {
		if s.Date.After(d) {
			return Resolution{Session: s}, nil
		}
	}
	return Resolution{Session: sessions[len(sessions)-1], Degraded: true}, nil
}
