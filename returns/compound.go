// Package returns compounds daily security returns over forward horizons.
package returns

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"

	"fin-nlp/calendar"
)

// Observation is one daily return. An invalid Return is a day the
// provider has no value for and is treated as a zero return.
type Observation struct {
	Date   time.Time
	Return null.Float
}

// Horizon is a forward window measured in calendar days from the anchor
type Horizon struct {
	Label string
	Days  int
}

// DefaultHorizons are roughly one, two, three, six and twelve months
var DefaultHorizons = []Horizon{
	{Label: "1mo", Days: 30},
	{Label: "2mo", Days: 60},
	{Label: "3mo", Days: 90},
	{Label: "6mo", Days: 182},
	{Label: "12mo", Days: 365},
}

// HorizonsFromDays labels arbitrary day counts ("45d")
func HorizonsFromDays(days []int) []Horizon {
	out := make([]Horizon, 0, len(days))
	for _, d := range days {
		label := fmt.Sprintf("%dd", d)
		for _, h := range DefaultHorizons {
			if h.Days == d {
				label = h.Label
			}
		}
		out = append(out, Horizon{Label: label, Days: d})
	}
	return out
}

// HorizonReturn is the compounded return over one horizon
type HorizonReturn struct {
	Horizon Horizon
	// End is the session the horizon resolved to
	End          time.Time
	Value        float64
	Observations int
	// Complete is set when the window held observations, ends on or before
	// the data horizon and End is a real session rather than a degraded
	// fallback. An incomplete Value covers only part of the window.
	Complete bool
}

// Nullable returns the value, or null when the window was empty
func (h HorizonReturn) Nullable() null.Float {
	if h.Observations == 0 {
		return null.Float{}
	}
	return null.FloatFrom(h.Value)
}

// Compound returns prod(1+r)-1 over observations in (after, through] and
// how many observations fell in the window. Order does not matter.
func Compound(obs []Observation, after, through time.Time) (float64, int) {
	after, through = calendar.Day(after), calendar.Day(through)
	growth := 1.0
	n := 0
	for _, o := range obs {
		d := calendar.Day(o.Date)
		if !d.After(after) || d.After(through) {
			continue
		}
		n++
		if o.Return.Valid {
			growth *= 1 + o.Return.Float64
		}
	}
	return growth - 1, n
}

// Compounder resolves horizon end dates to sessions and compounds the
// returns inside each horizon
type Compounder struct {
	resolver *calendar.Resolver
	horizons []Horizon
}

// NewCompounder creates a compounder; nil horizons means DefaultHorizons
func NewCompounder(resolver *calendar.Resolver, horizons []Horizon) *Compounder {
	if len(horizons) == 0 {
		horizons = DefaultHorizons
	}
	return &Compounder{resolver: resolver, horizons: horizons}
}

// Horizons returns the configured horizons
func (c *Compounder) Horizons() []Horizon {
	return c.horizons
}

// Compute returns one result per horizon, in horizon order. Each horizon
// ends at the session anchor+Days resolves to. through is the last day the
// observations can cover; a zero through leaves the windows unbounded.
func (c *Compounder) Compute(anchor time.Time, obs []Observation, through time.Time) ([]HorizonReturn, error) {
	anchor = calendar.Day(anchor)
	if !through.IsZero() {
		through = calendar.Day(through)
	}
	out := make([]HorizonReturn, 0, len(c.horizons))
	for _, h := range c.horizons {
		res, err := c.resolver.Resolve(anchor.AddDate(0, 0, h.Days))
		if err != nil {
			return nil, fmt.Errorf("horizon %s: %w", h.Label, err)
		}
		end := res.Date()
		value, n := Compound(obs, anchor, end)
		covered := through.IsZero() || !end.After(through)
		out = append(out, HorizonReturn{
			Horizon:      h,
			End:          end,
			Value:        value,
			Observations: n,
			Complete:     n > 0 && covered && !res.Degraded,
		})
	}
	return out, nil
}
