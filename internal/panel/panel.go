// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package panel holds the balanced country-year panel used by every stage of
// the study, along with the routine that rebuilds the lagged outcome columns.
package panel

import (
	"fmt"
	"math"
	"sort"
)

// NumLags is the number of lagged outcome columns carried on every row.
const NumLags = 4

// Row is one (unit, period) observation.
type Row struct {
	// Unit identifier (country code in the real data, 1..N after a resample)
	Unit int
	// Time period (year in the real data, 1..T after a resample)
	Time int
	// Log GDP
	Y float64
	// Democracy indicator
	D float64
	// Lags[k-1] is Y at period t-k of the same unit, NaN when t-k is outside the panel
	Lags [NumLags]float64
}

// Panel is a balanced panel stored unit-major: rows for unit i occupy
// Rows[i*Periods : (i+1)*Periods] in increasing time order.
type Panel struct {
	Units   int
	Periods int
	Rows    []Row

	// Weight is an optional per-row observation weight column. Nil when absent.
	Weight []float64
}

// DataShapeError reports a panel that is not balanced, has the wrong
// dimensions or carries non-finite outcome, treatment or weight values.
type DataShapeError struct {
	Reason string
}

func (e *DataShapeError) Error() string {
	return "data shape: " + e.Reason
}

func shapeErrorf(format string, args ...any) error {
	return &DataShapeError{Reason: fmt.Sprintf(format, args...)}
}

// FromRows sorts rows by (unit, time), checks that the result is balanced and
// recomputes the lag columns. The input slice is not modified.
func FromRows(rows []Row) (*Panel, error) {
	if len(rows) == 0 {
		return nil, shapeErrorf("no rows")
	}

	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(a, b int) bool {
		if sorted[a].Unit != sorted[b].Unit {
			return sorted[a].Unit < sorted[b].Unit
		}
		return sorted[a].Time < sorted[b].Time
	})

	// Count periods of the first unit, every other unit must match it
	periods := 0
	for periods < len(sorted) && sorted[periods].Unit == sorted[0].Unit {
		periods++
	}
	if len(sorted)%periods != 0 {
		return nil, shapeErrorf("%d rows is not a multiple of %d periods", len(sorted), periods)
	}

	p := &Panel{
		Units:   len(sorted) / periods,
		Periods: periods,
		Rows:    sorted,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ComputeLags()
	return p, nil
}

// FromSeries builds a panel with units labelled 1..N and periods 1..T from
// per-unit outcome and treatment series.
func FromSeries(y, d [][]float64) (*Panel, error) {
	if len(y) == 0 || len(y) != len(d) {
		return nil, shapeErrorf("need matching non-empty outcome and treatment series, got %d and %d", len(y), len(d))
	}
	T := len(y[0])
	rows := make([]Row, 0, len(y)*T)
	for i := range y {
		if len(y[i]) != T || len(d[i]) != T {
			return nil, shapeErrorf("unit %d has %d/%d periods, want %d", i+1, len(y[i]), len(d[i]), T)
		}
		for t := 0; t < T; t++ {
			rows = append(rows, Row{Unit: i + 1, Time: t + 1, Y: y[i][t], D: d[i][t]})
		}
	}
	return FromRows(rows)
}

// Validate checks the balanced-panel invariant: Units*Periods rows, every unit
// observed over the same contiguous set of periods, no duplicated (unit, time) pair.
// Outcomes, treatments and weights must be finite; lag columns may hold NaN.
func (p *Panel) Validate() error {
	if p == nil {
		return shapeErrorf("nil panel")
	}
	if p.Units <= 0 || p.Periods <= 0 {
		return shapeErrorf("empty panel: %d units x %d periods", p.Units, p.Periods)
	}
	if len(p.Rows) != p.Units*p.Periods {
		return shapeErrorf("have %d rows, want %d units x %d periods", len(p.Rows), p.Units, p.Periods)
	}
	if p.Weight != nil && len(p.Weight) != len(p.Rows) {
		return shapeErrorf("weight column has %d entries, want %d", len(p.Weight), len(p.Rows))
	}

	first := p.Rows[:p.Periods]
	for t := 1; t < p.Periods; t++ {
		if first[t].Time != first[t-1].Time+1 {
			return shapeErrorf("unit %d: periods %d and %d are not contiguous", first[t].Unit, first[t-1].Time, first[t].Time)
		}
	}

	for i := 0; i < p.Units; i++ {
		unit := p.Rows[i*p.Periods].Unit
		if i > 0 && unit <= p.Rows[(i-1)*p.Periods].Unit {
			return shapeErrorf("unit %d appears more than once or out of order", unit)
		}
		for t := 0; t < p.Periods; t++ {
			r := p.Rows[i*p.Periods+t]
			if r.Unit != unit {
				return shapeErrorf("unit %d has %d periods, want %d", unit, t, p.Periods)
			}
			if r.Time != first[t].Time {
				return shapeErrorf("unit %d period %d does not match period %d of unit %d", unit, r.Time, first[t].Time, first[0].Unit)
			}
			if !finite(r.Y) || !finite(r.D) {
				return shapeErrorf("unit %d period %d: non-finite value (outcome %v, treatment %v)", unit, r.Time, r.Y, r.D)
			}
			if p.Weight != nil && !finite(p.Weight[i*p.Periods+t]) {
				return shapeErrorf("unit %d period %d: non-finite weight %v", unit, r.Time, p.Weight[i*p.Periods+t])
			}
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// ComputeLags rebuilds every row's lag columns from the outcome column.
// It relies only on the unit-major ordering, never on unit or time labels.
func (p *Panel) ComputeLags() {
	for i := 0; i < p.Units; i++ {
		base := i * p.Periods
		for t := 0; t < p.Periods; t++ {
			r := &p.Rows[base+t]
			for k := 1; k <= NumLags; k++ {
				if t-k < 0 {
					r.Lags[k-1] = math.NaN()
				} else {
					r.Lags[k-1] = p.Rows[base+t-k].Y
				}
			}
		}
	}
}

// At returns the row of the i-th unit (0-based position) at the t-th period.
func (p *Panel) At(i, t int) *Row {
	return &p.Rows[i*p.Periods+t]
}

// Unit returns the rows of the i-th unit (0-based position).
func (p *Panel) Unit(i int) []Row {
	return p.Rows[i*p.Periods : (i+1)*p.Periods]
}

// Outcome returns a copy of the outcome series of the i-th unit.
func (p *Panel) Outcome(i int) []float64 {
	out := make([]float64, p.Periods)
	for t, r := range p.Unit(i) {
		out[t] = r.Y
	}
	return out
}

// UnitWeight returns the observation weight of the i-th unit, or 1 when the
// panel carries no weight column.
func (p *Panel) UnitWeight(i int) float64 {
	if p.Weight == nil {
		return 1
	}
	return p.Weight[i*p.Periods]
}

// Clone returns a deep copy.
func (p *Panel) Clone() *Panel {
	out := &Panel{
		Units:   p.Units,
		Periods: p.Periods,
		Rows:    make([]Row, len(p.Rows)),
	}
	copy(out.Rows, p.Rows)
	if p.Weight != nil {
		out.Weight = make([]float64, len(p.Weight))
		copy(out.Weight, p.Weight)
	}
	return out
}
