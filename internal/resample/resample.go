// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package resample implements the two panel resampling schemes used by the
// bootstrap: a block (cluster) bootstrap over units and an exponential-weight
// wild bootstrap.
package resample

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// Resampler produces a new panel of the same shape from an existing one.
// Implementations never modify the input panel.
type Resampler interface {
	Name() string
	Resample(p *panel.Panel, rng *rngscope.Stream) *panel.Panel
}

// ByName returns the resampler configured by name ("block" or "wild").
func ByName(name string) (Resampler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "block":
		return Block{}, nil
	case "wild", "weight", "exponential":
		return Wild{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q, options: block, wild", name)
	}
}

// Block draws N units with replacement, keeps each drawn unit's time series
// intact and relabels units 1..N and periods 1..T.
type Block struct{}

func (Block) Name() string { return "block" }

func (Block) Resample(p *panel.Panel, rng *rngscope.Stream) *panel.Panel {
	N, T := p.Units, p.Periods
	out := &panel.Panel{
		Units:   N,
		Periods: T,
		Rows:    make([]panel.Row, N*T),
	}

	for i := 0; i < N; i++ {
		src := p.Unit(rng.IntN(N))
		for t := 0; t < T; t++ {
			out.Rows[i*T+t] = panel.Row{
				Unit: i + 1,
				Time: t + 1,
				Y:    src[t].Y,
				D:    src[t].D,
			}
		}
	}

	// Duplicated units now sit next to each other, lags must not cross them
	out.ComputeLags()
	return out
}

// Wild keeps every row and attaches a weight column: each unit draws an
// independent Exponential(1) weight, normalized to sum to one across units and
// shared by all of the unit's rows.
type Wild struct{}

func (Wild) Name() string { return "wild" }

func (Wild) Resample(p *panel.Panel, rng *rngscope.Stream) *panel.Panel {
	N, T := p.Units, p.Periods
	out := p.Clone()

	exp := distuv.Exponential{Rate: 1, Src: rng}
	w := make([]float64, N)
	total := 0.0
	for i := range w {
		w[i] = exp.Rand()
		total += w[i]
	}

	out.Weight = make([]float64, N*T)
	for i := 0; i < N; i++ {
		for t := 0; t < T; t++ {
			out.Weight[i*T+t] = w[i] / total
		}
	}

	out.ComputeLags()
	return out
}
