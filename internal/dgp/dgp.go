// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package dgp simulates synthetic panels from the calibrated autoregressive
// data-generating process.
package dgp

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shuowencs/Crossover-Jackknife/internal/calibrate"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/rngscope"
)

// Simulator draws synthetic panels shaped like Base.
type Simulator struct {
	Base   *panel.Panel
	Params *calibrate.Params
}

// New checks that params were calibrated on a panel shaped like base.
func New(base *panel.Panel, params *calibrate.Params) (*Simulator, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	if len(params.Index) != base.Units {
		return nil, &panel.DataShapeError{Reason: fmt.Sprintf("index term has %d units, panel has %d", len(params.Index), base.Units)}
	}
	for i, idx := range params.Index {
		if len(idx) != base.Periods {
			return nil, &panel.DataShapeError{Reason: fmt.Sprintf("index term of unit %d has %d periods, panel has %d", i+1, len(idx), base.Periods)}
		}
	}
	return &Simulator{Base: base, Params: params}, nil
}

// Simulate generates one synthetic panel:
//
//	y[i,t] = index[i,t] + sum_k r_k*y[i,t-k] + e[i,t],  e ~ N(0, sigma)
//
// The first NumLags periods of every unit are the real outcomes. Noise is
// drawn period by period, unit by unit. Units are then relabelled with a
// random permutation and the lag columns rebuilt.
func (s *Simulator) Simulate(rng *rngscope.Stream) *panel.Panel {
	N, T := s.Base.Units, s.Base.Periods
	p := panel.NumLags
	coef := s.Params.Coef
	noise := distuv.Normal{Mu: 0, Sigma: s.Params.Sigma, Src: rng}

	// Copy the first p observations from the real data
	y := make([][]float64, N)
	for i := 0; i < N; i++ {
		y[i] = make([]float64, T)
		for t := 0; t < p && t < T; t++ {
			y[i][t] = s.Base.At(i, t).Y
		}
	}

	// Simulate t = p,...,T-1
	for t := p; t < T; t++ {
		for i := 0; i < N; i++ {
			val := s.Params.Index[i][t]
			for k := 1; k <= p; k++ {
				val += coef[k] * y[i][t-k]
			}
			val += noise.Rand()
			y[i][t] = val
		}
	}

	// Relabel units with an independent permutation, keeping real unit
	// labels and periods so the panel looks like the calibration data
	labels := make([]int, N)
	for i := 0; i < N; i++ {
		labels[i] = s.Base.At(i, 0).Unit
	}
	perm := rng.Perm(N)

	rows := make([]panel.Row, 0, N*T)
	for i := 0; i < N; i++ {
		src := s.Base.Unit(i)
		for t := 0; t < T; t++ {
			rows = append(rows, panel.Row{
				Unit: labels[perm[i]],
				Time: src[t].Time,
				Y:    y[i][t],
				D:    src[t].D,
			})
		}
	}

	out, err := panel.FromRows(rows)
	if err != nil {
		// Rows are a relabelling of the validated base panel
		panic(fmt.Sprintf("dgp: simulated panel is not balanced: %v", err))
	}
	return out
}
