// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package testutil builds panels and loggers for tests.
package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
)

// PanelSpec describes a synthetic panel
//
//	y[i,t] = a[i] + Dem*d[i,t] + sum_k Lags[k]*y[i,t-k] + Sigma*e[i,t]
//
// with a[i] ~ N(0,1), e ~ N(0,1) and d a persistent 0/1 Markov chain.
type PanelSpec struct {
	Units, Periods int
	Dem            float64
	Lags           [panel.NumLags]float64
	Sigma          float64
	// Switch is the per-period probability that d flips
	Switch float64
	Seed   uint64
}

// SyntheticPanel draws a panel from spec. The first NumLags outcomes of each
// unit are the unit effect plus noise.
func SyntheticPanel(t testing.TB, spec PanelSpec) *panel.Panel {
	t.Helper()

	rng := rand.New(rand.NewPCG(spec.Seed, spec.Seed^0x9e3779b97f4a7c15))
	if spec.Switch == 0 {
		spec.Switch = 0.15
	}

	y := make([][]float64, spec.Units)
	d := make([][]float64, spec.Units)
	for i := 0; i < spec.Units; i++ {
		y[i] = make([]float64, spec.Periods)
		d[i] = make([]float64, spec.Periods)
		alpha := rng.NormFloat64()

		state := 0.0
		if rng.Float64() < 0.5 {
			state = 1
		}
		for s := 0; s < spec.Periods; s++ {
			if rng.Float64() < spec.Switch {
				state = 1 - state
			}
			d[i][s] = state

			if s < panel.NumLags {
				y[i][s] = alpha + rng.NormFloat64()
				continue
			}
			v := alpha + spec.Dem*d[i][s] + spec.Sigma*rng.NormFloat64()
			for k := 1; k <= panel.NumLags; k++ {
				v += spec.Lags[k-1] * y[i][s-k]
			}
			y[i][s] = v
		}
	}

	p, err := panel.FromSeries(y, d)
	if err != nil {
		t.Fatalf("synthetic panel: %v", err)
	}
	return p
}
