// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package bootstrap

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// iqrToSigma is Phi^-1(0.75) - Phi^-1(0.25), the interquartile range of a standard normal.
var iqrToSigma = distuv.UnitNormal.Quantile(0.75) - distuv.UnitNormal.Quantile(0.25)

// quantile returns the empirical q-quantile of samples (0 <= q <= 1)
// using linear interpolation between order statistics.
func quantile(samples []float64, q float64) float64 {
	n := len(samples)
	if n == 0 {
		return math.NaN()
	}

	tmp := make([]float64, n)
	copy(tmp, samples)
	sort.Float64s(tmp)

	if q <= 0 {
		return tmp[0]
	}
	if q >= 1 {
		return tmp[n-1]
	}

	pos := q * float64(n-1)
	idxBelow := int(math.Floor(pos))
	idxAbove := int(math.Ceil(pos))

	if idxAbove == idxBelow {
		return tmp[idxBelow]
	}

	weight := pos - float64(idxBelow)
	return tmp[idxBelow]*(1.0-weight) + tmp[idxAbove]*weight
}

// RobustScale estimates a standard deviation as (Q75 - Q25) / (Phi^-1(0.75) - Phi^-1(0.25)),
// skipping NaN (missing) draws. It returns NaN when no draws are left.
func RobustScale(draws []float64) float64 {
	kept := make([]float64, 0, len(draws))
	for _, x := range draws {
		if !math.IsNaN(x) {
			kept = append(kept, x)
		}
	}
	if len(kept) == 0 {
		return math.NaN()
	}
	return (quantile(kept, 0.75) - quantile(kept, 0.25)) / iqrToSigma
}
