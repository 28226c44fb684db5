// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package aggregate reduces a trial matrix to summary statistics of estimator
// performance. Missing trials are skipped, never propagated.
package aggregate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
	"github.com/shuowencs/Crossover-Jackknife/internal/montecarlo"
)

// Positions of the statistics in Table.Stats.
const (
	Bias = iota
	SD
	RMSE
	BootstrapSEOverSD
	AsymptoticSEOverSD
	BootstrapCoverage
	AsymptoticCoverage
	BootstrapLength
	AsymptoticLength
	NumStats
)

// StatNames labels the columns of Table.Stats.
var StatNames = [NumStats]string{
	"bias", "sd", "rmse", "bse/sd", "ase/sd", "cp_bse", "cp_ase", "length_bse", "length_ase",
}

// z is the two-sided 95% normal critical value.
var z = distuv.UnitNormal.Quantile(0.975)

// Table is the 1x9 summary of one tracked statistic. Bias, SD, RMSE and the
// interval lengths are in percent of the true value.
type Table struct {
	Name  string
	Truth float64
	Stats [NumStats]float64
	// N trials used and trials skipped for missing values
	N, Skipped int
}

// Summarize computes the nine statistics over the trials where the estimate
// and both standard errors are present.
func Summarize(name string, est, bse, ase []float64, truth float64) (Table, error) {
	if len(bse) != len(est) || len(ase) != len(est) {
		return Table{}, fmt.Errorf("aggregate %s: column lengths %d, %d, %d differ", name, len(est), len(bse), len(ase))
	}
	if truth == 0 || math.IsNaN(truth) || math.IsInf(truth, 0) {
		return Table{}, fmt.Errorf("aggregate %s: true value must be finite and nonzero, got %v", name, truth)
	}

	tab := Table{Name: name, Truth: truth}
	var e, b, a []float64
	for i := range est {
		if !finite(est[i]) || !finite(bse[i]) || !finite(ase[i]) {
			tab.Skipped++
			continue
		}
		e = append(e, est[i])
		b = append(b, bse[i])
		a = append(a, ase[i])
	}
	tab.N = len(e)
	if tab.N < 2 {
		for i := range tab.Stats {
			tab.Stats[i] = math.NaN()
		}
		return tab, nil
	}

	abs := math.Abs(truth)
	sd := stat.StdDev(e, nil)
	meanB := stat.Mean(b, nil)
	meanA := stat.Mean(a, nil)

	var sq float64
	var coverB, coverA int
	for i, x := range e {
		rel := x/truth - 1
		sq += rel * rel
		if math.Abs(x-truth) <= z*b[i] {
			coverB++
		}
		if math.Abs(x-truth) <= z*a[i] {
			coverA++
		}
	}
	n := float64(tab.N)

	tab.Stats[Bias] = 100 * (stat.Mean(e, nil)/truth - 1)
	tab.Stats[SD] = 100 * sd / abs
	tab.Stats[RMSE] = 100 * math.Sqrt(sq/n)
	tab.Stats[BootstrapSEOverSD] = meanB / sd
	tab.Stats[AsymptoticSEOverSD] = meanA / sd
	tab.Stats[BootstrapCoverage] = float64(coverB) / n
	tab.Stats[AsymptoticCoverage] = float64(coverA) / n
	tab.Stats[BootstrapLength] = 100 * 2 * z * meanB / abs
	tab.Stats[AsymptoticLength] = 100 * 2 * z * meanA / abs
	return tab, nil
}

// SummarizeMatrix builds one table per coefficient and one for the long-run
// effect. truth is [dem, lag1..lag4, lr].
func SummarizeMatrix(m *montecarlo.Matrix, truth []float64) ([]Table, error) {
	if len(truth) != gmm.NumCoef+1 {
		return nil, fmt.Errorf("aggregate: need %d true values, got %d", gmm.NumCoef+1, len(truth))
	}

	tables := make([]Table, 0, len(truth))
	for k, name := range gmm.CoefNames {
		tab, err := Summarize(name,
			m.Column(k),
			m.Column(montecarlo.IdxBootstrap+k),
			m.Column(estimator.IdxSE+k),
			truth[k])
		if err != nil {
			return nil, err
		}
		tables = append(tables, tab)
	}

	tab, err := Summarize("lr",
		m.Column(estimator.IdxLongRun),
		m.Column(montecarlo.IdxBootstrap+estimator.IdxLongRun),
		m.Column(estimator.IdxLongRunSE),
		truth[gmm.NumCoef])
	if err != nil {
		return nil, err
	}
	return append(tables, tab), nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
