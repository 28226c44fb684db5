// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package estimator turns a GMM fit into the fixed-width estimate vector used
// throughout the study: coefficients, clustered standard errors, and the
// long-run effect of democracy with its delta-method standard error.
package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
)

// Layout of Vector.
const (
	NumCoef = gmm.NumCoef
	// IdxSE is the offset of the clustered standard errors
	IdxSE = NumCoef
	// IdxLongRun is the long-run effect
	IdxLongRun = 2 * NumCoef
	// IdxLongRunSE is the long-run effect's standard error
	IdxLongRunSE = IdxLongRun + 1
	// VectorLen is the width of Vector
	VectorLen = IdxLongRunSE + 1
)

// Vector is [dem, lag1..lag4, se(dem), se(lag1..lag4), lr, se(lr)].
// Missing results are NaN.
type Vector [VectorLen]float64

// Names labels the components of Vector.
func Names() []string {
	names := make([]string, 0, VectorLen)
	names = append(names, gmm.CoefNames...)
	for _, n := range gmm.CoefNames {
		names = append(names, "se_"+n)
	}
	return append(names, "lr", "se_lr")
}

// Missing returns a vector with every component missing.
func Missing() Vector {
	var v Vector
	for i := range v {
		v[i] = math.NaN()
	}
	return v
}

// IsMissing reports whether the point estimates are missing.
func (v Vector) IsMissing() bool {
	return math.IsNaN(v[0])
}

// EstimationFailure means the solver did not produce usable estimates for one
// panel. Callers record the result as missing and carry on.
type EstimationFailure struct {
	Err error
}

func (e *EstimationFailure) Error() string {
	return fmt.Sprintf("estimation failure: %v", e.Err)
}

func (e *EstimationFailure) Unwrap() error { return e.Err }

// Estimator fits the fixed four-lag democracy model.
type Estimator struct {
	Solver gmm.Solver
}

// New returns an estimator backed by solver.
func New(solver gmm.Solver) *Estimator {
	return &Estimator{Solver: solver}
}

// Estimate fits p and returns the estimate vector. Any weight column on p is
// passed through to the solver, which decides whether to use it.
func (e *Estimator) Estimate(p *panel.Panel) (Vector, error) {
	res, err := e.Solver.Fit(p)
	if err != nil {
		return Missing(), &EstimationFailure{Err: err}
	}
	if len(res.Coef) < NumCoef || res.Cov == nil || res.Cov.SymmetricDim() < NumCoef {
		return Missing(), &EstimationFailure{Err: fmt.Errorf("solver returned %d coefficients", len(res.Coef))}
	}

	var v Vector
	for k := 0; k < NumCoef; k++ {
		v[k] = res.Coef[k]
		variance := res.Cov.At(k, k)
		if variance < 0 || math.IsNaN(variance) {
			return Missing(), &EstimationFailure{Err: fmt.Errorf("negative variance for %s", gmm.CoefNames[k])}
		}
		v[IdxSE+k] = math.Sqrt(variance)
	}

	coef := res.Coef[:NumCoef]
	v[IdxLongRun] = LongRun(coef)
	v[IdxLongRunSE] = LongRunSE(coef, res.Cov)
	if math.IsInf(v[IdxLongRun], 0) || math.IsNaN(v[IdxLongRun]) {
		return Missing(), &EstimationFailure{Err: fmt.Errorf("lag coefficients sum to one")}
	}
	return v, nil
}

// LongRun returns coef[0] / (1 - sum(coef[1:5])).
func LongRun(coef []float64) float64 {
	return coef[0] / (1 - lagSum(coef))
}

// LongRunSE returns the delta-method standard error of LongRun,
// sqrt(g' S g) with g = [1, lr, lr, lr, lr] / (1 - sum(lags)) and S the
// covariance block of [dem, lag1..lag4].
func LongRunSE(coef []float64, cov mat.Symmetric) float64 {
	denom := 1 - lagSum(coef)
	lr := coef[0] / denom

	g := mat.NewVecDense(NumCoef, nil)
	g.SetVec(0, 1/denom)
	for k := 1; k < NumCoef; k++ {
		g.SetVec(k, lr/denom)
	}

	sigma := mat.NewSymDense(NumCoef, nil)
	for i := 0; i < NumCoef; i++ {
		for j := i; j < NumCoef; j++ {
			sigma.SetSym(i, j, cov.At(i, j))
		}
	}
	return math.Sqrt(mat.Inner(g, sigma, g))
}

func lagSum(coef []float64) float64 {
	s := 0.0
	for k := 1; k < NumCoef; k++ {
		s += coef[k]
	}
	return s
}
