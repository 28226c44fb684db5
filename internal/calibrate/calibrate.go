// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package calibrate fits the two-way fixed-effects autoregressive model to the
// real panel. Its coefficients, residual scale and index term are the "true"
// parameters of the simulation design.
package calibrate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
)

// ErrNotFinite is returned when the fit yields NaN or infinite coefficients or residual scale.
var ErrNotFinite = errors.New("calibrate: non-finite parameters")

// Params are the calibrated parameters. They are computed once and never modified.
type Params struct {
	// Coef is [dem, lag1, lag2, lag3, lag4]
	Coef [gmm.NumCoef]float64
	// Sigma is the residual standard deviation
	Sigma float64
	// Index[i][t] is the fitted value of unit i (0-based position) at period t
	// net of the lag contributions. NaN for the first NumLags periods.
	Index [][]float64
	// LongRun is the long-run effect implied by Coef
	LongRun float64
	// Obs and DF are the number of observations and residual degrees of freedom
	Obs, DF int
}

// Truth returns the true values of the tracked statistics: the five
// coefficients followed by the long-run effect.
func (p *Params) Truth() []float64 {
	out := make([]float64, 0, gmm.NumCoef+1)
	out = append(out, p.Coef[:]...)
	return append(out, p.LongRun)
}

// Fit runs the least-squares dummy-variable regression
//
//	y[i,t] = b*d[i,t] + sum_k r_k*y[i,t-k] + a[i] + g[t] + e[i,t]
//
// over the periods where all four lags are observed.
func Fit(p *panel.Panel) (*Params, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	N, T := p.Units, p.Periods
	first := panel.NumLags
	Tuse := T - first
	if Tuse < 2 {
		return nil, &panel.DataShapeError{Reason: fmt.Sprintf("need at least %d periods for the fixed-effects fit, got %d", first+2, T)}
	}

	// Columns: d, lag1..lag4, N unit dummies, Tuse-1 time dummies (first usable period dropped)
	nSlope := gmm.NumCoef
	unitCol := nSlope
	timeCol := unitCol + N
	m := timeCol + Tuse - 1
	n := N * Tuse
	if n <= m {
		return nil, fmt.Errorf("calibrate: %d observations for %d regressors", n, m)
	}

	X := mat.NewDense(n, m, nil)
	Y := mat.NewDense(n, 1, nil)

	// Fill X row-by-row
	row := 0
	for i := 0; i < N; i++ {
		for t := first; t < T; t++ {
			r := p.At(i, t)
			Y.Set(row, 0, r.Y)
			X.Set(row, 0, r.D)
			for k := 1; k <= panel.NumLags; k++ {
				X.Set(row, k, r.Lags[k-1])
			}
			X.Set(row, unitCol+i, 1)
			if t > first {
				X.Set(row, timeCol+t-first-1, 1)
			}
			row++
		}
	}

	B, rank, err := leastSquares(X, Y)
	if err != nil {
		return nil, err
	}

	// Residual scale
	var fitted, resid mat.Dense
	fitted.Mul(X, B)
	resid.Sub(Y, &fitted)
	rss := 0.0
	for j := 0; j < n; j++ {
		rss += resid.At(j, 0) * resid.At(j, 0)
	}
	df := n - rank

	params := &Params{
		Sigma: math.Sqrt(rss / float64(df)),
		Index: make([][]float64, N),
		Obs:   n,
		DF:    df,
	}
	for k := 0; k < nSlope; k++ {
		params.Coef[k] = B.At(k, 0)
	}
	params.LongRun = estimator.LongRun(params.Coef[:])
	if err := params.checkFinite(); err != nil {
		return nil, err
	}

	// Index = fitted value minus lag contributions = b*d + a[i] + g[t]
	for i := 0; i < N; i++ {
		params.Index[i] = make([]float64, T)
		for t := 0; t < T; t++ {
			if t < first {
				params.Index[i][t] = math.NaN()
				continue
			}
			v := params.Coef[0]*p.At(i, t).D + B.At(unitCol+i, 0)
			if t > first {
				v += B.At(timeCol+t-first-1, 0)
			}
			params.Index[i][t] = v
		}
	}

	return params, nil
}

func (p *Params) checkFinite() error {
	for k, c := range p.Coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s = %v", ErrNotFinite, gmm.CoefNames[k], c)
		}
	}
	if math.IsNaN(p.Sigma) || math.IsInf(p.Sigma, 0) {
		return fmt.Errorf("%w: sigma = %v", ErrNotFinite, p.Sigma)
	}
	return nil
}

// leastSquares solves X B = Y. It uses the normal equations when X'X is
// invertible and falls back to a minimum-norm SVD solution otherwise.
// It returns the coefficients and the numerical rank of X.
func leastSquares(X, Y *mat.Dense) (*mat.Dense, int, error) {
	_, m := X.Dims()

	var xtx mat.Dense
	xtx.Mul(X.T(), X)

	var xtxInv mat.Dense
	xtxError := xtxInv.Inverse(&xtx)

	if xtxError == nil {
		// X'X is invertible: standard OLS
		var xty mat.Dense
		xty.Mul(X.T(), Y)
		B := new(mat.Dense)
		B.Mul(&xtxInv, &xty)
		return B, m, nil
	}

	// Fallback: X'X is singular or badly conditioned
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, 0, fmt.Errorf("OLS failed: X'X singular and SVD factorization failed: %v", xtxError)
	}

	rank := svd.Rank(1e-12)
	if rank == 0 {
		return mat.NewDense(m, 1, nil), 0, nil
	}
	B := new(mat.Dense)
	svd.SolveTo(B, Y, rank)
	return B, rank, nil
}
