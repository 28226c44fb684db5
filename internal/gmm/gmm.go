// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package gmm fits the Arellano-Bond difference GMM estimator of
//
//	y[i,t] = b*d[i,t] + r1*y[i,t-1] + ... + r4*y[i,t-4] + a[i] + g[t] + e[i,t]
//
// Time effects are removed by cross-sectional demeaning of every period, unit
// effects by first differencing. Lagged levels of y and d instrument the
// differenced equation.
package gmm

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
)

// NumCoef is the number of slope coefficients: democracy and four outcome lags.
const NumCoef = 1 + panel.NumLags

// CoefNames labels the coefficient vector.
var CoefNames = []string{"dem", "lag1", "lag2", "lag3", "lag4"}

// Relative singular value cutoff for pseudo-inverses: sqrt of machine epsilon.
const pinvTolerance = 1.4901161193847656e-08

var (
	// ErrSingular is returned when a moment or weighting matrix cannot be inverted.
	ErrSingular = errors.New("gmm: singular moment matrix")
	// ErrNotFinite is returned when the estimates or their covariance are NaN or infinite.
	ErrNotFinite = errors.New("gmm: non-finite estimates")
)

// Result holds the fitted coefficients and their covariance, clustered by unit.
type Result struct {
	// Coef is [dem, lag1, lag2, lag3, lag4]
	Coef []float64
	// Cov is the NumCoef x NumCoef covariance of Coef
	Cov *mat.SymDense
	// Instruments is the number of instrument columns
	Instruments int
	// Obs is the number of differenced observations used
	Obs int
	// Steps is 1 or 2
	Steps int
}

// Solver fits the dynamic panel model. It must be safe for concurrent use.
type Solver interface {
	Fit(p *panel.Panel) (*Result, error)
}

// Options configures the difference GMM estimator.
type Options struct {
	// Steps is 1 (one-step, robust sandwich covariance) or 2 (two-step,
	// Windmeijer-corrected covariance)
	Steps int
	// Lags of y used as instruments, MinLagY >= 2
	MinLagY, MaxLagY int
	// Lags of d used as instruments, MinLagD >= 1 treats d as predetermined
	MinLagD, MaxLagD int
	// Collapse uses one instrument column per lag instead of one per lag and period
	Collapse bool
	// UseWeights multiplies each unit's moment contribution by its panel weight.
	// When false the weight column is ignored.
	UseWeights bool
}

// DefaultOptions returns the two-step estimator with y instrumented by lags
// 2..99 and d by lags 1..99.
func DefaultOptions() Options {
	return Options{
		Steps:   2,
		MinLagY: 2,
		MaxLagY: 99,
		MinLagD: 1,
		MaxLagD: 99,
	}
}

// DifferenceGMM is the Arellano-Bond solver.
type DifferenceGMM struct {
	Opts Options
}

// New returns a solver with the given options.
func New(opts Options) *DifferenceGMM {
	return &DifferenceGMM{Opts: opts}
}

// slot places the level of variable v (0 = y, 1 = d) at period s into instrument column col.
type slot struct {
	v, s, col int
}

// instrumentLayout returns, for every equation e (period first+e), the
// instrument slots it uses, and the total number of columns.
func (g *DifferenceGMM) instrumentLayout(first, periods int) ([][]slot, int) {
	o := g.Opts
	ranges := [2][2]int{{o.MinLagY, o.MaxLagY}, {o.MinLagD, o.MaxLagD}}
	E := periods - first
	layout := make([][]slot, E)

	if o.Collapse {
		// One column per (variable, lag)
		colOf := map[[2]int]int{}
		n := 0
		for e := 0; e < E; e++ {
			t := first + e
			for v, r := range ranges {
				for l := r[0]; l <= r[1] && t-l >= 0; l++ {
					key := [2]int{v, l}
					col, ok := colOf[key]
					if !ok {
						col = n
						colOf[key] = col
						n++
					}
					layout[e] = append(layout[e], slot{v: v, s: t - l, col: col})
				}
			}
		}
		return layout, n
	}

	n := 0
	for e := 0; e < E; e++ {
		t := first + e
		for v, r := range ranges {
			for l := r[0]; l <= r[1] && t-l >= 0; l++ {
				layout[e] = append(layout[e], slot{v: v, s: t - l, col: n})
				n++
			}
		}
	}
	return layout, n
}

// Fit estimates the model on p.
func (g *DifferenceGMM) Fit(p *panel.Panel) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := g.Opts
	if o.Steps != 1 && o.Steps != 2 {
		return nil, fmt.Errorf("gmm: steps must be 1 or 2, got %d", o.Steps)
	}
	if o.MinLagY < 2 || o.MinLagD < 0 || o.MaxLagY < o.MinLagY || o.MaxLagD < o.MinLagD {
		return nil, fmt.Errorf("gmm: invalid instrument lags y=%d..%d d=%d..%d", o.MinLagY, o.MaxLagY, o.MinLagD, o.MaxLagD)
	}

	N, T := p.Units, p.Periods
	// The first differenced equation needs y[t-5]
	first := panel.NumLags + 1
	E := T - first
	if E < 1 {
		return nil, fmt.Errorf("gmm: need at least %d periods, got %d", first+1, T)
	}
	if N*E <= NumCoef {
		return nil, fmt.Errorf("gmm: %d observations for %d coefficients", N*E, NumCoef)
	}

	// Unit weights, rescaled so they average one
	omega := make([]float64, N)
	for i := range omega {
		omega[i] = 1
		if o.UseWeights && p.Weight != nil {
			omega[i] = float64(N) * p.UnitWeight(i)
		}
	}

	// 1. Cross-sectional period means of y and d
	ybar, dbar := periodMeans(p, omega)

	// 2. Instrument layout and the one-step H matrix
	layout, L := g.instrumentLayout(first, T)
	if L == 0 {
		return nil, fmt.Errorf("gmm: no instruments available")
	}
	H := mat.NewDense(E, E, nil)
	for e := 0; e < E; e++ {
		H.Set(e, e, 2)
		if e > 0 {
			H.Set(e, e-1, -1)
			H.Set(e-1, e, -1)
		}
	}

	// 3. Per-unit moment blocks
	Zx := mat.NewDense(L, NumCoef, nil)
	Zy := mat.NewDense(L, 1, nil)
	A1 := mat.NewDense(L, L, nil)
	unitZx := make([]*mat.Dense, N)
	unitZy := make([]*mat.Dense, N)

	Xi := mat.NewDense(E, NumCoef, nil)
	yi := mat.NewDense(E, 1, nil)
	for i := 0; i < N; i++ {
		Zi := mat.NewDense(E, L, nil)
		for e := 0; e < E; e++ {
			t := first + e
			cur, prev := p.At(i, t), p.At(i, t-1)

			yi.Set(e, 0, (cur.Y-ybar[t])-(prev.Y-ybar[t-1]))
			Xi.Set(e, 0, (cur.D-dbar[t])-(prev.D-dbar[t-1]))
			for k := 1; k <= panel.NumLags; k++ {
				Xi.Set(e, k, (cur.Lags[k-1]-ybar[t-k])-(prev.Lags[k-1]-ybar[t-1-k]))
			}

			for _, sl := range layout[e] {
				lv := p.At(i, sl.s)
				if sl.v == 0 {
					Zi.Set(e, sl.col, lv.Y-ybar[sl.s])
				} else {
					Zi.Set(e, sl.col, lv.D-dbar[sl.s])
				}
			}
		}

		zx := new(mat.Dense)
		zx.Mul(Zi.T(), Xi)
		zy := new(mat.Dense)
		zy.Mul(Zi.T(), yi)
		unitZx[i], unitZy[i] = zx, zy

		var zh, zhz mat.Dense
		zh.Mul(Zi.T(), H)
		zhz.Mul(&zh, Zi)

		var tmp mat.Dense
		tmp.Scale(omega[i], zx)
		Zx.Add(Zx, &tmp)
		tmp.Reset()
		tmp.Scale(omega[i], zy)
		Zy.Add(Zy, &tmp)
		zhz.Scale(omega[i], &zhz)
		A1.Add(A1, &zhz)
	}

	// 4. One-step estimate
	W1, err := pinv(A1)
	if err != nil {
		return nil, err
	}
	beta1, M1inv, err := solve(Zx, Zy, W1)
	if err != nil {
		return nil, err
	}
	S1 := momentCovariance(unitZx, unitZy, omega, beta1)

	// Robust one-step sandwich M^-1 (Zx'W S W Zx) M^-1
	var zw, zws, meat, left mat.Dense
	zw.Mul(Zx.T(), W1)
	zws.Mul(&zw, S1)
	meat.Mul(&zws, zw.T())
	left.Mul(M1inv, &meat)
	V1 := new(mat.Dense)
	V1.Mul(&left, M1inv)

	res := &Result{Instruments: L, Obs: N * E, Steps: o.Steps}

	if o.Steps == 1 {
		res.Coef = column(beta1)
		res.Cov = symmetrize(V1)
	} else {
		// 5. Two-step estimate with the optimal weighting matrix
		W2, err := pinv(S1)
		if err != nil {
			return nil, err
		}
		beta2, M2inv, err := solve(Zx, Zy, W2)
		if err != nil {
			return nil, err
		}
		D := windmeijer(unitZx, unitZy, omega, Zx, Zy, W2, M2inv, beta1, beta2)
		res.Coef = column(beta2)
		res.Cov = symmetrize(correctedCov(D, V1, M2inv))
	}

	for i, c := range res.Coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, ErrNotFinite
		}
		v := res.Cov.At(i, i)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, ErrNotFinite
		}
	}
	return res, nil
}

// windmeijer returns the K x K derivative of the two-step estimate with
// respect to the one-step estimate that enters the weighting matrix. Column k is
//
//	-M2inv Zx'W2 (dS/db_k) W2 (Zy - Zx beta2)
//
// with dS/db_k = -sum_i omega_i^2 (a_ik g_i' + g_i a_ik'), a_ik the k-th column
// of Z_i'X_i and g_i the one-step moment of unit i.
func windmeijer(unitZx, unitZy []*mat.Dense, omega []float64, Zx, Zy, W2, M2inv, beta1, beta2 *mat.Dense) *mat.Dense {
	L, K := Zx.Dims()

	var u2, wu, mz, left mat.Dense
	u2.Mul(Zx, beta2)
	u2.Sub(Zy, &u2)
	wu.Mul(W2, &u2)
	mz.Mul(M2inv, Zx.T())
	left.Mul(&mz, W2)

	g := make([]*mat.Dense, len(unitZx))
	for i := range unitZx {
		gi := new(mat.Dense)
		gi.Mul(unitZx[i], beta1)
		gi.Sub(unitZy[i], gi)
		g[i] = gi
	}

	D := mat.NewDense(K, K, nil)
	dS := mat.NewDense(L, L, nil)
	var outer, dsw, col mat.Dense
	for k := 0; k < K; k++ {
		dS.Zero()
		for i := range unitZx {
			outer.Reset()
			outer.Mul(unitZx[i].Slice(0, L, k, k+1), g[i].T())
			outer.Scale(-omega[i]*omega[i], &outer)
			dS.Add(dS, &outer)
			dS.Add(dS, outer.T())
		}
		dsw.Reset()
		dsw.Mul(dS, &wu)
		col.Reset()
		col.Mul(&left, &dsw)
		for j := 0; j < K; j++ {
			D.Set(j, k, -col.At(j, 0))
		}
	}
	return D
}

// correctedCov returns the finite-sample corrected two-step covariance
// V2 + D V2 + V2 D' + D V1 D'.
func correctedCov(D, V1, V2 *mat.Dense) *mat.Dense {
	var term, dv mat.Dense
	out := mat.DenseCopyOf(V2)
	term.Mul(D, V2)
	out.Add(out, &term)
	term.Reset()
	term.Mul(V2, D.T())
	out.Add(out, &term)
	dv.Mul(D, V1)
	term.Reset()
	term.Mul(&dv, D.T())
	out.Add(out, &term)
	return out
}

// periodMeans returns the omega-weighted cross-sectional means of y and d for every period.
func periodMeans(p *panel.Panel, omega []float64) ([]float64, []float64) {
	ybar := make([]float64, p.Periods)
	dbar := make([]float64, p.Periods)
	total := 0.0
	for _, w := range omega {
		total += w
	}
	for t := 0; t < p.Periods; t++ {
		for i := 0; i < p.Units; i++ {
			r := p.At(i, t)
			ybar[t] += omega[i] * r.Y
			dbar[t] += omega[i] * r.D
		}
		ybar[t] /= total
		dbar[t] /= total
	}
	return ybar, dbar
}

// solve returns beta = (Zx'W Zx)^-1 Zx'W Zy and the inverted bread (Zx'W Zx)^-1.
func solve(Zx, Zy, W *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	var zw, m, b mat.Dense
	zw.Mul(Zx.T(), W)
	m.Mul(&zw, Zx)
	b.Mul(&zw, Zy)

	minv := new(mat.Dense)
	if err := minv.Inverse(&m); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	beta := new(mat.Dense)
	beta.Mul(minv, &b)
	return beta, minv, nil
}

// momentCovariance returns sum_i omega_i^2 g_i g_i' with g_i = Z_i'y_i - Z_i'X_i beta.
func momentCovariance(unitZx, unitZy []*mat.Dense, omega []float64, beta *mat.Dense) *mat.Dense {
	L, _ := unitZy[0].Dims()
	S := mat.NewDense(L, L, nil)
	var gi, outer mat.Dense
	for i := range unitZx {
		gi.Reset()
		gi.Mul(unitZx[i], beta)
		gi.Sub(unitZy[i], &gi)
		outer.Reset()
		outer.Mul(&gi, gi.T())
		outer.Scale(omega[i]*omega[i], &outer)
		S.Add(S, &outer)
	}
	return S
}

// pinv returns the Moore-Penrose pseudo-inverse of a through its SVD.
func pinv(a *mat.Dense) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrSingular)
	}
	vals := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	tol := 0.0
	if len(vals) > 0 {
		tol = pinvTolerance * vals[0]
	}
	_, k := v.Dims()
	for j := 0; j < k; j++ {
		scale := 0.0
		if vals[j] > tol && vals[j] > 0 {
			scale = 1 / vals[j]
		}
		col := v.ColView(j).(*mat.VecDense)
		col.ScaleVec(scale, col)
	}

	out := new(mat.Dense)
	out.Mul(&v, u.T())
	return out, nil
}

func column(m *mat.Dense) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.At(i, 0)
	}
	return out
}

func symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}
