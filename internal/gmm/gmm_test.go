// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package gmm

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
	"github.com/shuowencs/Crossover-Jackknife/internal/testutil"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestInstrumentLayout(t *testing.T) {
	tests := []struct {
		maxLag   int
		collapse bool
		want     int
	}{
		// Periods 5, 6, 7: y lags 2..t and d lags 1..t
		{99, false, (4 + 5 + 6) + (5 + 6 + 7)},
		{99, true, 6 + 7},
		{3, false, 3 * (2 + 3)},
		{3, true, 2 + 3},
	}
	for i, test := range tests {
		opts := DefaultOptions()
		opts.MaxLagY, opts.MaxLagD, opts.Collapse = test.maxLag, test.maxLag, test.collapse
		layout, n := New(opts).instrumentLayout(5, 8)
		if n != test.want {
			t.Errorf("Test %d: %d instruments; want %d", i+1, n, test.want)
		}
		if len(layout) != 3 {
			t.Errorf("Test %d: %d equations; want 3", i+1, len(layout))
		}
		for e, slots := range layout {
			for _, sl := range slots {
				// Never an instrument dated after t-2 for y or t-1 for d
				if (sl.v == 0 && sl.s > 5+e-2) || (sl.v == 1 && sl.s > 5+e-1) || sl.col >= n {
					t.Errorf("Test %d: equation %d has invalid slot %+v", i+1, e, sl)
				}
			}
		}
	}
}

func TestOneStepRecoversNoiseFreeModel(t *testing.T) {
	truth := []float64{0.3, 0.3, 0.2, 0.1, 0.1}
	p := testutil.SyntheticPanel(t, testutil.PanelSpec{
		Units: 40, Periods: 10, Dem: truth[0], Lags: [4]float64{truth[1], truth[2], truth[3], truth[4]}, Sigma: 0, Seed: 9,
	})

	for _, collapse := range []bool{false, true} {
		opts := DefaultOptions()
		opts.Steps = 1
		opts.Collapse = collapse
		res, err := New(opts).Fit(p)
		require.NoError(t, err)

		require.Len(t, res.Coef, NumCoef)
		for k, c := range res.Coef {
			if !almostEqual(c, truth[k], 1e-6) {
				t.Errorf("collapse=%v: %s = %v; want %v", collapse, CoefNames[k], c, truth[k])
			}
			if se := math.Sqrt(res.Cov.At(k, k)); se > 1e-6 {
				t.Errorf("collapse=%v: se(%s) = %v; want ~0", collapse, CoefNames[k], se)
			}
		}
		assert.Equal(t, 40*5, res.Obs)
		assert.Equal(t, 1, res.Steps)
	}
}

func TestTwoStepRecoversNoisyModel(t *testing.T) {
	truth := []float64{0.5, 0.4, 0.2, 0.1, 0.05}
	p := testutil.SyntheticPanel(t, testutil.PanelSpec{
		Units: 400, Periods: 12, Dem: truth[0], Lags: [4]float64{truth[1], truth[2], truth[3], truth[4]}, Sigma: 0.1, Seed: 1,
	})

	opts := DefaultOptions()
	opts.Collapse = true
	res, err := New(opts).Fit(p)
	require.NoError(t, err)

	for k, c := range res.Coef {
		if !almostEqual(c, truth[k], 0.1) {
			t.Errorf("%s = %v; want %v +- 0.1", CoefNames[k], c, truth[k])
		}
		se := math.Sqrt(res.Cov.At(k, k))
		if !(se > 0 && se < 0.2) {
			t.Errorf("se(%s) = %v; want in (0, 0.2)", CoefNames[k], se)
		}
	}
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 10+11, res.Instruments)
}

func TestWeights(t *testing.T) {
	p := testutil.SyntheticPanel(t, testutil.PanelSpec{
		Units: 60, Periods: 10, Dem: 0.5, Lags: [4]float64{0.4, 0.2}, Sigma: 0.2, Seed: 4,
	})
	opts := DefaultOptions()
	opts.Collapse = true
	base, err := New(opts).Fit(p)
	require.NoError(t, err)

	// Ignored unless UseWeights is set
	w := p.Clone()
	w.Weight = make([]float64, len(w.Rows))
	for i := range w.Weight {
		w.Weight[i] = float64(1 + (i/w.Periods)%3)
	}
	ignored, err := New(opts).Fit(w)
	require.NoError(t, err)
	assert.Equal(t, base.Coef, ignored.Coef)

	// Equal weights reproduce the unweighted fit
	eq := p.Clone()
	eq.Weight = make([]float64, len(eq.Rows))
	for i := range eq.Weight {
		eq.Weight[i] = 1 / float64(eq.Units)
	}
	opts.UseWeights = true
	same, err := New(opts).Fit(eq)
	require.NoError(t, err)
	assert.InDeltaSlice(t, base.Coef, same.Coef, 1e-8)

	// Unequal weights move the estimates
	moved, err := New(opts).Fit(w)
	require.NoError(t, err)
	assert.NotEqual(t, base.Coef, moved.Coef)
}

func TestFitErrors(t *testing.T) {
	short := testutil.SyntheticPanel(t, testutil.PanelSpec{Units: 10, Periods: 5, Sigma: 1, Seed: 1})
	_, err := New(DefaultOptions()).Fit(short)
	assert.Error(t, err)

	p := testutil.SyntheticPanel(t, testutil.PanelSpec{Units: 10, Periods: 8, Sigma: 1, Seed: 1})
	opts := DefaultOptions()
	opts.Steps = 3
	_, err = New(opts).Fit(p)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.MinLagY = 1
	_, err = New(opts).Fit(p)
	assert.Error(t, err)

	var shapeErr *panel.DataShapeError
	_, err = New(DefaultOptions()).Fit(&panel.Panel{})
	assert.ErrorAs(t, err, &shapeErr)
}

func TestPinv(t *testing.T) {
	// Invertible matrix: pinv equals the inverse
	a := mat.NewDense(2, 2, []float64{4, 1, 2, 3})
	got, err := pinv(a)
	require.NoError(t, err)
	var inv mat.Dense
	require.NoError(t, inv.Inverse(a))
	assert.True(t, mat.EqualApprox(got, &inv, 1e-12))

	// Rank one: A A+ A = A
	r := mat.NewDense(2, 2, []float64{1, 2, 2, 4})
	rp, err := pinv(r)
	require.NoError(t, err)
	var ara, tmp mat.Dense
	tmp.Mul(r, rp)
	ara.Mul(&tmp, r)
	assert.True(t, mat.EqualApprox(&ara, r, 1e-12))
}

// The correction term D must match a numerical derivative of the two-step
// estimate with respect to the coefficients that build its weighting matrix.
func TestWindmeijerDerivative(t *testing.T) {
	const N, L, K = 40, 7, NumCoef
	rng := rand.New(rand.NewPCG(3, 5))

	unitZx := make([]*mat.Dense, N)
	unitZy := make([]*mat.Dense, N)
	omega := make([]float64, N)
	Zx := mat.NewDense(L, K, nil)
	Zy := mat.NewDense(L, 1, nil)
	for i := 0; i < N; i++ {
		zx := mat.NewDense(L, K, nil)
		zy := mat.NewDense(L, 1, nil)
		for r := 0; r < L; r++ {
			for c := 0; c < K; c++ {
				zx.Set(r, c, rng.NormFloat64())
			}
			zy.Set(r, 0, rng.NormFloat64())
		}
		unitZx[i], unitZy[i] = zx, zy
		omega[i] = 0.5 + rng.Float64()

		var tmp mat.Dense
		tmp.Scale(omega[i], zx)
		Zx.Add(Zx, &tmp)
		tmp.Reset()
		tmp.Scale(omega[i], zy)
		Zy.Add(Zy, &tmp)
	}

	twoStep := func(b *mat.Dense) (*mat.Dense, *mat.Dense, *mat.Dense) {
		W, err := pinv(momentCovariance(unitZx, unitZy, omega, b))
		require.NoError(t, err)
		beta, minv, err := solve(Zx, Zy, W)
		require.NoError(t, err)
		return beta, minv, W
	}

	I := mat.NewDense(L, L, nil)
	for j := 0; j < L; j++ {
		I.Set(j, j, 1)
	}
	beta1, _, err := solve(Zx, Zy, I)
	require.NoError(t, err)
	beta2, M2inv, W2 := twoStep(beta1)

	D := windmeijer(unitZx, unitZy, omega, Zx, Zy, W2, M2inv, beta1, beta2)

	const h = 1e-5
	for k := 0; k < K; k++ {
		up := mat.DenseCopyOf(beta1)
		up.Set(k, 0, up.At(k, 0)+h)
		down := mat.DenseCopyOf(beta1)
		down.Set(k, 0, down.At(k, 0)-h)
		bu, _, _ := twoStep(up)
		bd, _, _ := twoStep(down)
		for j := 0; j < K; j++ {
			want := (bu.At(j, 0) - bd.At(j, 0)) / (2 * h)
			if !almostEqual(D.At(j, k), want, 1e-6*(1+math.Abs(want))) {
				t.Errorf("Test %d: D[%d,%d] = %v; want %v", k+1, j, k, D.At(j, k), want)
			}
		}
	}
}

func TestCorrectedCov(t *testing.T) {
	tests := []struct {
		d, v1, v2 float64
		want      float64
	}{
		{0, 3, 2, 2},
		{0.5, 4, 2, 2 + 2*0.5*2 + 0.25*4},
		{-1, 1, 1, 1 - 2 + 1},
	}
	for i, test := range tests {
		got := correctedCov(
			mat.NewDense(1, 1, []float64{test.d}),
			mat.NewDense(1, 1, []float64{test.v1}),
			mat.NewDense(1, 1, []float64{test.v2}),
		)
		if !almostEqual(got.At(0, 0), test.want, 1e-12) {
			t.Errorf("Test %d: corrected = %v; want %v", i+1, got.At(0, 0), test.want)
		}
	}
}

// With as many instruments as coefficients the weighting matrix is irrelevant:
// both steps give the same estimate and the correction vanishes.
func TestTwoStepJustIdentified(t *testing.T) {
	p := testutil.SyntheticPanel(t, testutil.PanelSpec{
		Units: 200, Periods: 10, Dem: 0.5, Lags: [4]float64{0.4, 0.2, 0.1}, Sigma: 0.3, Seed: 12,
	})
	opts := Options{Steps: 1, MinLagY: 2, MaxLagY: 5, MinLagD: 1, MaxLagD: 1, Collapse: true}
	one, err := New(opts).Fit(p)
	require.NoError(t, err)
	opts.Steps = 2
	two, err := New(opts).Fit(p)
	require.NoError(t, err)

	require.Equal(t, NumCoef, two.Instruments)
	for k := 0; k < NumCoef; k++ {
		if !almostEqual(one.Coef[k], two.Coef[k], 1e-6*(1+math.Abs(one.Coef[k]))) {
			t.Errorf("Test %d: two-step %s = %v; one-step %v", k+1, CoefNames[k], two.Coef[k], one.Coef[k])
		}
		for j := 0; j < NumCoef; j++ {
			a, b := one.Cov.At(k, j), two.Cov.At(k, j)
			if !almostEqual(a, b, 1e-6*(1+math.Abs(a))) {
				t.Errorf("Test %d: cov[%d,%d] two-step %v; one-step %v", k+1, k, j, b, a)
			}
		}
	}
}
