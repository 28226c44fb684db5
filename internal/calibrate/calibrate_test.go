// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package calibrate

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/shuowencs/Crossover-Jackknife/internal/panel"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// twoWayPanel draws y = a[i] + g[t] + b*d + sum_k r_k*y[t-k] + sigma*e and
// returns it with the true index a[i] + g[t] + b*d.
func twoWayPanel(t *testing.T, N, T int, coef [5]float64, sigma float64, seed uint64) (*panel.Panel, [][]float64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(seed, 1))

	g := make([]float64, T)
	for s := range g {
		g[s] = 0.1 * rng.NormFloat64()
	}

	y := make([][]float64, N)
	d := make([][]float64, N)
	index := make([][]float64, N)
	for i := 0; i < N; i++ {
		a := rng.NormFloat64()
		y[i] = make([]float64, T)
		d[i] = make([]float64, T)
		index[i] = make([]float64, T)
		state := float64(rng.IntN(2))
		for s := 0; s < T; s++ {
			if rng.Float64() < 0.2 {
				state = 1 - state
			}
			d[i][s] = state
			if s < panel.NumLags {
				y[i][s] = a + rng.NormFloat64()
				index[i][s] = math.NaN()
				continue
			}
			index[i][s] = a + g[s] + coef[0]*state
			v := index[i][s] + sigma*rng.NormFloat64()
			for k := 1; k <= panel.NumLags; k++ {
				v += coef[k] * y[i][s-k]
			}
			y[i][s] = v
		}
	}

	p, err := panel.FromSeries(y, d)
	require.NoError(t, err)
	return p, index
}

func TestFitNoiseFree(t *testing.T) {
	truth := [5]float64{0.5, 0.4, 0.2, 0.1, 0.05}
	p, index := twoWayPanel(t, 30, 12, truth, 0, 1)

	params, err := Fit(p)
	require.NoError(t, err)

	for k := range truth {
		if !almostEqual(params.Coef[k], truth[k], 1e-6) {
			t.Errorf("Test %d: coef = %v; want %v", k+1, params.Coef[k], truth[k])
		}
	}
	assert.Less(t, params.Sigma, 1e-6)
	assert.Equal(t, 30*8, params.Obs)
	assert.Equal(t, 30*8-(5+30+7), params.DF)
	assert.InDelta(t, truth[0]/(1-0.75), params.LongRun, 1e-5)

	require.Len(t, params.Index, 30)
	for i := range params.Index {
		require.Len(t, params.Index[i], 12)
		for s := 0; s < 12; s++ {
			if s < panel.NumLags {
				assert.True(t, math.IsNaN(params.Index[i][s]))
				continue
			}
			if !almostEqual(params.Index[i][s], index[i][s], 1e-6) {
				t.Errorf("index[%d][%d] = %v; want %v", i, s, params.Index[i][s], index[i][s])
			}
		}
	}

	truthVec := params.Truth()
	require.Len(t, truthVec, 6)
	assert.Equal(t, params.LongRun, truthVec[5])
}

func TestFitNoisySigma(t *testing.T) {
	p, _ := twoWayPanel(t, 150, 14, [5]float64{0.5, 0.4, 0.2, 0.1, 0.05}, 0.1, 2)
	params, err := Fit(p)
	require.NoError(t, err)
	assert.InEpsilon(t, 0.1, params.Sigma, 0.2)
}

func TestFitTooShort(t *testing.T) {
	p, _ := twoWayPanel(t, 5, 5, [5]float64{}, 1, 3)
	_, err := Fit(p)
	var shapeErr *panel.DataShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestFitRejectsNonFinite(t *testing.T) {
	p, _ := twoWayPanel(t, 20, 10, [5]float64{0.5, 0.4, 0.2, 0.1, 0.05}, 0.1, 5)
	p.At(3, 7).Y = math.NaN()
	_, err := Fit(p)
	var shapeErr *panel.DataShapeError
	assert.ErrorAs(t, err, &shapeErr)

	tests := []struct {
		coef  [5]float64
		sigma float64
		ok    bool
	}{
		{[5]float64{0.5, 0.4, 0.2, 0.1, 0.05}, 0.1, true},
		{[5]float64{math.NaN(), 0.4, 0.2, 0.1, 0.05}, 0.1, false},
		{[5]float64{0.5, 0.4, math.Inf(1), 0.1, 0.05}, 0.1, false},
		{[5]float64{0.5, 0.4, 0.2, 0.1, 0.05}, math.NaN(), false},
		{[5]float64{0.5, 0.4, 0.2, 0.1, 0.05}, math.Inf(1), false},
	}
	for i, test := range tests {
		params := &Params{Coef: test.coef, Sigma: test.sigma}
		err := params.checkFinite()
		if test.ok && err != nil {
			t.Errorf("Test %d: unexpected error %v", i+1, err)
		}
		if !test.ok && !errors.Is(err, ErrNotFinite) {
			t.Errorf("Test %d: error %v; want ErrNotFinite", i+1, err)
		}
	}
}

func TestLeastSquaresFallback(t *testing.T) {
	// Duplicated column: X'X is singular, the SVD path returns a solution
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	Y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
	B, rank, err := leastSquares(X, Y)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	var fitted mat.Dense
	fitted.Mul(X, B)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, Y.At(i, 0), fitted.At(i, 0), 1e-10)
	}
	// Minimum-norm solution splits the effect evenly
	assert.InDelta(t, 1.0, B.At(0, 0), 1e-10)
	assert.InDelta(t, 1.0, B.At(1, 0), 1e-10)
}
