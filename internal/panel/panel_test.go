// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package panel

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallPanel has 2 units x 6 periods with y = 10*unit + time.
func smallPanel(t *testing.T) *Panel {
	t.Helper()
	var rows []Row
	// Deliberately out of order
	for _, unit := range []int{20, 10} {
		for year := 2005; year >= 2000; year-- {
			rows = append(rows, Row{Unit: unit, Time: year, Y: float64(10*unit + year - 2000), D: float64(year % 2)})
		}
	}
	p, err := FromRows(rows)
	require.NoError(t, err)
	return p
}

func TestFromRowsSortsAndBuildsLags(t *testing.T) {
	p := smallPanel(t)
	assert.Equal(t, 2, p.Units)
	assert.Equal(t, 6, p.Periods)
	assert.Equal(t, 10, p.At(0, 0).Unit)
	assert.Equal(t, 2000, p.At(0, 0).Time)
	assert.Equal(t, 20, p.At(1, 5).Unit)
	assert.Equal(t, 2005, p.At(1, 5).Time)

	tests := []struct {
		unit, t int
		lags    [NumLags]float64
	}{
		{0, 5, [NumLags]float64{104, 103, 102, 101}},
		{1, 4, [NumLags]float64{203, 202, 201, 200}},
		{1, 2, [NumLags]float64{201, 200, math.NaN(), math.NaN()}},
	}
	for i, test := range tests {
		got := p.At(test.unit, test.t).Lags
		for k := range got {
			if math.IsNaN(test.lags[k]) {
				if !math.IsNaN(got[k]) {
					t.Errorf("Test %d: lag%d = %v; want NaN", i+1, k+1, got[k])
				}
				continue
			}
			if got[k] != test.lags[k] {
				t.Errorf("Test %d: lag%d = %v; want %v", i+1, k+1, got[k], test.lags[k])
			}
		}
	}
}

func TestFromRowsRejectsUnbalanced(t *testing.T) {
	tests := []struct {
		name string
		rows []Row
	}{
		{"missing period", []Row{{Unit: 1, Time: 1}, {Unit: 1, Time: 2}, {Unit: 2, Time: 1}}},
		{"different periods", []Row{{Unit: 1, Time: 1}, {Unit: 1, Time: 2}, {Unit: 2, Time: 1}, {Unit: 2, Time: 3}}},
		{"gap", []Row{{Unit: 1, Time: 1}, {Unit: 1, Time: 3}}},
		{"duplicate", []Row{{Unit: 1, Time: 1}, {Unit: 1, Time: 1}, {Unit: 2, Time: 1}, {Unit: 2, Time: 2}}},
		{"empty", nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := FromRows(test.rows)
			var shapeErr *DataShapeError
			assert.True(t, errors.As(err, &shapeErr), "got %v", err)
		})
	}
}

func TestValidateWeightLength(t *testing.T) {
	p := smallPanel(t)
	p.Weight = []float64{1, 2}
	var shapeErr *DataShapeError
	assert.ErrorAs(t, p.Validate(), &shapeErr)
}

func TestNonFiniteValues(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"nan outcome", "id,year,lgdp,dem\n1,1960,NaN,0\n1,1961,6,0\n"},
		{"inf outcome", "id,year,lgdp,dem\n1,1960,6,0\n1,1961,+Inf,0\n"},
		{"nan treatment", "id,year,lgdp,dem\n1,1960,6,nan\n1,1961,6,0\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(test.data))
			var shapeErr *DataShapeError
			assert.ErrorAs(t, err, &shapeErr)
		})
	}

	// Panels built in memory are checked by Validate
	p := smallPanel(t)
	p.At(1, 3).Y = math.NaN()
	var shapeErr *DataShapeError
	assert.ErrorAs(t, p.Validate(), &shapeErr)

	p = smallPanel(t)
	p.At(0, 2).D = math.Inf(-1)
	assert.ErrorAs(t, p.Validate(), &shapeErr)

	p = smallPanel(t)
	p.Weight = make([]float64, len(p.Rows))
	p.Weight[4] = math.NaN()
	assert.ErrorAs(t, p.Validate(), &shapeErr)

	// NaN lags at the start of every unit are expected
	assert.NoError(t, smallPanel(t).Validate())
}

func TestComputeLagsAfterReordering(t *testing.T) {
	p := smallPanel(t)
	// Swap the two units' blocks; lags must follow the new layout
	q := p.Clone()
	copy(q.Rows[:6], p.Rows[6:])
	copy(q.Rows[6:], p.Rows[:6])
	q.ComputeLags()
	assert.Equal(t, [NumLags]float64{204, 203, 202, 201}, q.At(0, 5).Lags)
	assert.Equal(t, [NumLags]float64{104, 103, 102, 101}, q.At(1, 5).Lags)
}

func TestCloneIsDeep(t *testing.T) {
	p := smallPanel(t)
	p.Weight = make([]float64, len(p.Rows))
	q := p.Clone()
	q.Rows[0].Y = -1
	q.Weight[0] = 7
	assert.NotEqual(t, -1.0, p.Rows[0].Y)
	assert.Equal(t, 0.0, p.Weight[0])
}

func TestUnitWeight(t *testing.T) {
	p := smallPanel(t)
	assert.Equal(t, 1.0, p.UnitWeight(1))
	p.Weight = []float64{.25, .25, .25, .25, .25, .25, .75, .75, .75, .75, .75, .75}
	assert.Equal(t, .75, p.UnitWeight(1))
}

func TestFromSeries(t *testing.T) {
	y := [][]float64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}
	d := [][]float64{{0, 0, 1, 1, 1}, {1, 1, 1, 1, 0}}
	p, err := FromSeries(y, d)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Units)
	assert.Equal(t, 5, p.Periods)
	assert.Equal(t, []float64{6, 7, 8, 9, 10}, p.Outcome(1))
	assert.Equal(t, 2, p.At(1, 0).Unit)
	assert.Equal(t, 5, p.At(1, 4).Time)
	assert.Equal(t, [NumLags]float64{9, 8, 7, 6}, p.At(1, 4).Lags)

	_, err = FromSeries(y, d[:1])
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	data := `country,year,lgdp,dem,extra
2,1961,7.5,1,x
1,1960,6.0,0,x
1,1961,6.1,0,x
2,1960,7.4,1,x
`
	p, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Units)
	assert.Equal(t, 2, p.Periods)
	assert.Equal(t, 7.5, p.At(1, 1).Y)
	assert.Equal(t, 6.0, p.At(0, 1).Lags[0])
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing column", "id,year,lgdp\n1,1960,6\n"},
		{"bad number", "id,year,lgdp,dem\n1,1960,abc,0\n"},
		{"no rows", "id,year,lgdp,dem\n"},
		{"unbalanced", "id,year,lgdp,dem\n1,1960,6,0\n1,1961,6,0\n2,1960,7,1\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(test.data))
			assert.Error(t, err)
		})
	}
}

func TestWriteAndLoadCSV(t *testing.T) {
	p := smallPanel(t)
	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, WriteCSV(path, p))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "id,year,lgdp,dem,lag1,lag2,lag3,lag4\n"))

	q, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, p.Units, q.Units)
	assert.Equal(t, p.Periods, q.Periods)
	for i := range p.Rows {
		assert.InDelta(t, p.Rows[i].Y, q.Rows[i].Y, 1e-6)
		assert.Equal(t, p.Rows[i].Unit, q.Rows[i].Unit)
	}

	// Values that need more than six decimals survive exactly
	r := smallPanel(t)
	r.At(0, 0).Y = 1.0 / 3
	r.At(1, 5).Y = 7.123456789012345e-9
	r.At(1, 2).D = 0.1 + 0.2
	r.Weight = make([]float64, len(r.Rows))
	for i := range r.Weight {
		r.Weight[i] = 1.0 / 7
	}
	exact := filepath.Join(t.TempDir(), "exact.csv")
	require.NoError(t, WriteCSV(exact, r))
	back, err := LoadCSV(exact)
	require.NoError(t, err)
	for i := range r.Rows {
		if r.Rows[i].Y != back.Rows[i].Y || r.Rows[i].D != back.Rows[i].D {
			t.Errorf("Test %d: read back (%v, %v); want (%v, %v)", i+1, back.Rows[i].Y, back.Rows[i].D, r.Rows[i].Y, r.Rows[i].D)
		}
	}

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
