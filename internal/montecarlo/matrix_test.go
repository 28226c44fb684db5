// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package montecarlo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuowencs/Crossover-Jackknife/internal/bootstrap"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
)

func TestNewRecordLayout(t *testing.T) {
	var v estimator.Vector
	for k := range v {
		v[k] = float64(k)
	}
	var se bootstrap.SE
	for k := range se {
		se[k] = float64(100 + k)
	}

	r := NewRecord(v, se)
	assert.Equal(t, 23, RecordLen)
	for j := 0; j < IdxBootstrap; j++ {
		assert.Equal(t, float64(j), r[j])
	}
	for k := 0; k < bootstrap.NumTracked; k++ {
		assert.Equal(t, float64(100+k), r[IdxBootstrap+k])
	}
	assert.False(t, r.Failed())
}

func TestColumnNames(t *testing.T) {
	names := ColumnNames()
	require.Len(t, names, RecordLen)
	assert.Equal(t, "lr", names[estimator.IdxLongRun])
	assert.Equal(t, "se_lr", names[estimator.IdxLongRunSE])
	assert.Equal(t, "bse_lr", names[RecordLen-1])
	assert.Equal(t, "bse_"+names[0], names[IdxBootstrap])
}

func TestMatrixColumnsAndFailures(t *testing.T) {
	var v estimator.Vector
	m := &Matrix{Records: []Record{
		NewRecord(v, bootstrap.SE{}),
		MissingRecord(),
		NewRecord(v, bootstrap.Missing()),
	}}
	m.Records[0][3] = 1.5

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 1, m.Failed())

	col := m.Column(3)
	require.Len(t, col, 3)
	assert.Equal(t, 1.5, col[0])
	assert.True(t, math.IsNaN(col[1]))
	assert.Equal(t, 0.0, col[2])

	// Column is a copy
	col[0] = 9
	assert.Equal(t, 1.5, m.Records[0][3])

	for _, x := range MissingRecord() {
		assert.True(t, math.IsNaN(x))
	}
}
