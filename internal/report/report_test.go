// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/shuowencs/Crossover-Jackknife/internal/aggregate"
	"github.com/shuowencs/Crossover-Jackknife/internal/calibrate"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/montecarlo"
)

func sampleTables() []aggregate.Table {
	dem := aggregate.Table{Name: "dem", Truth: 0.8, N: 98, Skipped: 2}
	for k := range dem.Stats {
		dem.Stats[k] = float64(k) + 0.5
	}
	lr := aggregate.Table{Name: "lr", Truth: 20, N: 1, Skipped: 99}
	for k := range lr.Stats {
		lr.Stats[k] = math.NaN()
	}
	return []aggregate.Table{dem, lr}
}

func sampleMatrix() *montecarlo.Matrix {
	var r montecarlo.Record
	for j := range r {
		r[j] = 1.0/3.0 + float64(j)
	}
	return &montecarlo.Matrix{Records: []montecarlo.Record{r, montecarlo.MissingRecord()}}
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		x    float64
		want string
	}{
		{1, "1.000000"},
		{-0.1234567, "-0.123457"},
		{math.NaN(), "NA"},
	}
	for i, test := range tests {
		if got := formatFloat(test.x); got != test.want {
			t.Errorf("Test %d: formatFloat(%v) = %q; want %q", i+1, test.x, got, test.want)
		}
	}
	assert.Equal(t, "NA", formatExact(math.NaN()))
	assert.Equal(t, "0.1", formatExact(0.1))
}

func TestRenderTablesTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTables(&buf, sampleTables(), FormatTable))
	out := buf.String()
	for _, want := range []string{"STAT", "BIAS", "CP_BSE", "dem", "lr", "0.500000", "NA"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderTablesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTables(&buf, sampleTables(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"stat", "true", "n", "skipped", "bias", "sd", "rmse", "bse/sd", "ase/sd", "cp_bse", "cp_ase", "length_bse", "length_ase"}, records[0])
	assert.Equal(t, []string{"dem", "0.800000", "98", "2"}, records[1][:4])
	assert.Equal(t, "8.500000", records[1][12])
	assert.Equal(t, "NA", records[2][4])
}

func TestRenderTablesYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTables(&buf, sampleTables(), FormatYAML))

	var docs []tableDoc
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "dem", docs[0].Name)
	assert.Equal(t, 98, docs[0].N)
	assert.Equal(t, 0.5, docs[0].Stats["bias"])
	assert.Equal(t, 8.5, docs[0].Stats["length_ase"])
	assert.True(t, math.IsNaN(docs[1].Stats["rmse"]))
}

func TestRenderTablesUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderTables(&buf, sampleTables(), "xml"))
}

func TestWriteOutputs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, WriteOutputs(dir, sampleTables(), sampleMatrix()))

	for _, name := range []string{"summary.csv", "summary.yaml", "trials.csv"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, info.Size(), name)
	}

	f, err := os.Open(filepath.Join(dir, "trials.csv"))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "trial", records[0][0])
	assert.Equal(t, montecarlo.ColumnNames(), records[0][1:])
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "2", records[2][0])

	// Full precision round trip
	m := sampleMatrix()
	for j := 0; j < montecarlo.RecordLen; j++ {
		v, err := strconv.ParseFloat(records[1][1+j], 64)
		require.NoError(t, err)
		assert.Equal(t, m.Records[0][j], v)
		assert.Equal(t, "NA", records[2][1+j])
	}
}

func TestPrintParamsAndEstimate(t *testing.T) {
	var buf bytes.Buffer
	params := &calibrate.Params{Coef: [5]float64{0.8, 1.2, -0.2, -0.03, -0.02}, Sigma: 5.5, LongRun: 20, Obs: 100, DF: 60}
	PrintParams(&buf, params)
	out := buf.String()
	assert.Contains(t, out, "Observations:  100")
	assert.Contains(t, out, "5.500000")
	assert.Contains(t, out, "lag4")

	buf.Reset()
	v := estimator.Missing()
	v[0] = 0.75
	PrintEstimate(&buf, v)
	out = buf.String()
	assert.Contains(t, out, "0.750000")
	assert.Contains(t, out, "NA")
	assert.True(t, strings.Contains(out, "LR") || strings.Contains(out, "lr"))
}
