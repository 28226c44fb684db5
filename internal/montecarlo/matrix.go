// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package montecarlo

import (
	"math"

	"github.com/shuowencs/Crossover-Jackknife/internal/bootstrap"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
)

// RecordLen is the width of a trial record: the estimate vector followed by
// the bootstrap standard errors.
const RecordLen = estimator.VectorLen + bootstrap.NumTracked

// IdxBootstrap is the offset of the bootstrap standard errors in a Record.
const IdxBootstrap = estimator.VectorLen

// Record is one Monte Carlo trial. Missing values are NaN.
type Record [RecordLen]float64

// NewRecord concatenates an estimate vector and its bootstrap standard errors.
func NewRecord(v estimator.Vector, se bootstrap.SE) Record {
	var r Record
	copy(r[:IdxBootstrap], v[:])
	copy(r[IdxBootstrap:], se[:])
	return r
}

// MissingRecord returns a record with every column missing.
func MissingRecord() Record {
	var r Record
	for i := range r {
		r[i] = math.NaN()
	}
	return r
}

// Failed reports whether the trial's point estimation failed.
func (r Record) Failed() bool {
	return math.IsNaN(r[0])
}

// ColumnNames labels the columns of a Record.
func ColumnNames() []string {
	return append(estimator.Names(), bootstrap.Names()...)
}

// Matrix is the ordered collection of trial records, row i being trial i.
// It is not modified after the driver returns it.
type Matrix struct {
	Records []Record
	// BootstrapFailed counts failed bootstrap replications over all trials
	BootstrapFailed int
}

// Len returns the number of trials.
func (m *Matrix) Len() int { return len(m.Records) }

// Column returns a copy of column j over all trials.
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, len(m.Records))
	for i, r := range m.Records {
		out[i] = r[j]
	}
	return out
}

// Failed returns the number of trials whose point estimation failed.
func (m *Matrix) Failed() int {
	n := 0
	for _, r := range m.Records {
		if r.Failed() {
			n++
		}
	}
	return n
}
