// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package report renders summary tables, trial matrices and fits for people
// (terminal tables) and for other programs (CSV and YAML).
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/shuowencs/Crossover-Jackknife/internal/aggregate"
	"github.com/shuowencs/Crossover-Jackknife/internal/calibrate"
	"github.com/shuowencs/Crossover-Jackknife/internal/estimator"
	"github.com/shuowencs/Crossover-Jackknife/internal/gmm"
)

// Output formats.
const (
	FormatTable = "table"
	FormatCSV   = "csv"
	FormatYAML  = "yaml"
)

// Formats lists the supported output formats.
func Formats() []string {
	return []string{FormatTable, FormatCSV, FormatYAML}
}

// RenderTables writes summary tables to w in the given format.
func RenderTables(w io.Writer, tables []aggregate.Table, format string) error {
	switch format {
	case FormatCSV:
		return writeTablesCSV(w, tables)
	case FormatYAML:
		return WriteYAML(w, tables)
	case FormatTable, "":
		renderTables(w, tables)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderTables(w io.Writer, tables []aggregate.Table) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"stat", "true", "n", "skipped"}
	for _, name := range aggregate.StatNames {
		header = append(header, name)
	}
	t.AppendHeader(header)

	for _, tab := range tables {
		row := table.Row{tab.Name, formatFloat(tab.Truth), tab.N, tab.Skipped}
		for _, v := range tab.Stats {
			row = append(row, formatFloat(v))
		}
		t.AppendRow(row)
	}
	t.Render()
}

// tableDoc is the YAML shape of one summary table.
type tableDoc struct {
	Name    string             `yaml:"name"`
	Truth   float64            `yaml:"true"`
	N       int                `yaml:"n"`
	Skipped int                `yaml:"skipped"`
	Stats   map[string]float64 `yaml:"stats"`
}

// WriteYAML writes the tables as a YAML sequence.
func WriteYAML(w io.Writer, tables []aggregate.Table) error {
	docs := make([]tableDoc, len(tables))
	for i, tab := range tables {
		docs[i] = tableDoc{Name: tab.Name, Truth: tab.Truth, N: tab.N, Skipped: tab.Skipped, Stats: map[string]float64{}}
		for j, name := range aggregate.StatNames {
			docs[i].Stats[name] = tab.Stats[j]
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return err
	}
	return enc.Close()
}

// PrintParams prints the calibrated parameters.
func PrintParams(w io.Writer, params *calibrate.Params) {
	fmt.Fprintln(w, "Calibrated fixed-effects model")
	fmt.Fprintf(w, "  Observations:  %d\n", params.Obs)
	fmt.Fprintf(w, "  Residual df:   %d\n", params.DF)
	fmt.Fprintf(w, "  Sigma:         %.6f\n", params.Sigma)
	fmt.Fprintf(w, "  Long-run:      %.6f\n", params.LongRun)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"coef", "estimate"})
	for k, name := range gmm.CoefNames {
		t.AppendRow(table.Row{name, formatFloat(params.Coef[k])})
	}
	t.Render()
}

// PrintEstimate prints a GMM estimate vector with standard errors.
func PrintEstimate(w io.Writer, v estimator.Vector) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"coef", "estimate", "se"})
	for k, name := range gmm.CoefNames {
		t.AppendRow(table.Row{name, formatFloat(v[k]), formatFloat(v[estimator.IdxSE+k])})
	}
	t.AppendFooter(table.Row{"lr", formatFloat(v[estimator.IdxLongRun]), formatFloat(v[estimator.IdxLongRunSE])})
	t.Render()
}

// formatFloat prints missing values as NA.
func formatFloat(x float64) string {
	if math.IsNaN(x) {
		return "NA"
	}
	return strconv.FormatFloat(x, 'f', 6, 64)
}
