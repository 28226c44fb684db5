// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shuowencs/Crossover-Jackknife/internal/aggregate"
	"github.com/shuowencs/Crossover-Jackknife/internal/montecarlo"
)

// WriteTablesCSV writes all summary tables to one CSV file.
// Columns: stat, true, n, skipped, then the nine statistics.
func WriteTablesCSV(path string, tables []aggregate.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return writeTablesCSV(file, tables)
}

func writeTablesCSV(w io.Writer, tables []aggregate.Table) error {
	writer := csv.NewWriter(w)

	header := []string{"stat", "true", "n", "skipped"}
	header = append(header, aggregate.StatNames[:]...)
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, tab := range tables {
		record := []string{
			tab.Name,
			formatFloat(tab.Truth),
			fmt.Sprintf("%d", tab.N),
			fmt.Sprintf("%d", tab.Skipped),
		}
		for _, v := range tab.Stats {
			record = append(record, formatFloat(v))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteMatrixCSV writes the trial matrix, one row per trial with the trial
// index first. Missing values are written as NA.
func WriteMatrixCSV(path string, m *montecarlo.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := append([]string{"trial"}, montecarlo.ColumnNames()...)
	if err := writer.Write(header); err != nil {
		return err
	}

	record := make([]string, 1+montecarlo.RecordLen)
	for i, r := range m.Records {
		record[0] = fmt.Sprintf("%d", i+1)
		for j, v := range r {
			record[1+j] = formatExact(v)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatExact keeps full precision so a written matrix reads back unchanged.
func formatExact(x float64) string {
	if math.IsNaN(x) {
		return "NA"
	}
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteOutputs writes summary.csv, summary.yaml and trials.csv under dir.
func WriteOutputs(dir string, tables []aggregate.Table, m *montecarlo.Matrix) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := WriteTablesCSV(filepath.Join(dir, "summary.csv"), tables); err != nil {
		return fmt.Errorf("write summary csv: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, "summary.yaml"))
	if err != nil {
		return err
	}
	defer file.Close()
	if err := WriteYAML(file, tables); err != nil {
		return fmt.Errorf("write summary yaml: %w", err)
	}

	if err := WriteMatrixCSV(filepath.Join(dir, "trials.csv"), m); err != nil {
		return fmt.Errorf("write trial matrix: %w", err)
	}
	return nil
}
