// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

package panel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Column names accepted for each field, matched case-insensitively.
var (
	unitColumns    = []string{"id", "unit", "country", "wbcode2"}
	timeColumns    = []string{"year", "time", "period"}
	outcomeColumns = []string{"lgdp", "y", "log_gdp"}
	treatColumns   = []string{"dem", "d", "democracy"}
)

// LoadCSV loads a balanced panel from a CSV file with a header row naming the
// unit, time, log GDP and democracy columns. Other columns are ignored.
func LoadCSV(path string) (*Panel, error) {
	// 1. Open file
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	p, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ReadCSV reads a balanced panel from CSV data.
func ReadCSV(in io.Reader) (*Panel, error) {
	r := csv.NewReader(in)
	r.TrimLeadingSpace = true

	// 2. Read header row and locate the columns we need
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := [4]int{}
	for i, names := range [][]string{unitColumns, timeColumns, outcomeColumns, treatColumns} {
		cols[i] = findColumn(header, names)
		if cols[i] < 0 {
			return nil, &DataShapeError{Reason: fmt.Sprintf("missing column, expected one of %v", names)}
		}
	}

	// 3. Read each data row
	var rows []Row
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}

		// Skip completely empty lines
		if len(record) == 1 && record[0] == "" {
			continue
		}

		unit, err := strconv.Atoi(strings.TrimSpace(record[cols[0]]))
		if err != nil {
			return nil, fmt.Errorf("parse unit at row %d (%q): %w", line, record[cols[0]], err)
		}
		year, err := strconv.Atoi(strings.TrimSpace(record[cols[1]]))
		if err != nil {
			return nil, fmt.Errorf("parse time at row %d (%q): %w", line, record[cols[1]], err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(record[cols[2]]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse outcome at row %d (%q): %w", line, record[cols[2]], err)
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(record[cols[3]]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse treatment at row %d (%q): %w", line, record[cols[3]], err)
		}
		if !finite(y) || !finite(d) {
			return nil, shapeErrorf("row %d: non-finite value (outcome %v, treatment %v)", line, y, d)
		}

		rows = append(rows, Row{Unit: unit, Time: year, Y: y, D: d})
	}

	if len(rows) == 0 {
		return nil, &DataShapeError{Reason: "no data rows"}
	}

	// 4. Sort, check balance and build the lag columns
	return FromRows(rows)
}

func findColumn(header []string, names []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}

// formatFloat uses the shortest representation that parses back to x.
func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteCSV writes the panel, including lag and weight columns, to path.
func WriteCSV(path string, p *Panel) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{"id", "year", "lgdp", "dem"}
	for k := 1; k <= NumLags; k++ {
		header = append(header, fmt.Sprintf("lag%d", k))
	}
	if p.Weight != nil {
		header = append(header, "weight")
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for i, r := range p.Rows {
		record := []string{
			strconv.Itoa(r.Unit),
			strconv.Itoa(r.Time),
			formatFloat(r.Y),
			formatFloat(r.D),
		}
		for _, l := range r.Lags {
			record = append(record, formatFloat(l))
		}
		if p.Weight != nil {
			record = append(record, formatFloat(p.Weight[i]))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
