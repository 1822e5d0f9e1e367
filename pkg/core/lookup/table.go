// Package lookup loads delimited numeric tables (irradiation profiles,
// price indices, depreciation schedules) once and shares them read-only.
package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrNoSuchTable is returned by Provider.Get for names never loaded.
var ErrNoSuchTable = errors.New("lookup: no such table")

// Table is an immutable grid of numbers with an optional header.
type Table struct {
	name    string
	columns []string
	rows    [][]float64
}

// NewTable copies rows into a new table. Every row must match the header
// width; without a header the first row sets the width.
func NewTable(name string, columns []string, rows [][]float64) (*Table, error) {
	width := len(columns)
	if width == 0 && len(rows) > 0 {
		width = len(rows[0])
	}
	t := &Table{name: name, columns: append([]string(nil), columns...)}
	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("table %s: row %d has %d cells, expected %d", name, i, len(r), width)
		}
		t.rows = append(t.rows, append([]float64(nil), r...))
	}
	return t, nil
}

// Parse reads tab- or comma-separated text. Lines starting with '#' are
// skipped. A first record holding any non-numeric cell is the header.
// Empty cells parse as NaN.
func Parse(name string, r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}

	cr := csv.NewReader(strings.NewReader(string(raw)))
	cr.Comma = sniffDelimiter(string(raw))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %s: no data", name)
	}

	var columns []string
	if !numericRecord(records[0]) {
		for _, c := range records[0] {
			columns = append(columns, strings.TrimSpace(c))
		}
		records = records[1:]
	}

	rows := make([][]float64, 0, len(records))
	for i, rec := range records {
		row := make([]float64, len(rec))
		for j, cell := range rec {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				row[j] = math.NaN()
				continue
			}
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("table %s: row %d column %d: %w", name, i+1, j+1, err)
			}
			row[j] = f
		}
		rows = append(rows, row)
	}
	return NewTable(name, columns, rows)
}

func sniffDelimiter(s string) rune {
	line := s
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		line = s[:i]
	}
	if strings.ContainsRune(line, '\t') {
		return '\t'
	}
	return ','
}

func numericRecord(rec []string) bool {
	for _, c := range rec {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return false
		}
	}
	return true
}

// Name returns the key the table was loaded under.
func (t *Table) Name() string { return t.name }

// Columns returns a copy of the header; nil for headerless tables.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Width returns the number of columns.
func (t *Table) Width() int {
	if len(t.columns) > 0 {
		return len(t.columns)
	}
	if len(t.rows) > 0 {
		return len(t.rows[0])
	}
	return 0
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	if i < 0 || i >= len(t.rows) {
		return nil
	}
	return append([]float64(nil), t.rows[i]...)
}

func (t *Table) index(name string) (int, error) {
	for i, c := range t.columns {
		if strings.EqualFold(c, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("table %s: no column %q", t.name, name)
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	i, err := t.index(name)
	if err != nil {
		return nil, err
	}
	return t.ColumnAt(i)
}

// ColumnAt returns a copy of column i. Negative i counts from the end.
func (t *Table) ColumnAt(i int) ([]float64, error) {
	w := t.Width()
	if i < 0 {
		i += w
	}
	if i < 0 || i >= w {
		return nil, fmt.Errorf("table %s: column %d out of range", t.name, i)
	}
	out := make([]float64, len(t.rows))
	for r, row := range t.rows {
		out[r] = row[i]
	}
	return out, nil
}

// Nearest returns the row whose keyCol value is closest to x. The key
// column must be sorted ascending; ties go to the higher row.
func (t *Table) Nearest(keyCol string, x float64) ([]float64, error) {
	keys, err := t.Column(keyCol)
	if err != nil {
		return nil, err
	}
	i, err := nearestIndex(keys, x)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", t.name, err)
	}
	return t.Row(i), nil
}

func nearestIndex(keys []float64, x float64) (int, error) {
	if len(keys) == 0 {
		return 0, fmt.Errorf("empty key column")
	}
	i := sort.SearchFloat64s(keys, x)
	if i > 0 && (i == len(keys) || math.Abs(x-keys[i-1]) < math.Abs(x-keys[i])) {
		return i - 1, nil
	}
	return i, nil
}

// NearestIndex returns the index in ascending keys closest to x.
func NearestIndex(keys []float64, x float64) (int, error) { return nearestIndex(keys, x) }

// Interpolate linearly interpolates valCol at x over the ascending keyCol.
// Values outside the key range are clamped to the end rows.
func (t *Table) Interpolate(keyCol, valCol string, x float64) (float64, error) {
	keys, err := t.Column(keyCol)
	if err != nil {
		return 0, err
	}
	vals, err := t.Column(valCol)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, fmt.Errorf("table %s: no rows", t.name)
	}
	if x <= keys[0] {
		return vals[0], nil
	}
	n := len(keys)
	if x >= keys[n-1] {
		return vals[n-1], nil
	}
	i := sort.SearchFloat64s(keys, x)
	if keys[i] == x {
		return vals[i], nil
	}
	x0, x1 := keys[i-1], keys[i]
	y0, y1 := vals[i-1], vals[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0), nil
}
