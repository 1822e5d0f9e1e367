package ingest

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hydrogen_tea/pkg/core/params"
)

// =============================================================================
// TABLE EXTRACTION
// =============================================================================

// rawTable is a heading plus the text grid of the table(s) under it.
type rawTable struct {
	name   string
	header []string
	rows   [][]string
}

// extractTables walks headings and tables in document order. A table takes
// the name of the closest heading above it; tables without one are skipped.
func extractTables(doc *goquery.Document) []rawTable {
	var tables []rawTable
	heading := ""

	doc.Find("h1, h2, h3, h4, h5, h6, table").Each(func(_ int, sel *goquery.Selection) {
		if goquery.NodeName(sel) != "table" {
			heading = strings.TrimSpace(sel.Text())
			return
		}
		if heading == "" {
			return
		}

		var grid [][]string
		sel.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			var cells []string
			tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) > 0 {
				grid = append(grid, cells)
			}
		})
		if len(grid) == 0 {
			return
		}

		// A second table under the same heading appends to the first
		if n := len(tables); n > 0 && tables[n-1].name == heading {
			tables[n-1].rows = append(tables[n-1].rows, grid[1:]...)
			return
		}
		tables = append(tables, rawTable{name: heading, header: grid[0], rows: grid[1:]})
	})
	return tables
}

// =============================================================================
// COLUMN ROLES
// =============================================================================

// column describes how one header cell is used.
type column struct {
	index   int
	field   string
	paths   int // index of the paired path column, -1 if none
	combine int // index of the paired combine column, -1 if none
}

type layout struct {
	fields  []column
	comment []int
	unit    int
}

func isComment(h string) bool {
	switch strings.ToLower(h) {
	case "comment", "comments", "description", "full name":
		return true
	}
	return false
}

// pairedName returns the field a Path or Combine column belongs to.
func pairedName(h, suffix string) (string, bool) {
	lh := strings.ToLower(h)
	if lh == strings.ToLower(suffix) {
		return "Value", true
	}
	if strings.HasSuffix(lh, " "+strings.ToLower(suffix)) {
		return strings.TrimSpace(h[:len(h)-len(suffix)-1]), true
	}
	return "", false
}

func planColumns(header []string) layout {
	lay := layout{unit: -1}
	pathOf := map[string]int{}
	combineOf := map[string]int{}

	for i, h := range header {
		if i == 0 {
			continue
		}
		if f, ok := pairedName(h, "Path"); ok {
			pathOf[f] = i
		} else if f, ok := pairedName(h, "Combine"); ok {
			combineOf[f] = i
		}
	}

	for i, h := range header {
		if i == 0 || h == "" {
			continue
		}
		if _, ok := pairedName(h, "Path"); ok {
			continue
		}
		if _, ok := pairedName(h, "Combine"); ok {
			continue
		}
		switch strings.ToLower(h) {
		case "unit", "units":
			lay.unit = i
			continue
		}
		if isComment(h) {
			lay.comment = append(lay.comment, i)
			continue
		}
		col := column{index: i, field: h, paths: -1, combine: -1}
		if j, ok := pathOf[h]; ok {
			col.paths = j
		}
		if j, ok := combineOf[h]; ok {
			col.combine = j
		}
		lay.fields = append(lay.fields, col)
	}
	return lay
}

// =============================================================================
// STORE BUILDING
// =============================================================================

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (l *Loader) build(tables []rawTable) (*params.Store, error) {
	s := params.NewStore()
	for _, t := range tables {
		lay := planColumns(t.header)
		for _, row := range t.rows {
			name := cell(row, 0)
			if name == "" {
				continue
			}

			var notes []string
			for _, i := range lay.comment {
				if c := cell(row, i); c != "" {
					notes = append(notes, c)
				}
			}
			unit := cell(row, lay.unit)

			for _, col := range lay.fields {
				raw := cell(row, col.index)
				if raw == "" {
					continue
				}
				p := params.P(t.name, name, col.field)
				v, err := l.parseCell(raw, cell(row, col.paths), cell(row, col.combine))
				if err != nil {
					return nil, fmt.Errorf("%s: %w", p, err)
				}
				e := params.Entry{
					Path:    p,
					Raw:     v,
					Unit:    unit,
					Comment: strings.Join(notes, "; "),
					Origin:  params.OriginConfig,
				}
				if err := s.SetEntry(e); err != nil {
					return nil, err
				}
			}
		}
	}
	return s, nil
}

// parseCell builds a value from the value cell and its optional path and
// combine cells. A value holding paths is itself a reference.
func (l *Loader) parseCell(raw, pathCell, rule string) (params.Value, error) {
	if rule != "" && !l.Rules.Has(rule) {
		return params.Value{}, fmt.Errorf("unknown combination rule %q", rule)
	}

	var paths []params.Path
	var base *float64

	if strings.Contains(raw, ">") {
		ps, err := params.ParsePaths(raw)
		if err != nil {
			return params.Value{}, err
		}
		paths = ps
	} else if pathCell != "" {
		f, _, err := params.ParseNumber(raw)
		if err != nil {
			return params.Value{}, fmt.Errorf("value %q must be numeric when paired with paths", raw)
		}
		base = &f
	} else {
		return params.ParseLiteral(raw), nil
	}

	if pathCell != "" {
		ps, err := params.ParsePaths(pathCell)
		if err != nil {
			return params.Value{}, err
		}
		paths = append(paths, ps...)
	}
	if rule == "" && base == nil && len(paths) == 1 {
		return params.Ref(paths, nil, ""), nil
	}
	return params.Ref(paths, base, rule), nil
}
