package finance

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"hydrogen_tea/pkg/core/lookup"
)

// macrsPercent holds IRS half-year convention rates by recovery period.
var macrsPercent = map[int][]float64{
	3:  {33.33, 44.45, 14.81, 7.41},
	5:  {20, 32, 19.2, 11.52, 11.52, 5.76},
	7:  {14.29, 24.49, 17.49, 12.49, 8.93, 8.92, 8.93, 4.46},
	10: {10, 18, 14.4, 11.52, 9.22, 7.37, 6.55, 6.55, 6.56, 6.55, 3.28},
	15: {5, 9.5, 8.55, 7.7, 6.93, 6.23, 5.9, 5.9, 5.91, 5.9, 5.91, 5.9, 5.91, 5.9, 5.91, 2.95},
	20: {3.75, 7.219, 6.677, 6.177, 5.713, 5.285, 4.888, 4.522, 4.462, 4.461,
		4.462, 4.461, 4.462, 4.461, 4.462, 4.461, 4.462, 4.461, 4.462, 4.461, 2.231},
}

// MACRSPeriods lists the built-in recovery periods in ascending order.
func MACRSPeriods() []int {
	out := make([]int, 0, len(macrsPercent))
	for k := range macrsPercent {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// MACRSSchedule returns the yearly depreciation fractions of the recovery
// period nearest to length.
func MACRSSchedule(length float64) []float64 {
	periods := MACRSPeriods()
	keys := make([]float64, len(periods))
	for i, p := range periods {
		keys[i] = float64(p)
	}
	idx, _ := lookup.NearestIndex(keys, length)
	return fractions(macrsPercent[periods[idx]])
}

// MACRSFromTable reads a schedule from a table laid out as the published
// MACRS sheet: the header row holds recovery periods after the first
// column, each column holds percentages by year. Zero cells are dropped.
func MACRSFromTable(t *lookup.Table, length float64) ([]float64, error) {
	cols := t.Columns()
	if len(cols) < 2 {
		return nil, fmt.Errorf("table %s: expected recovery periods in header", t.Name())
	}
	keys := make([]float64, 0, len(cols)-1)
	for _, c := range cols[1:] {
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return nil, fmt.Errorf("table %s: header %q is not a period", t.Name(), c)
		}
		keys = append(keys, f)
	}
	idx, err := lookup.NearestIndex(keys, length)
	if err != nil {
		return nil, err
	}
	col, err := t.ColumnAt(idx + 1)
	if err != nil {
		return nil, err
	}
	var pct []float64
	for _, v := range col {
		if v != 0 && !math.IsNaN(v) {
			pct = append(pct, v)
		}
	}
	return fractions(pct), nil
}

func fractions(pct []float64) []float64 {
	out := make([]float64, len(pct))
	for i, p := range pct {
		out[i] = p / 100
	}
	return out
}

// Depreciate spreads each year's depreciable capital over the schedule
// starting in that year. Charges falling beyond the horizon are booked in
// the final year so the total is conserved.
func Depreciate(annualCapital, schedule []float64) []float64 {
	n := len(annualCapital)
	charge := make([]float64, n)
	if n == 0 {
		return charge
	}
	for j, capital := range annualCapital {
		if capital == 0 {
			continue
		}
		for k, frac := range schedule {
			t := j + k
			if t >= n {
				t = n - 1
			}
			charge[t] += capital * frac
		}
	}
	return charge
}
