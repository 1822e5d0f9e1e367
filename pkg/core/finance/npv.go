// Package finance implements the discounted cash flow arithmetic behind the
// levelized cost of hydrogen.
package finance

import "math"

// NPV discounts values at rate, the first value undiscounted.
func NPV(rate float64, values []float64) float64 {
	var total float64
	factor := 1.0
	for _, v := range values {
		total += v / factor
		factor *= 1 + rate
	}
	return total
}

// Compound returns (1+rate)^years for each year offset.
func Compound(rate float64, years []int) []float64 {
	out := make([]float64, len(years))
	for i, y := range years {
		out[i] = math.Pow(1+rate, float64(y))
	}
	return out
}

// NominalRate combines a real rate with inflation: (1+r)(1+i) - 1.
func NominalRate(real, inflation float64) float64 {
	return (1+real)*(1+inflation) - 1
}

// CombinedTaxRate returns federal + state x (1 - federal).
func CombinedTaxRate(federal, state float64) float64 {
	return federal + state*(1-federal)
}

// Timeline lays out the analysis years: construction years come before
// startup and carry negative plant-year offsets.
type Timeline struct {
	StartupYear      int
	ConstructionTime int
	PlantLife        int
}

// Len is the number of analysis years.
func (t Timeline) Len() int { return t.ConstructionTime + t.PlantLife }

// StartIndex is the index of the first operating year.
func (t Timeline) StartIndex() int { return t.ConstructionTime }

// PlantYears runs from -ConstructionTime to PlantLife-1.
func (t Timeline) PlantYears() []int {
	out := make([]int, t.Len())
	for i := range out {
		out[i] = i - t.ConstructionTime
	}
	return out
}

// CalendarYears maps each analysis year to its calendar year.
func (t Timeline) CalendarYears() []int {
	out := t.PlantYears()
	for i := range out {
		out[i] += t.StartupYear
	}
	return out
}
