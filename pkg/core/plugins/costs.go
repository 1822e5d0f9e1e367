package plugins

import (
	"fmt"
	"math"

	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

// =============================================================================
// CAPITAL
// =============================================================================

var (
	landCost     = value(TableNonDepreciable, "Cost of land ($ per acre)")
	landRequired = value(TableNonDepreciable, "Land required (acres)")
)

// CapitalCost rolls the capital cost groups up into direct, indirect,
// depreciable, non-depreciable and total capital. Depreciable capital is
// inflated by the combined inflator, non-depreciable capital by CI. A
// percent cell in the indirect group is that share of direct capital.
type CapitalCost struct{}

func (CapitalCost) Name() string { return "capital_cost" }

func (CapitalCost) Requires(cat params.Catalog) []plugin.Input {
	in := groupInputs(cat, GroupDirect)
	in = append(in, groupInputs(cat, GroupIndirect)...)
	in = append(in, groupInputs(cat, GroupOtherNonDep)...)
	return append(in,
		plugin.OptNum(landCost),
		plugin.OptNum(landRequired),
		plugin.OptNum(inflatorCombined),
		plugin.OptNum(inflatorCI),
	)
}

func (CapitalCost) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	combined := in.NumberOr(inflatorCombined, 1)
	ci := in.NumberOr(inflatorCI, 1)

	// 1. Direct capital
	direct, dTables, dSums := sumGroup(in, GroupDirect)

	// 2. Indirect capital, percent cells relative to direct
	indirectSums := make(map[string]float64)
	var iTables []string
	var indirect float64
	for _, p := range in.Paths() {
		if !isGroupValue(p, GroupIndirect) {
			continue
		}
		v := in.Number(p)
		if in.Percent(p) {
			v *= direct
		}
		if _, seen := indirectSums[p.Table]; !seen {
			iTables = append(iTables, p.Table)
		}
		indirectSums[p.Table] += v
		indirect += v
	}

	// 3. Land and other non-depreciable capital
	other, oTables, oSums := sumGroup(in, GroupOtherNonDep)
	nonDep := other
	if in.Has(landCost) && in.Has(landRequired) {
		nonDep += in.Number(landCost) * in.Number(landRequired)
	}
	if err := in.Err(); err != nil {
		return nil, err
	}

	depreciable := direct + indirect
	out := summedTotals(dTables, dSums)
	out = append(out, summedTotals(iTables, indirectSums)...)
	out = append(out, summedTotals(oTables, oSums)...)
	out = append(out,
		plugin.Emit(value(TableDirect, "Total"), direct),
		plugin.Emit(value(TableDirect, "Inflated"), direct*combined),
		plugin.Emit(value(TableIndirect, "Total"), indirect),
		plugin.Emit(value(TableIndirect, "Inflated"), indirect*combined),
		plugin.Emit(value(TableDepreciable, "Total"), depreciable),
		plugin.Emit(value(TableDepreciable, "Inflated"), depreciable*combined),
		plugin.Emit(value(TableNonDepreciable, "Total"), nonDep),
		plugin.Emit(value(TableNonDepreciable, "Inflated"), nonDep*ci),
		plugin.Emit(value(TableTotalCapital, "Total"), depreciable+nonDep),
		plugin.Emit(value(TableTotalCapital, "Inflated"), depreciable*combined+nonDep*ci),
	)
	return out, nil
}

// =============================================================================
// FIXED OPERATING
// =============================================================================

var (
	staff      = value(TableFixed, "staff")
	hourlyWage = value(TableFixed, "hourly labor cost")
)

// FixedOperatingCost is yearly labor, staff x hourly cost x 2080 hours
// inflated by the labor inflator, plus other fixed costs inflated by the
// combined inflator.
type FixedOperatingCost struct{}

func (FixedOperatingCost) Name() string { return "fixed_operating_cost" }

func (FixedOperatingCost) Requires(cat params.Catalog) []plugin.Input {
	return append(groupInputs(cat, GroupOtherFixed),
		plugin.Num(staff),
		plugin.Num(hourlyWage),
		plugin.OptNum(inflatorLabor),
		plugin.OptNum(inflatorCombined),
	)
}

func (FixedOperatingCost) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	uninflated := in.Number(staff) * in.Number(hourlyWage) * laborHoursPerYear
	labor := uninflated * in.NumberOr(inflatorLabor, 1)
	other, tables, sums := sumGroup(in, GroupOtherFixed)
	other *= in.NumberOr(inflatorCombined, 1)
	if err := in.Err(); err != nil {
		return nil, err
	}

	return append(summedTotals(tables, sums),
		plugin.Emit(value(TableFixed, "Labor Cost - Uninflated"), uninflated),
		plugin.Emit(value(TableFixed, "Labor Cost"), labor),
		plugin.Emit(value(TableFixed, "Total"), labor+other),
	), nil
}

// =============================================================================
// VARIABLE OPERATING
// =============================================================================

// VariableOperatingCost prices every utility per kg of hydrogen and scales
// it by yearly output. A utility cost given as a lookup file is read per
// calendar year (first column year, second column price), which makes the
// total a yearly series. Other variable costs are inflated by the chemical
// inflator.
type VariableOperatingCost struct{}

func (VariableOperatingCost) Name() string { return "variable_operating_cost" }

func (VariableOperatingCost) Requires(cat params.Catalog) []plugin.Input {
	in := timingInputs(cat)
	in = append(in, plugin.Num(outputPerYear), plugin.OptNum(inflatorChemical))
	for _, row := range cat.Rows(TableUtilities) {
		in = append(in,
			plugin.Any(params.P(TableUtilities, row, "Cost")),
			plugin.Num(params.P(TableUtilities, row, "Usage per kg H2")),
			plugin.OptNum(params.P(TableUtilities, row, "Price Conversion Factor")),
		)
	}
	return append(in, groupInputs(cat, GroupOtherVariable)...)
}

func (VariableOperatingCost) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	t, err := readTiming(in)
	if err != nil {
		return nil, err
	}
	n := t.timeline.Len()
	years := t.timeline.CalendarYears()

	// 1. Utilities cost per kg, per analysis year
	perKg := make([]float64, n)
	yearly := false
	for _, p := range in.Paths() {
		if p.Table != TableUtilities || p.Field != "Cost" {
			continue
		}
		usage := in.Number(params.P(TableUtilities, p.Row, "Usage per kg H2"))
		conv := in.NumberOr(params.P(TableUtilities, p.Row, "Price Conversion Factor"), 1)

		switch in.Kind(p) {
		case params.KindNumber, params.KindPercent:
			c := in.Number(p) * t.correction * conv * usage
			for i := range perKg {
				perKg[i] += c
			}
		case params.KindFileRef, params.KindText:
			prices, err := yearlyPrices(env, in.Text(p), years)
			if err != nil {
				return nil, fmt.Errorf("utility %s: %w", p.Row, err)
			}
			for i := range perKg {
				perKg[i] += prices[i] * t.correction * conv * usage
			}
			yearly = true
		default:
			return nil, fmt.Errorf("utility %s: cost must be a number or a price file, got %s", p.Row, in.Kind(p))
		}
	}

	// 2. Scale by output, add other costs
	output := in.Number(outputPerYear)
	other, tables, sums := sumGroup(in, GroupOtherVariable)
	other *= in.NumberOr(inflatorChemical, 1)
	if err := in.Err(); err != nil {
		return nil, err
	}

	utilities := make([]float64, n)
	total := make([]float64, n)
	for i := range perKg {
		utilities[i] = perKg[i] * output
		total[i] = utilities[i] + other
	}

	out := summedTotals(tables, sums)
	out = append(out, plugin.Emit(value(TableVariable, "Other"), other))
	if yearly {
		return append(out,
			plugin.EmitSeries(value(TableVariable, "Utilities"), utilities),
			plugin.EmitSeries(value(TableVariable, "Total"), total),
		), nil
	}
	return append(out,
		plugin.Emit(value(TableVariable, "Utilities"), utilities[0]),
		plugin.Emit(value(TableVariable, "Total"), total[0]),
	), nil
}

// yearlyPrices reads the price nearest each calendar year.
func yearlyPrices(env plugin.Env, name string, years []int) ([]float64, error) {
	if env.Tables == nil {
		return nil, fmt.Errorf("no lookup tables available for %s", name)
	}
	t, err := env.Tables.Table(name)
	if err != nil {
		return nil, err
	}
	keys, err := t.ColumnAt(0)
	if err != nil {
		return nil, err
	}
	prices, err := t.ColumnAt(1)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(years))
	for i, y := range years {
		j, err := lookup.NearestIndex(keys, float64(y))
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		out[i] = prices[j]
	}
	return out, nil
}

// =============================================================================
// REPLACEMENT
// =============================================================================

// Replacement lays planned replacements on the analysis years and adds the
// unplanned replacement group every year. A replacement due every F years
// is billed every ceil(F) years, scaled by ceil(F)/F, from the plant year
// nearest ceil(F). The series is inflated to nominal dollars.
type Replacement struct{}

func (Replacement) Name() string { return "replacement" }

func (Replacement) Requires(cat params.Catalog) []plugin.Input {
	in := timingInputs(cat)
	for _, row := range cat.Rows(TablePlanned) {
		in = append(in,
			plugin.Num(params.P(TablePlanned, row, "Cost ($)")),
			plugin.Num(params.P(TablePlanned, row, "Frequency (years)")),
		)
	}
	in = append(in, plugin.OptNum(inflatorCombined))
	return append(in, groupInputs(cat, GroupUnplannedReplace)...)
}

func (Replacement) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	t, err := readTiming(in)
	if err != nil {
		return nil, err
	}
	n := t.timeline.Len()
	plantYears := make([]float64, n)
	for i, y := range t.timeline.PlantYears() {
		plantYears[i] = float64(y)
	}
	combined := in.NumberOr(inflatorCombined, 1)

	// 1. Planned replacements
	yearly := make([]float64, n)
	for _, p := range in.Paths() {
		if p.Table != TablePlanned || p.Field != "Cost ($)" {
			continue
		}
		freq := in.Number(params.P(TablePlanned, p.Row, "Frequency (years)"))
		if err := in.Err(); err != nil {
			return nil, err
		}
		if freq <= 0 {
			return nil, fmt.Errorf("planned replacement %s: frequency must be positive, got %v", p.Row, freq)
		}
		every := math.Ceil(freq)
		cost := in.Number(p) * every / freq * combined
		first, err := lookup.NearestIndex(plantYears, every)
		if err != nil {
			return nil, fmt.Errorf("planned replacement %s: %w", p.Row, err)
		}
		step := n
		if every < float64(n) {
			step = int(every)
		}
		for k := first; k < n; k += step {
			yearly[k] += cost
		}
	}

	// 2. Unplanned replacements, every year
	unplanned, tables, sums := sumGroup(in, GroupUnplannedReplace)
	if err := in.Err(); err != nil {
		return nil, err
	}

	total := make([]float64, n)
	for i := range yearly {
		total[i] = (yearly[i] + unplanned) * t.correction * t.factor[i]
	}
	return append(summedTotals(tables, sums), plugin.EmitSeries(value(TableReplacement, "Total"), total)), nil
}
