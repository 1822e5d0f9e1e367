// Package plugins holds the built-in computation stages of a hydrogen
// production model: solar input, production technologies, plant scaling,
// cost roll-ups and the levelized cost itself.
package plugins

import (
	"fmt"
	"math"
	"strings"

	"hydrogen_tea/pkg/core/finance"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

// Table names shared between stages.
const (
	TableTechnical    = "Technical Operating Parameters and Specifications"
	TableFinancial    = "Financial Input Values"
	TableConstruction = "Construction"
	TableInflators    = "Inflators"
	TableScaling      = "Scaling"
	TableSolar        = "Solar Input"
	TableResults      = "Results"
	TableBreakdown    = "Cost Breakdown"

	TableDirect          = "Direct Capital Costs"
	TableIndirect        = "Indirect Capital Costs"
	TableDepreciable     = "Depreciable Capital Costs"
	TableNonDepreciable  = "Non-Depreciable Capital Costs"
	TableTotalCapital    = "Total Capital Costs"
	TableFixed           = "Fixed Operating Costs"
	TableVariable        = "Variable Operating Costs"
	TableUtilities       = "Utilities"
	TablePlanned         = "Planned Replacement"
	TableReplacement     = "Replacement"
	rowSummedTotal       = "Summed Total"
	acresPerSquareMeter  = 0.000247105
	laborHoursPerYear    = 2080.
	defaultCapitalExpo   = 0.78
	defaultLaborExponent = 0.25
)

// Group prefixes summed across every table whose name contains them.
const (
	GroupDirect           = "Direct Capital Cost"
	GroupIndirect         = "Indirect Capital Cost"
	GroupOtherNonDep      = "Other Non-Depreciable Capital Cost"
	GroupOtherFixed       = "Other Fixed Operating Cost"
	GroupOtherVariable    = "Other Variable Operating Cost"
	GroupUnplannedReplace = "Unplanned Replacement"
)

// rollups are written by stages and never summed back into a group.
var rollups = map[string]bool{
	TableDirect:         true,
	TableIndirect:       true,
	TableDepreciable:    true,
	TableNonDepreciable: true,
	TableTotalCapital:   true,
}

// Register adds every built-in stage to reg with its default position.
func Register(reg *plugin.Registry) error {
	builtins := []struct {
		name     string
		factory  plugin.Factory
		position int
	}{
		{"hourly_irradiation", func() plugin.Plugin { return HourlyIrradiation{} }, 0},
		{"inflation", func() plugin.Plugin { return Inflation{} }, 0},
		{"pv_electrolysis", func() plugin.Plugin { return PVElectrolysis{} }, 1},
		{"production_scaling", func() plugin.Plugin { return ProductionScaling{} }, 2},
		{"photocatalytic", func() plugin.Plugin { return Photocatalytic{} }, 3},
		{"capital_cost", func() plugin.Plugin { return CapitalCost{} }, 4},
		{"fixed_operating_cost", func() plugin.Plugin { return FixedOperatingCost{} }, 5},
		{"variable_operating_cost", func() plugin.Plugin { return VariableOperatingCost{} }, 5},
		{"replacement", func() plugin.Plugin { return Replacement{} }, 5},
		{"levelized_cost", func() plugin.Plugin { return LevelizedCost{} }, 10},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.factory, b.position); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in stage.
func NewRegistry() (*plugin.Registry, error) {
	reg := plugin.NewRegistry()
	if err := Register(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

// =============================================================================
// PATH HELPERS
// =============================================================================

func value(table, row string) params.Path { return params.P(table, row, "Value") }

func tech(row string) params.Path { return value(TableTechnical, row) }

func fin(row string) params.Path { return value(TableFinancial, row) }

func inflator(row string) params.Path { return value(TableInflators, row) }

var (
	inflatorCEPCI    = inflator("CEPCI")
	inflatorCI       = inflator("CI")
	inflatorCombined = inflator("Combined")
	inflatorLabor    = inflator("Labor")
	inflatorChemical = inflator("Chemical")
)

// groupTables lists the tables of a group in store order.
func groupTables(cat params.Catalog, group string) []string {
	var out []string
	for _, t := range cat.TablesContaining(group) {
		if !rollups[t] {
			out = append(out, t)
		}
	}
	return out
}

// groupInputs declares the Value field of every row of a group.
func groupInputs(cat params.Catalog, group string) []plugin.Input {
	var out []plugin.Input
	for _, t := range groupTables(cat, group) {
		for _, row := range cat.Rows(t) {
			p := value(t, row)
			if row == rowSummedTotal || !cat.Has(p) {
				continue
			}
			out = append(out, plugin.Num(p))
		}
	}
	return out
}

// sumGroup totals the group inputs per table. Tables are reported in the
// order their first input was declared.
func sumGroup(in *plugin.Inputs, group string) (total float64, tables []string, sums map[string]float64) {
	sums = make(map[string]float64)
	for _, p := range in.Paths() {
		if !isGroupValue(p, group) {
			continue
		}
		if _, seen := sums[p.Table]; !seen {
			tables = append(tables, p.Table)
		}
		v := in.Number(p)
		sums[p.Table] += v
		total += v
	}
	return total, tables, sums
}

func isGroupValue(p params.Path, group string) bool {
	return p.Field == "Value" && p.Row != rowSummedTotal && !rollups[p.Table] && strings.Contains(p.Table, group)
}

// summedTotals writes each table's sum back into the table.
func summedTotals(tables []string, sums map[string]float64) []plugin.Output {
	out := make([]plugin.Output, 0, len(tables))
	for _, t := range tables {
		out = append(out, plugin.Emit(value(t, rowSummedTotal), sums[t]))
	}
	return out
}

// =============================================================================
// TIMING
// =============================================================================

// timing is the analysis calendar the yearly cost series are laid on.
type timing struct {
	refYear      int
	startupYear  int
	plantLife    int
	inflation    float64
	construction []float64
	timeline     finance.Timeline
	// correction lifts reference-year dollars to the startup year
	correction float64
	// factor compounds inflation over each analysis year
	factor []float64
}

func timingInputs(cat params.Catalog) []plugin.Input {
	out := []plugin.Input{
		plugin.Num(fin("ref year")),
		plugin.Num(fin("startup year")),
		plugin.Num(fin("plant life")),
		plugin.Num(fin("inflation")),
	}
	for _, row := range cat.Rows(TableConstruction) {
		out = append(out, plugin.Num(value(TableConstruction, row)))
	}
	return out
}

func readTiming(in *plugin.Inputs) (timing, error) {
	t := timing{
		inflation: in.Number(fin("inflation")),
	}
	var err error
	if t.refYear, err = whole(in, fin("ref year")); err != nil {
		return t, err
	}
	if t.startupYear, err = whole(in, fin("startup year")); err != nil {
		return t, err
	}
	if t.plantLife, err = whole(in, fin("plant life")); err != nil {
		return t, err
	}
	if t.plantLife <= 0 {
		return t, fmt.Errorf("plant life must be positive, got %d", t.plantLife)
	}
	for _, p := range in.Paths() {
		if p.Table == TableConstruction {
			t.construction = append(t.construction, in.Number(p))
		}
	}
	if err := in.Err(); err != nil {
		return t, err
	}

	t.timeline = finance.Timeline{StartupYear: t.startupYear, ConstructionTime: len(t.construction), PlantLife: t.plantLife}
	t.correction = math.Pow(1+t.inflation, float64(t.startupYear-t.refYear))
	t.factor = finance.Compound(t.inflation, t.timeline.PlantYears())
	return t, nil
}

// whole reads an input that must hold an integer, such as a year.
func whole(in *plugin.Inputs, p params.Path) (int, error) {
	f := in.Number(p)
	if err := in.Err(); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: %v is not a whole number", p, f)
	}
	return int(f), nil
}
