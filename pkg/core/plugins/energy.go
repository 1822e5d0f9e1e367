package plugins

import (
	"fmt"
	"math"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

var (
	solarHourly = value(TableSolar, "Hourly (kWh/m2)")
	solarMean   = value(TableSolar, "Mean solar input (kWh/m2/day)")
	solarPeak   = value(TableSolar, "Peak hourly input (kWh/m2)")
)

// =============================================================================
// HOURLY IRRADIATION
// =============================================================================

// HourlyIrradiation condenses a year of hourly irradiation into the mean
// daily solar input. The lookup table holds one row per hour; a single
// column is read as the irradiation, otherwise the second column is.
type HourlyIrradiation struct{}

func (HourlyIrradiation) Name() string { return "hourly_irradiation" }

func (HourlyIrradiation) Requires(params.Catalog) []plugin.Input {
	return []plugin.Input{plugin.Str(solarHourly)}
}

func (HourlyIrradiation) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	name := in.Text(solarHourly)
	if err := in.Err(); err != nil {
		return nil, err
	}
	hourly, err := irradiationColumn(env, name)
	if err != nil {
		return nil, err
	}

	var total, peak float64
	for _, v := range hourly {
		if math.IsNaN(v) {
			continue
		}
		total += v
		peak = math.Max(peak, v)
	}
	return []plugin.Output{
		{Path: solarMean, Value: params.Number(total / 365), Unit: "kWh/m2/day"},
		{Path: solarPeak, Value: params.Number(peak), Unit: "kWh/m2"},
	}, nil
}

func irradiationColumn(env plugin.Env, name string) ([]float64, error) {
	if env.Tables == nil {
		return nil, fmt.Errorf("no lookup tables available for %s", name)
	}
	t, err := env.Tables.Table(name)
	if err != nil {
		return nil, err
	}
	col := 1
	if t.Width() == 1 {
		col = 0
	}
	return t.ColumnAt(col)
}

// =============================================================================
// PV + ELECTROLYSIS
// =============================================================================

var (
	pvPower       = value("Photovoltaic", "Nominal Power (kW)")
	pvCapex       = value("Photovoltaic", "CAPEX ($/kW)")
	pvDerating    = value("Photovoltaic", "Derating")
	pvLand        = value("Photovoltaic", "Land Area Requirement (m2/kW)")
	elPower       = value("Electrolyzer", "Nominal Power (kW)")
	elCapex       = value("Electrolyzer", "CAPEX ($/kW)")
	elDemand      = value("Electrolyzer", "Power Demand (kWh/kg H2)")
	elStackLife   = value("Electrolyzer", "Stack Lifetime (years)")
	elStackCost   = value("Electrolyzer", "Stack Replacement Cost (%)")
	plantCapacity = tech("Plant Design Capacity (kg of H2/day)")
)

// PVElectrolysis sizes a photovoltaic array feeding an electrolyzer. The
// array delivers its nominal power times the mean daily solar input, in
// peak-sun hours; the electrolyzer converts up to its own capacity.
type PVElectrolysis struct{}

func (PVElectrolysis) Name() string { return "pv_electrolysis" }

func (PVElectrolysis) Requires(params.Catalog) []plugin.Input {
	return []plugin.Input{
		plugin.Num(pvPower),
		plugin.Num(pvCapex),
		plugin.OptNum(pvDerating),
		plugin.OptNum(pvLand),
		plugin.Num(elPower),
		plugin.Num(elCapex),
		plugin.Num(elDemand),
		plugin.OptNum(elStackLife),
		plugin.OptNum(elStackCost),
		plugin.Num(solarMean),
	}
}

func (PVElectrolysis) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	pvKW := in.Number(pvPower)
	elKW := in.Number(elPower)
	demand := in.Number(elDemand)
	derating := in.NumberOr(pvDerating, 1)
	sun := in.Number(solarMean)
	if err := in.Err(); err != nil {
		return nil, err
	}
	if demand <= 0 || elKW <= 0 {
		return nil, fmt.Errorf("electrolyzer power and power demand must be positive, got %v kW and %v kWh/kg", elKW, demand)
	}

	// 1. Energy balance for an average day
	pvDaily := pvKW * sun * derating
	used := math.Min(pvDaily, elKW*24)
	h2PerDay := used / demand

	pvCost := pvKW * in.Number(pvCapex)
	elCost := elKW * in.Number(elCapex)
	out := []plugin.Output{
		{Path: plantCapacity, Value: params.Number(h2PerDay), Unit: "kg/day"},
		plugin.Emit(value("Direct Capital Costs - PV", "PV CAPEX ($)"), pvCost),
		plugin.Emit(value("Direct Capital Costs - Electrolyzer", "Electrolyzer CAPEX ($)"), elCost),
		plugin.Emit(value("Electrolyzer", "Capacity Factor"), used/(elKW*24)),
	}

	// 2. Stack replacement, when a stack lifetime is declared
	if in.Has(elStackLife) {
		share := in.NumberOr(elStackCost, 1)
		out = append(out,
			plugin.Emit(params.P(TablePlanned, "Electrolyzer Stack Replacement", "Cost ($)"), elCost*share),
			plugin.Emit(params.P(TablePlanned, "Electrolyzer Stack Replacement", "Frequency (years)"), in.Number(elStackLife)),
		)
	}

	// 3. Land for the array
	if in.Has(pvLand) {
		acres := pvKW * in.Number(pvLand) * acresPerSquareMeter
		out = append(out, plugin.Emit(value(TableNonDepreciable, "Land required (acres)"), acres))
	}
	return out, in.Err()
}
