package plugins

import (
	"fmt"
	"math"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

const (
	tableBaggies  = "Reactor Baggies"
	tableCatalyst = "Catalyst"

	// Faraday constant, C/mol
	faraday = 96485.33212
	// thermodynamic water splitting potential, V
	waterSplitting = 1.229
	joulesPerKWh   = 3.6e6
)

var (
	baggieTop        = value(tableBaggies, "Cost Material Top ($/m2)")
	baggieBottom     = value(tableBaggies, "Cost Material Bottom ($/m2)")
	baggiePorts      = value(tableBaggies, "Number of ports")
	baggiePortCost   = value(tableBaggies, "Cost of port ($)")
	baggieOther      = value(tableBaggies, "Other Costs ($)")
	baggieMarkup     = value(tableBaggies, "Markup factor")
	baggieLength     = value(tableBaggies, "Length (m)")
	baggieWidth      = value(tableBaggies, "Width (m)")
	baggieHeight     = value(tableBaggies, "Height (m)")
	baggieExtraLand  = value(tableBaggies, "Additional land area (%)")
	baggieLifetime   = value(tableBaggies, "Lifetime (years)")
	catalystPrice    = value(tableCatalyst, "Cost per kg ($)")
	catalystConc     = value(tableCatalyst, "Concentration (g/L)")
	catalystLifetime = value(tableCatalyst, "Lifetime (years)")
	sth              = value("Solar-to-Hydrogen Efficiency", "STH (%)")
)

// Photocatalytic models water splitting in floating plastic baggie
// reactors. Each baggie yields its insolation times the solar-to-hydrogen
// efficiency, at two electrons of 1.229 eV per H2 molecule; enough
// baggies are built to meet the design output.
type Photocatalytic struct{}

func (Photocatalytic) Name() string { return "photocatalytic" }

func (Photocatalytic) Requires(params.Catalog) []plugin.Input {
	return []plugin.Input{
		plugin.Num(designOutput),
		plugin.Num(baggieTop),
		plugin.Num(baggieBottom),
		plugin.Num(baggiePorts),
		plugin.Num(baggiePortCost),
		plugin.Num(baggieOther),
		plugin.Num(baggieMarkup),
		plugin.Num(baggieLength),
		plugin.Num(baggieWidth),
		plugin.Num(baggieHeight),
		plugin.Num(baggieExtraLand),
		plugin.Num(baggieLifetime),
		plugin.Num(catalystPrice),
		plugin.Num(catalystConc),
		plugin.Num(catalystLifetime),
		plugin.Num(sth),
		plugin.Num(solarMean),
	}
}

func (Photocatalytic) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	length, width, height := in.Number(baggieLength), in.Number(baggieWidth), in.Number(baggieHeight)
	if err := in.Err(); err != nil {
		return nil, err
	}

	// 1. Hydrogen per baggie and day
	area := length * width
	insolation := area * in.Number(solarMean) * joulesPerKWh
	molH2 := insolation * in.Number(sth) / (2 * waterSplitting * faraday)
	kgPerBaggie := 2 * molH2 / 1000
	if kgPerBaggie <= 0 {
		return nil, fmt.Errorf("baggies produce no hydrogen (area %v m2, STH %v)", area, in.Number(sth))
	}

	// 2. Baggie count and cost
	material := area * (in.Number(baggieTop) + in.Number(baggieBottom))
	ports := in.Number(baggiePorts) * in.Number(baggiePortCost)
	perBaggie := in.Number(baggieMarkup) * (material + ports + in.Number(baggieOther))
	count := math.Ceil(in.Number(designOutput) / kgPerBaggie)
	baggiesCost := count * perBaggie

	// 3. Water volume and catalyst
	liters := area * height * 1000 * count
	catalystKg := liters * in.Number(catalystConc) / 1000
	catalystCost := catalystKg * in.Number(catalystPrice)

	// 4. Land
	collection := count * area
	acres := collection * (1 + in.Number(baggieExtraLand)) * acresPerSquareMeter

	if err := in.Err(); err != nil {
		return nil, err
	}
	return []plugin.Output{
		plugin.Emit(value(TableNonDepreciable, "Land required (acres)"), acres),
		plugin.Emit(value(TableNonDepreciable, "Solar Collection Area (m2)"), collection),
		plugin.Emit(params.P(TablePlanned, "Planned Replacement Catalyst", "Cost ($)"), catalystCost),
		plugin.Emit(params.P(TablePlanned, "Planned Replacement Catalyst", "Frequency (years)"), in.Number(catalystLifetime)),
		plugin.Emit(params.P(TablePlanned, "Planned Replacement Baggie", "Cost ($)"), baggiesCost),
		plugin.Emit(params.P(TablePlanned, "Planned Replacement Baggie", "Frequency (years)"), in.Number(baggieLifetime)),
		plugin.Emit(value("Direct Capital Costs - Reactor Baggies", "Baggie Cost ($)"), baggiesCost),
		plugin.Emit(value("Direct Capital Costs - Photocatalyst", "Catalyst Cost ($)"), catalystCost),
		plugin.Emit(value(tableBaggies, "Number"), count),
		plugin.Emit(value(tableCatalyst, "Amount (kg)"), catalystKg),
		{Path: value("Water Volume", "Volume (liters)"), Value: params.Number(liters), Unit: "L"},
	}, in.Err()
}
