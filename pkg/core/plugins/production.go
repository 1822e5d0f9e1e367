package plugins

import (
	"math"

	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

var (
	capacityFactor  = tech("Operating Capacity Factor (%)")
	maxGate         = tech("Maximum Output at Gate")
	newCapacity     = tech("New Plant Design Capacity (kg of H2/day)")
	scalingRatio    = tech("Scaling Ratio")
	capitalExponent = tech("Capital Scaling Exponent")
	laborExponent   = tech("Labor Scaling Exponent")

	designOutput  = tech("Design Output per Day")
	maxGateOutput = tech("Max Gate Output per Day")
	outputPerYear = tech("Output per Year")
	outputAtGate  = tech("Output per Year at Gate")

	capitalScaling = value(TableScaling, "Capital Scaling Factor")
	laborScaling   = value(TableScaling, "Labor Scaling Factor")
)

// ProductionScaling turns the plant design capacity into daily and yearly
// output. A new design capacity or an explicit scaling ratio scales the
// plant; capital and labor then scale with the ratio raised to their
// exponents (0.78 and 0.25 unless given).
type ProductionScaling struct{}

func (ProductionScaling) Name() string { return "production_scaling" }

func (ProductionScaling) Requires(params.Catalog) []plugin.Input {
	return []plugin.Input{
		plugin.Num(plantCapacity),
		plugin.Num(capacityFactor),
		plugin.OptNum(maxGate),
		plugin.OptNum(newCapacity),
		plugin.OptNum(scalingRatio),
		plugin.OptNum(capitalExponent),
		plugin.OptNum(laborExponent),
	}
}

func (ProductionScaling) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	capacity := in.Number(plantCapacity)
	cf := in.Number(capacityFactor)
	gate := in.NumberOr(maxGate, capacity)
	if err := in.Err(); err != nil {
		return nil, err
	}

	var out []plugin.Output
	if !in.Has(maxGate) {
		out = append(out, plugin.Emit(maxGate, gate))
	}

	design, gateDaily := capacity, gate
	ratio, scaled := 1.0, false
	switch {
	case in.Has(newCapacity):
		ratio, scaled = in.Number(newCapacity)/capacity, true
		out = append(out, plugin.Emit(scalingRatio, ratio))
	case in.Has(scalingRatio):
		ratio, scaled = in.Number(scalingRatio), true
	}
	if scaled {
		design, gateDaily = capacity*ratio, gate*ratio
		out = append(out,
			plugin.Emit(capitalScaling, math.Pow(ratio, in.NumberOr(capitalExponent, defaultCapitalExpo))),
			plugin.Emit(laborScaling, math.Pow(ratio, in.NumberOr(laborExponent, defaultLaborExponent))),
		)
	}

	out = append(out,
		plugin.Output{Path: designOutput, Value: params.Number(design), Unit: "kg/day"},
		plugin.Output{Path: maxGateOutput, Value: params.Number(gateDaily), Unit: "kg/day"},
		plugin.Output{Path: outputPerYear, Value: params.Number(design * 365 * cf), Unit: "kg/year"},
		plugin.Output{Path: outputAtGate, Value: params.Number(gateDaily * 365 * cf), Unit: "kg/year"},
	)
	return out, in.Err()
}
