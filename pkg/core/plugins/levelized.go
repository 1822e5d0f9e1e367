package plugins

import (
	"fmt"

	"hydrogen_tea/pkg/core/finance"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

var (
	depreciableInflated = value(TableDepreciable, "Inflated")
	nonDepInflated      = value(TableNonDepreciable, "Inflated")
	replacementTotal    = value(TableReplacement, "Total")
	fixedTotal          = value(TableFixed, "Total")
	variableTotal       = value(TableVariable, "Total")
	depreciationTable   = fin("depreciation table")

	H2Cost        = value(TableResults, "H2 Cost")
	H2CostNominal = value(TableResults, "H2 Cost Nominal")
	CashFlowNPV   = value(TableResults, "Cash Flow NPV")
)

// financial rows read as plain numbers, in Financials field order
var financialRows = []string{
	"irr", "equity", "interest",
	"startup time", "startup cost fixed", "startup cost variable", "startup revenues",
	"decommissioning", "salvage", "state tax", "federal tax", "working capital",
	"depreciation length",
}

// LevelizedCost runs the discounted cash flow and reports the real and
// nominal levelized cost of hydrogen plus the per-kg cost breakdown.
type LevelizedCost struct{}

func (LevelizedCost) Name() string { return "levelized_cost" }

func (LevelizedCost) Requires(cat params.Catalog) []plugin.Input {
	in := timingInputs(cat)
	for _, row := range financialRows {
		in = append(in, plugin.Num(fin(row)))
	}
	return append(in,
		plugin.OptStr(depreciationTable),
		plugin.Num(depreciableInflated),
		plugin.OptNum(nonDepInflated),
		plugin.OptSeries(replacementTotal),
		plugin.Num(fixedTotal),
		plugin.OptSeries(variableTotal),
		plugin.Num(outputAtGate),
	)
}

func (LevelizedCost) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	t, err := readTiming(in)
	if err != nil {
		return nil, err
	}
	if len(t.construction) == 0 {
		return nil, fmt.Errorf("the %s table needs at least one year", TableConstruction)
	}
	startupTime, err := whole(in, fin("startup time"))
	if err != nil {
		return nil, err
	}
	n := t.timeline.Len()

	// 1. Financial assumptions
	f := finance.Financials{
		RefYear:             t.refYear,
		StartupYear:         t.startupYear,
		PlantLife:           t.plantLife,
		StartupTime:         startupTime,
		Inflation:           t.inflation,
		IRR:                 in.Number(fin("irr")),
		Equity:              in.Number(fin("equity")),
		Interest:            in.Number(fin("interest")),
		StartupCostFixed:    in.Number(fin("startup cost fixed")),
		StartupCostVariable: in.Number(fin("startup cost variable")),
		StartupRevenues:     in.Number(fin("startup revenues")),
		Decommissioning:     in.Number(fin("decommissioning")),
		Salvage:             in.Number(fin("salvage")),
		StateTax:            in.Number(fin("state tax")),
		FederalTax:          in.Number(fin("federal tax")),
		WorkingCapital:      in.Number(fin("working capital")),
		DepreciationLength:  in.Number(fin("depreciation length")),
	}

	// 2. Costs and output
	c := finance.CostInputs{
		Construction:          t.construction,
		DepreciableCapital:    in.Number(depreciableInflated),
		NonDepreciableCapital: in.NumberOr(nonDepInflated, 0),
		FixedOperating:        in.Number(fixedTotal),
		OutputPerYear:         in.Number(outputAtGate),
	}
	if in.Has(replacementTotal) {
		c.Replacement = in.Series(replacementTotal, n)
	}
	if in.Has(variableTotal) {
		c.VariableOperating = in.Series(variableTotal, n)
	}
	if in.Has(depreciationTable) {
		name := in.Text(depreciationTable)
		if err := in.Err(); err != nil {
			return nil, err
		}
		if env.Tables == nil {
			return nil, fmt.Errorf("no lookup tables available for %s", name)
		}
		tbl, err := env.Tables.Table(name)
		if err != nil {
			return nil, err
		}
		if c.Depreciation, err = finance.MACRSFromTable(tbl, f.DepreciationLength); err != nil {
			return nil, err
		}
	}
	if err := in.Err(); err != nil {
		return nil, err
	}

	// 3. Discounted cash flow
	res, err := finance.Levelized(f, c)
	if err != nil {
		return nil, err
	}

	out := []plugin.Output{
		{Path: H2Cost, Value: params.Number(res.H2Cost), Unit: "$/kg"},
		{Path: H2CostNominal, Value: params.Number(res.H2CostNominal), Unit: "$/kg"},
		plugin.Emit(CashFlowNPV, res.CashFlowNPV),
	}
	for _, ct := range res.Contributions {
		out = append(out, plugin.Output{Path: value(TableBreakdown, ct.Name), Value: params.Number(ct.Value), Unit: "$/kg"})
	}
	return out, nil
}
