package finance

import (
	"errors"
	"fmt"
	"math"
)

// Financials encapsulates the plant-level financial assumptions
type Financials struct {
	RefYear     int
	StartupYear int
	PlantLife   int
	StartupTime int // years of reduced operation after startup

	Inflation float64 // e.g. 0.019
	IRR       float64 // after tax real internal rate of return
	Equity    float64 // share of depreciable capital financed by equity
	Interest  float64 // interest rate on debt

	StartupCostFixed    float64 // fraction of fixed costs during startup
	StartupCostVariable float64 // fraction of variable costs during startup
	StartupRevenues     float64 // fraction of revenues during startup

	Decommissioning float64 // fraction of depreciable capital
	Salvage         float64 // fraction of total capital
	StateTax        float64
	FederalTax      float64
	WorkingCapital  float64 // fraction of yearly change in operating costs

	DepreciationLength float64
}

// CostInputs holds what the plant costs and produces. Capital figures are
// in current-year dollars; yearly series span the whole timeline.
type CostInputs struct {
	Construction          []float64 // share of capital spent per construction year
	DepreciableCapital    float64
	NonDepreciableCapital float64
	Replacement           []float64 // optional, per analysis year
	FixedOperating        float64   // per operating year
	VariableOperating     []float64 // per analysis year
	OutputPerYear         float64   // kg of H2 at gate
	Depreciation          []float64 // optional schedule; MACRS by DepreciationLength when nil
}

// Contribution is one line of the per-kg cost breakdown.
type Contribution struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Result holds the levelized cost outputs
type Result struct {
	H2Cost        float64            `json:"h2_cost"`
	H2CostNominal float64            `json:"h2_cost_nominal"`
	Contributions []Contribution     `json:"contributions"`
	NPV           map[string]float64 `json:"npv"`
	Years         []int              `json:"years"`
	CashFlow      []float64          `json:"cash_flow"` // after tax, post depreciation
	CashFlowNPV   float64            `json:"cash_flow_npv"`
}

// ErrNoSales is returned when the plant sells no hydrogen over its life.
var ErrNoSales = errors.New("finance: discounted hydrogen sales are zero")

func (f Financials) validate() error {
	if f.PlantLife <= 0 {
		return fmt.Errorf("plant life must be positive, got %d", f.PlantLife)
	}
	if f.StartupTime < 0 {
		return fmt.Errorf("startup time must not be negative, got %d", f.StartupTime)
	}
	if f.IRR <= -1 || f.Inflation <= -1 {
		return fmt.Errorf("rates must exceed -100%%")
	}
	return nil
}

// Levelized computes the price per kg at which the after-tax cash flow
// discounted at the nominal IRR is zero.
func Levelized(fin Financials, c CostInputs) (*Result, error) {
	if err := fin.validate(); err != nil {
		return nil, err
	}
	if len(c.Construction) > 0 {
		var share float64
		for _, s := range c.Construction {
			share += s
		}
		if math.Abs(share-1) > 1e-6 {
			return nil, fmt.Errorf("construction shares sum to %v, expected 1", share)
		}
	}

	tl := Timeline{StartupYear: fin.StartupYear, ConstructionTime: len(c.Construction), PlantLife: fin.PlantLife}
	n := tl.Len()
	start := tl.StartIndex()
	startupEnd := start + fin.StartupTime
	if startupEnd > n {
		startupEnd = n
	}

	series := func(name string, v []float64) ([]float64, error) {
		if v == nil {
			return make([]float64, n), nil
		}
		if len(v) != n {
			return nil, fmt.Errorf("%s has %d years, expected %d", name, len(v), n)
		}
		return append([]float64(nil), v...), nil
	}
	replacement, err := series("replacement", c.Replacement)
	if err != nil {
		return nil, err
	}
	variableBase, err := series("variable operating costs", c.VariableOperating)
	if err != nil {
		return nil, err
	}

	factor := Compound(fin.Inflation, tl.PlantYears())
	correction := math.Pow(1+fin.Inflation, float64(fin.StartupYear-fin.RefYear))
	nominal := NominalRate(fin.IRR, fin.Inflation)
	npv := make(map[string]float64)

	// 1. Equity-financed depreciable capital during construction
	depCapital := c.DepreciableCapital * correction
	annualEquity := make([]float64, n)
	var equityTotal float64
	for k, share := range c.Construction {
		annualEquity[k] = share * fin.Equity * depCapital * factor[k]
		equityTotal += annualEquity[k]
	}
	npv["initial_equity_depreciable_capital"] = NPV(nominal, annualEquity[:len(c.Construction)])

	// 2. Non-depreciable capital, spent up front
	nonDep := c.NonDepreciableCapital * correction
	annualNonDep := make([]float64, n)
	annualNonDep[0] = nonDep * factor[0]
	npv["non_depreciable_capital_costs"] = annualNonDep[0]

	// 3. Replacement
	for i := 0; i < start; i++ {
		replacement[i] = 0
	}
	npv["replacement_costs"] = NPV(nominal, replacement)

	// 4. Operating costs with startup multipliers
	fixed := make([]float64, n)
	variable := make([]float64, n)
	for i := range fixed {
		fixed[i] = c.FixedOperating * correction * factor[i]
		variable[i] = variableBase[i] * factor[i]
		if i < startupEnd {
			fixed[i] *= fin.StartupCostFixed
			variable[i] *= fin.StartupCostVariable
		}
		if i < start {
			fixed[i], variable[i] = 0, 0
		}
	}
	npv["fixed_operating_costs"] = NPV(nominal, fixed)
	npv["variable_operating_costs"] = NPV(nominal, variable)

	// 5. Salvage and decommissioning at end of life
	salvage := make([]float64, n)
	decommissioning := make([]float64, n)
	salvage[n-1] = (depCapital + nonDep) * fin.Salvage * factor[n-1]
	decommissioning[n-1] = depCapital * fin.Decommissioning * factor[n-1]
	npv["salvage"] = NPV(nominal, salvage)
	npv["decommissioning"] = NPV(nominal, decommissioning)

	// 6. Working capital reserve follows changes in operating costs
	reserve := make([]float64, n)
	if n > 1 {
		var drawn float64
		for i := 1; i < n-1; i++ {
			reserve[i] = -fin.WorkingCapital * ((variable[i] + fixed[i]) - (variable[i-1] + fixed[i-1]))
			drawn += reserve[i]
		}
		reserve[n-1] = -drawn
	}
	npv["working_capital_reserve"] = -NPV(nominal, reserve)

	// 7. Constant debt repaid at end of life
	debt := depCapital * (1 - fin.Equity) * factor[0]
	interest := make([]float64, n)
	principal := make([]float64, n)
	for i := range interest {
		interest[i] = debt * fin.Interest
	}
	principal[n-1] = debt
	npv["interest"] = NPV(nominal, interest)
	npv["principal_payment"] = NPV(nominal, principal)

	// 8. Depreciation of initial and replacement capital
	schedule := c.Depreciation
	if schedule == nil {
		schedule = MACRSSchedule(fin.DepreciationLength)
	}
	depreciable := append([]float64(nil), replacement...)
	if start < n {
		depreciable[start] += debt + equityTotal
	}
	charge := Depreciate(depreciable, schedule)
	npv["depreciation_charge"] = NPV(nominal, charge)

	// 9. Sales, discounted at the real rate
	sales := make([]float64, n)
	for i := start; i < n; i++ {
		sales[i] = c.OutputPerYear
		if i < startupEnd {
			sales[i] *= fin.StartupRevenues
		}
	}
	npv["h2_sales"] = NPV(fin.IRR, sales)
	if npv["h2_sales"] == 0 {
		return nil, ErrNoSales
	}

	// 10. Levelized cost
	tax := CombinedTaxRate(fin.FederalTax, fin.StateTax)
	if tax >= 1 {
		return nil, fmt.Errorf("combined tax rate %v leaves no after-tax sales", tax)
	}
	capital := npv["initial_equity_depreciable_capital"] + npv["non_depreciable_capital_costs"] +
		npv["replacement_costs"] + npv["working_capital_reserve"]
	operating := (-npv["salvage"] + npv["decommissioning"] + npv["fixed_operating_costs"] +
		npv["variable_operating_costs"] + npv["interest"]) * (1 - tax)
	lift := math.Pow(1+fin.Inflation, float64(tl.ConstructionTime))

	res := &Result{NPV: npv, Years: tl.CalendarYears()}
	res.H2CostNominal = (capital - npv["depreciation_charge"]*tax + npv["principal_payment"] + operating) /
		(npv["h2_sales"] * (1 - tax)) * lift
	res.H2Cost = res.H2CostNominal / correction

	// 11. Income, taxes and the closing cash flow
	revenue := make([]float64, n)
	preDep := make([]float64, n)
	taxes := make([]float64, n)
	afterTax := make([]float64, n)
	res.CashFlow = make([]float64, n)
	for i := range revenue {
		revenue[i] = sales[i] * res.H2CostNominal * factor[i]
		preDep[i] = revenue[i] + salvage[i] - decommissioning[i] - fixed[i] - variable[i] - interest[i]
		taxes[i] = (preDep[i] - charge[i]) * tax
		afterTax[i] = preDep[i] - taxes[i]
		res.CashFlow[i] = -annualEquity[i] - replacement[i] + reserve[i] - annualNonDep[i] +
			preDep[i] - principal[i] - taxes[i]
	}
	npv["revenue"] = NPV(nominal, revenue)
	npv["pre_depreciation_income"] = NPV(nominal, preDep)
	npv["taxes"] = NPV(nominal, taxes)
	npv["after_tax_income"] = NPV(nominal, afterTax)
	res.CashFlowNPV = NPV(nominal, res.CashFlow)

	perKg := func(v float64) float64 { return v / npv["h2_sales"] * lift / correction }
	res.Contributions = []Contribution{
		{"Initial equity depreciable capital", perKg(npv["initial_equity_depreciable_capital"])},
		{"Non depreciable capital", perKg(npv["non_depreciable_capital_costs"])},
		{"Replacement costs", perKg(npv["replacement_costs"])},
		{"Salvage", -perKg(npv["salvage"])},
		{"Decommissioning", perKg(npv["decommissioning"])},
		{"Fixed operating costs", perKg(npv["fixed_operating_costs"])},
		{"Variable operating costs", perKg(npv["variable_operating_costs"])},
		{"Working capital reserve", perKg(npv["working_capital_reserve"])},
		{"Interest", perKg(npv["interest"])},
		{"Principal payment", perKg(npv["principal_payment"])},
		{"Taxes", perKg(npv["taxes"])},
	}
	return res, nil
}
