package plugins

import (
	"fmt"

	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
)

// TableIndices lists the price-index lookup files, one row per index with
// the file reference in its File field.
const TableIndices = "Inflation Indices"

var (
	refYear        = fin("ref year")
	basisYear      = fin("basis year")
	currentCapital = fin("current year capital costs")

	indexPlant    = params.P(TableIndices, "Plant Cost Index", "File")
	indexGDP      = params.P(TableIndices, "GDP Deflator", "File")
	indexLabor    = params.P(TableIndices, "Labor Index", "File")
	indexChemical = params.P(TableIndices, "Chemical Price Index", "File")
)

// Inflation derives the commodity inflators from year-indexed price
// tables. Each inflator is the ratio of an index between two years; an
// index with no table leaves its inflator at 1.
//
//	CEPCI    = plant cost index, current capital year / basis year
//	CI       = GDP deflator, ref year / current capital year
//	Combined = CEPCI x CI
//	Labor    = labor index, ref year / basis year
//	Chemical = chemical price index, ref year / basis year
type Inflation struct{}

func (Inflation) Name() string { return "inflation" }

func (Inflation) Requires(params.Catalog) []plugin.Input {
	return []plugin.Input{
		plugin.OptNum(refYear),
		plugin.OptNum(basisYear),
		plugin.OptNum(currentCapital),
		plugin.OptStr(indexPlant),
		plugin.OptStr(indexGDP),
		plugin.OptStr(indexLabor),
		plugin.OptStr(indexChemical),
	}
}

func (Inflation) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	ratio := func(index, num, den params.Path) (float64, error) {
		if !in.Has(index) {
			return 1, nil
		}
		name := in.Text(index)
		a, b := in.Number(num), in.Number(den)
		if err := in.Err(); err != nil {
			return 0, err
		}
		if env.Tables == nil {
			return 0, fmt.Errorf("no lookup tables available for %s", name)
		}
		t, err := env.Tables.Table(name)
		if err != nil {
			return 0, err
		}
		return indexRatio(t, a, b)
	}

	cepci, err := ratio(indexPlant, currentCapital, basisYear)
	if err != nil {
		return nil, err
	}
	ci, err := ratio(indexGDP, refYear, currentCapital)
	if err != nil {
		return nil, err
	}
	labor, err := ratio(indexLabor, refYear, basisYear)
	if err != nil {
		return nil, err
	}
	chemical, err := ratio(indexChemical, refYear, basisYear)
	if err != nil {
		return nil, err
	}

	return []plugin.Output{
		plugin.Emit(inflatorCEPCI, cepci),
		plugin.Emit(inflatorCI, ci),
		plugin.Emit(inflatorCombined, cepci*ci),
		plugin.Emit(inflatorLabor, labor),
		plugin.Emit(inflatorChemical, chemical),
	}, nil
}

// indexRatio divides the index nearest year a by the one nearest year b.
// Years are in the first column, index values in the second.
func indexRatio(t *lookup.Table, a, b float64) (float64, error) {
	years, err := t.ColumnAt(0)
	if err != nil {
		return 0, err
	}
	vals, err := t.ColumnAt(1)
	if err != nil {
		return 0, err
	}
	i, err := lookup.NearestIndex(years, a)
	if err != nil {
		return 0, fmt.Errorf("table %s: %w", t.Name(), err)
	}
	j, _ := lookup.NearestIndex(years, b)
	if vals[j] == 0 {
		return 0, fmt.Errorf("table %s: zero index for year %v", t.Name(), years[j])
	}
	return vals[i] / vals[j], nil
}
