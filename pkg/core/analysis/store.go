package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hydrogen_tea/pkg/core/params"
)

// Tables a model may carry to declare its own analyses.
const (
	TableMonteCarlo      = "Monte_Carlo_Analysis"
	TableMonteCarloParam = "Parameters - Monte_Carlo_Analysis"
	TableSensitivity     = "Sensitivity_Analysis"
	TableWaterfall       = "Waterfall_Analysis"
	TableComparative     = "Comparative_MC_Analysis"
)

// FromStore reads the analysis tables present in s. Tables that are absent
// leave the matching analysis undeclared.
func FromStore(s *params.Store) (*Config, error) {
	cfg := &Config{}

	// 1. Monte Carlo settings and parameters
	if s.HasTable(TableMonteCarlo) || s.HasTable(TableMonteCarloParam) {
		mc, err := monteCarloFromStore(s)
		if err != nil {
			return nil, err
		}
		cfg.MonteCarlo = mc
	}

	// 2. Sensitivity, one row per varied entry
	for _, row := range s.Rows(TableSensitivity) {
		p, err := rowPath(TableSensitivity, row)
		if err != nil {
			return nil, err
		}
		mode, err := rowMode(s, TableSensitivity, row)
		if err != nil {
			return nil, err
		}
		cfg.Sensitivity = append(cfg.Sensitivity, SensitivityParam{
			Name:   textOr(s, params.P(TableSensitivity, row, "Name"), row),
			Path:   p,
			Type:   mode,
			Values: params.SplitList(textOr(s, params.P(TableSensitivity, row, "Values"), "")),
		})
	}

	// 3. Waterfall, in declaration order
	for _, row := range s.Rows(TableWaterfall) {
		p, err := rowPath(TableWaterfall, row)
		if err != nil {
			return nil, err
		}
		mode, err := rowMode(s, TableWaterfall, row)
		if err != nil {
			return nil, err
		}
		cfg.Waterfall = append(cfg.Waterfall, WaterfallStep{
			Name:  textOr(s, params.P(TableWaterfall, row, "Name"), row),
			Path:  p,
			Type:  mode,
			Value: textOr(s, params.P(TableWaterfall, row, "Value"), ""),
		})
	}

	// 4. Comparative cases name other model files
	for _, row := range s.Rows(TableComparative) {
		cfg.Comparative = append(cfg.Comparative, Case{
			Name:  row,
			Model: textOr(s, params.P(TableComparative, row, "Value"), ""),
		})
	}

	return cfg, nil
}

func monteCarloFromStore(s *params.Store) (*MonteCarlo, error) {
	setting := func(row string) params.Path { return params.P(TableMonteCarlo, row, "Value") }
	mc := &MonteCarlo{}

	samples, err := numberAt(s, setting("Samples"))
	if err != nil {
		return nil, &params.AnalysisConfigError{Analysis: TableMonteCarlo, Item: "Samples", Reason: err.Error()}
	}
	if samples != math.Trunc(samples) || samples < 1 || samples > MaxSamples {
		return nil, &params.AnalysisConfigError{Analysis: TableMonteCarlo, Item: "Samples",
			Reason: fmt.Sprintf("expected a whole number between 1 and %d, got %v", MaxSamples, samples)}
	}
	mc.Samples = int(samples)

	if s.Has(setting("Seed")) {
		seed, err := numberAt(s, setting("Seed"))
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: TableMonteCarlo, Item: "Seed", Reason: err.Error()}
		}
		mc.Seed = int64(seed)
	}

	if rng := textOr(s, setting("Target Price Range ($)"), ""); rng != "" {
		for _, item := range params.SplitList(rng) {
			f, _, err := params.ParseNumber(item)
			if err != nil {
				return nil, &params.AnalysisConfigError{Analysis: TableMonteCarlo, Item: "Target Price Range ($)", Reason: fmt.Sprintf("%q is not a number", item)}
			}
			mc.TargetRange = append(mc.TargetRange, f)
		}
	}

	if out := textOr(s, setting("Output"), ""); out != "" {
		p, err := params.ParsePath(out)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: TableMonteCarlo, Item: "Output", Reason: err.Error()}
		}
		mc.Output = p
	}
	mc.Metric = Metric(strings.ToLower(textOr(s, setting("Metric"), "")))

	for _, row := range s.Rows(TableMonteCarloParam) {
		p, err := rowPath(TableMonteCarloParam, row)
		if err != nil {
			return nil, err
		}
		mode, err := rowMode(s, TableMonteCarloParam, row)
		if err != nil {
			return nil, err
		}
		mc.Parameters = append(mc.Parameters, Parameter{
			Name:         textOr(s, params.P(TableMonteCarloParam, row, "Name"), row),
			Path:         p,
			Type:         mode,
			Distribution: Distribution(strings.ToLower(textOr(s, params.P(TableMonteCarloParam, row, "Distribution"), ""))),
			Values:       params.SplitList(textOr(s, params.P(TableMonteCarloParam, row, "Values"), "")),
		})
	}
	return mc, nil
}

// rowPath parses a row name that addresses a model entry.
func rowPath(table, row string) (params.Path, error) {
	p, err := params.ParsePath(row)
	if err != nil {
		return params.Path{}, &params.AnalysisConfigError{Analysis: table, Item: row, Reason: err.Error()}
	}
	return p, nil
}

func rowMode(s *params.Store, table, row string) (params.OverrideMode, error) {
	mode, err := params.ParseOverrideMode(strings.ToLower(textOr(s, params.P(table, row, "Type"), "")))
	if err != nil {
		return "", &params.AnalysisConfigError{Analysis: table, Item: row, Reason: err.Error()}
	}
	return mode, nil
}

// textOr renders the raw cell at p as it was written, or def when absent.
// Path cells come back in their "A > B > C" form.
func textOr(s *params.Store, p params.Path, def string) string {
	e, err := s.Get(p)
	if err != nil {
		return def
	}
	if e.Raw.IsReference() && e.Raw.Ref.Base == nil {
		parts := make([]string, len(e.Raw.Ref.Paths))
		for i, rp := range e.Raw.Ref.Paths {
			parts[i] = rp.String()
		}
		return strings.Join(parts, "; ")
	}
	return e.Raw.String()
}

func numberAt(s *params.Store, p params.Path) (float64, error) {
	e, err := s.Get(p)
	if err != nil {
		return 0, err
	}
	if f, ok := e.Raw.Float(); ok {
		return f, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(e.Raw.Str), 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, found %s", e.Raw)
	}
	return f, nil
}
