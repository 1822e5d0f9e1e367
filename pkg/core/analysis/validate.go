package analysis

import (
	"errors"
	"fmt"

	"hydrogen_tea/pkg/core/params"
)

// Validate checks every declared analysis against the model before any
// scenario runs. All problems are reported together; each one is an
// *params.AnalysisConfigError.
func (c *Config) Validate(cat params.Catalog) error {
	var errs []error

	if mc := c.MonteCarlo; mc != nil {
		errs = append(errs, mc.validate(cat)...)
	}

	for _, sp := range c.Sensitivity {
		fail := func(reason string) {
			errs = append(errs, &params.AnalysisConfigError{Analysis: "sensitivity", Item: sp.Name, Reason: reason})
		}
		if err := checkTarget(cat, sp.Path, sp.Type); err != nil {
			fail(err.Error())
		}
		if len(sp.Values) == 0 {
			fail("no values to evaluate")
			continue
		}
		if err := checkItems(cat, sp.Values); err != nil {
			fail(err.Error())
		}
	}

	for _, step := range c.Waterfall {
		if err := checkTarget(cat, step.Path, step.Type); err != nil {
			errs = append(errs, &params.AnalysisConfigError{Analysis: "waterfall", Item: step.Name, Reason: err.Error()})
			continue
		}
		if err := checkItems(cat, Values{step.Value}); err != nil {
			errs = append(errs, &params.AnalysisConfigError{Analysis: "waterfall", Item: step.Name, Reason: err.Error()})
		}
	}

	seen := make(map[string]bool, len(c.Comparative))
	for _, cs := range c.Comparative {
		switch {
		case cs.Name == "":
			errs = append(errs, &params.AnalysisConfigError{Analysis: "comparative", Reason: "case without a name"})
		case seen[cs.Name]:
			errs = append(errs, &params.AnalysisConfigError{Analysis: "comparative", Item: cs.Name, Reason: "duplicate case name"})
		case cs.Model == "":
			errs = append(errs, &params.AnalysisConfigError{Analysis: "comparative", Item: cs.Name, Reason: "no model file"})
		}
		seen[cs.Name] = true
	}

	return errors.Join(errs...)
}

func (m *MonteCarlo) validate(cat params.Catalog) []error {
	var errs []error
	fail := func(item, reason string) {
		errs = append(errs, &params.AnalysisConfigError{Analysis: "monte_carlo", Item: item, Reason: reason})
	}

	if m.Samples <= 0 {
		fail("samples", fmt.Sprintf("sample count must be positive, got %d", m.Samples))
	} else if m.Samples > MaxSamples {
		fail("samples", fmt.Sprintf("sample count is capped at %d, got %d", MaxSamples, m.Samples))
	}
	if len(m.TargetRange) != 0 && len(m.TargetRange) != 2 {
		fail("target range", fmt.Sprintf("expected two bounds, got %d", len(m.TargetRange)))
	}
	switch m.Metric {
	case "", MetricCityblock, MetricEuclidean, MetricSum:
	default:
		fail("metric", fmt.Sprintf("unknown distance metric %q", m.Metric))
	}
	if len(m.Parameters) == 0 {
		fail("parameters", "no parameters to sample")
	}

	names := make(map[string]bool, len(m.Parameters))
	for _, p := range m.Parameters {
		if names[p.Name] {
			fail(p.Name, "duplicate parameter name")
		}
		names[p.Name] = true

		if err := checkTarget(cat, p.Path, p.Type); err != nil {
			fail(p.Name, err.Error())
		}
		arity := p.Distribution.Arity()
		switch {
		case arity == 0:
			fail(p.Name, fmt.Sprintf("unknown distribution %q", p.Distribution))
			continue
		case arity > 0 && len(p.Values) != arity:
			fail(p.Name, fmt.Sprintf("%s distribution takes %d values, got %d", distName(p.Distribution), arity, len(p.Values)))
			continue
		case arity < 0 && len(p.Values) == 0:
			fail(p.Name, "choice needs at least one value")
			continue
		}
		if err := checkItems(cat, p.Values); err != nil {
			fail(p.Name, err.Error())
		}
	}
	return errs
}

func distName(d Distribution) string {
	if d == "" {
		return string(DistUniform)
	}
	return string(d)
}

// checkTarget requires an existing numeric literal, the only kind an
// override may replace or scale.
func checkTarget(cat params.Catalog, p params.Path, mode params.OverrideMode) error {
	if p.IsZero() {
		return fmt.Errorf("no target path")
	}
	if _, err := params.ParseOverrideMode(string(mode)); err != nil {
		return err
	}
	e, err := cat.Get(p)
	if err != nil {
		return fmt.Errorf("unknown path %s", p)
	}
	if e.Raw.IsReference() {
		return fmt.Errorf("%s is a reference and cannot be overridden", p)
	}
	if _, ok := e.Raw.Float(); !ok {
		return fmt.Errorf("%s holds %s, not a number", p, e.Raw.Kind)
	}
	return nil
}

func checkItems(cat params.Catalog, vals Values) error {
	items, err := vals.Items()
	if err != nil {
		return err
	}
	for _, it := range items {
		if it.Path != nil && !cat.Has(*it.Path) {
			return fmt.Errorf("value refers to unknown path %s", *it.Path)
		}
	}
	return nil
}
