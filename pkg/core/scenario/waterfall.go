package scenario

import (
	"context"
	"fmt"
	"time"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
)

// Waterfall applies the steps cumulatively in the order given and reports
// each step's marginal effect. Any failing step aborts the analysis, since
// the marginals only add up to the total change when every step ran.
func (e *Engine) Waterfall(ctx context.Context, m *Model, steps []analysis.WaterfallStep) (*WaterfallResult, error) {
	start := time.Now()
	if err := (&analysis.Config{Waterfall: steps}).Validate(m.Store); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// 1. Base case
	base, r, err := e.evaluate(ctx, m, nil, KindWaterfall)
	if err != nil {
		return nil, timeoutErr(fmt.Errorf("waterfall base case of %s: %w", m.Name, err))
	}
	res := &WaterfallResult{Model: m.Name, Output: m.Outputs[0].String(), Base: base}

	// 2. Accumulate
	var applied []params.Override
	prev, prevName := base, "Base Case"
	results := make([]Result, 0, len(steps))
	for i, step := range steps {
		mode, _ := params.ParseOverrideMode(string(step.Type))
		ref, pct, err := referenceOf(r, step.Path, mode)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: KindWaterfall, Item: step.Name, Reason: err.Error()}
		}
		nums, _, err := resolveItems(analysis.Values{step.Value}, ref, r)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: KindWaterfall, Item: step.Name, Reason: err.Error()}
		}
		d := &dimension{param: analysis.Parameter{Path: step.Path}, mode: mode, percent: pct, reference: ref}
		o := d.override(nums[0])
		applied = append(applied, o)

		set := append([]params.Override(nil), applied...)
		out, _, err := e.evaluate(ctx, m, set, KindWaterfall)
		if err != nil {
			e.metrics.ObserveAnalysis(KindWaterfall, time.Since(start))
			return nil, timeoutErr(fmt.Errorf("waterfall step %d (%s): %w", i+1, step.Name, err))
		}
		results = append(results, Result{Index: i, Overrides: set, Outputs: out})

		marginal := make(Outputs, len(out))
		for k, v := range out {
			marginal[k] = v - prev[k]
		}
		res.Steps = append(res.Steps, WaterfallStepResult{
			Name:      step.Name,
			Override:  o,
			Outputs:   out,
			Marginal:  marginal,
			Preceding: prevName,
		})
		prev, prevName = out, step.Name
	}
	res.Final = prev

	if err := e.finish(ctx, KindWaterfall, m.Name, start, results); err != nil {
		return res, err
	}
	return res, nil
}
