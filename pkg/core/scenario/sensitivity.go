package scenario

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
)

// Sensitivity evaluates the baseline once, then the model with each
// alternate value of each parameter applied alone. A failing point is
// recorded on that point.
func (e *Engine) Sensitivity(ctx context.Context, m *Model, declared []analysis.SensitivityParam) (*SensitivityResult, error) {
	start := time.Now()
	if err := (&analysis.Config{Sensitivity: declared}).Validate(m.Store); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// 1. Baseline
	base, r, err := e.evaluate(ctx, m, nil, KindSensitivity)
	if err != nil {
		return nil, timeoutErr(fmt.Errorf("sensitivity baseline of %s: %w", m.Name, err))
	}

	res := &SensitivityResult{Model: m.Name, Output: m.Outputs[0].String(), Baseline: base}

	// 2. One singleton override per (parameter, value)
	var sets [][]params.Override
	for _, sp := range declared {
		mode, _ := params.ParseOverrideMode(string(sp.Type))
		ref, pct, err := referenceOf(r, sp.Path, mode)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: KindSensitivity, Item: sp.Name, Reason: err.Error()}
		}
		nums, marks, err := resolveItems(sp.Values, ref, r)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: KindSensitivity, Item: sp.Name, Reason: err.Error()}
		}
		d := &dimension{param: analysis.Parameter{Path: sp.Path}, mode: mode, percent: pct, reference: ref}

		entry := SensitivityEntry{Name: sp.Name, Path: sp.Path, Type: mode, Base: ref}
		for i, v := range nums {
			o := d.override(v)
			var set []params.Override
			if !marks[i] {
				set = []params.Override{o}
			}
			entry.Points = append(entry.Points, SensitivityPoint{Label: pointLabel(sp.Values[i], v, mode), Value: v})
			sets = append(sets, set)
		}
		res.Parameters = append(res.Parameters, entry)
	}

	// 3. Evaluate every point
	results := e.batch(ctx, m, sets, KindSensitivity)
	k := 0
	for i := range res.Parameters {
		entry := &res.Parameters[i]
		for j := range entry.Points {
			entry.Points[j].Result = results[k]
			k++
		}
		entry.Low, entry.High = extremes(entry.Points, res.Output)
	}

	if err := e.finish(ctx, KindSensitivity, m.Name, start, results); err != nil {
		return res, err
	}
	return res, nil
}

func pointLabel(cell string, v float64, mode params.OverrideMode) string {
	if mode == params.ModeFactor {
		return strconv.FormatFloat(v, 'g', -1, 64) + "x"
	}
	return cell
}

// extremes names the points with the smallest and largest output.
func extremes(points []SensitivityPoint, output string) (low, high string) {
	first := true
	var lo, hi float64
	for _, p := range points {
		v, ok := p.Outputs[output]
		if p.Failed() || !ok {
			continue
		}
		if first || v < lo {
			lo, low = v, p.Label
		}
		if first || v > hi {
			hi, high = v, p.Label
		}
		first = false
	}
	return low, high
}
