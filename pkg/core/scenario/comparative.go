package scenario

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
)

// ComparativeCase is one independent model of a comparison, with its own
// optional Monte Carlo declaration.
type ComparativeCase struct {
	Name       string
	Model      *Model
	MonteCarlo *analysis.MonteCarlo
}

// LoadCases prepares the models named by a comparative declaration. Relative
// model paths are taken from dir. Each model's own Monte Carlo tables come
// with it.
func (e *Engine) LoadCases(ctx context.Context, cases []analysis.Case, dir, defaults string) ([]ComparativeCase, error) {
	if err := (&analysis.Config{Comparative: cases}).Validate(params.NewStore()); err != nil {
		return nil, err
	}
	out := make([]ComparativeCase, 0, len(cases))
	for _, c := range cases {
		path := c.Model
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		m, cfg, err := e.LoadModel(ctx, path, defaults)
		if err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		m.Name = c.Name
		out = append(out, ComparativeCase{Name: c.Name, Model: m, MonteCarlo: cfg.MonteCarlo})
	}
	return out, nil
}

// Comparative evaluates every case independently, in declaration order.
// Cases running Monte Carlo must agree on the target price range. Every
// declaration is validated before the first case runs.
func (e *Engine) Comparative(ctx context.Context, cases []ComparativeCase) (*ComparativeResult, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// 1. Validate everything up front
	seen := make(map[string]bool, len(cases))
	var target []float64
	haveTarget := false
	for _, c := range cases {
		if c.Name == "" || seen[c.Name] {
			return nil, &params.AnalysisConfigError{Analysis: KindComparative, Item: c.Name, Reason: "case names must be unique and non-empty"}
		}
		seen[c.Name] = true
		if c.Model == nil {
			return nil, &params.AnalysisConfigError{Analysis: KindComparative, Item: c.Name, Reason: "no model"}
		}
		if c.MonteCarlo == nil {
			continue
		}
		if err := (&analysis.Config{MonteCarlo: c.MonteCarlo}).Validate(c.Model.Store); err != nil {
			return nil, fmt.Errorf("case %s: %w", c.Name, err)
		}
		if !haveTarget {
			target, haveTarget = c.MonteCarlo.TargetRange, true
		} else if !sameRange(target, c.MonteCarlo.TargetRange) {
			return nil, &params.AnalysisConfigError{
				Analysis: KindComparative,
				Item:     c.Name,
				Reason:   fmt.Sprintf("target price range %v differs from %v", c.MonteCarlo.TargetRange, target),
			}
		}
	}

	// 2. Run each case
	res := &ComparativeResult{TargetRange: target}
	var cut error
	for _, c := range cases {
		cr := CaseResult{Name: c.Name, Model: c.Model.Name}
		if c.MonteCarlo != nil {
			mc, err := e.MonteCarlo(ctx, c.Model, c.MonteCarlo, nil)
			if mc != nil {
				cr.MonteCarlo = mc
				cr.Baseline = mc.Baseline
			}
			if err != nil {
				cr.Err = err.Error()
				if errors.Is(err, ErrBatchTimeout) {
					cut = err
				}
			}
		} else {
			out, err := e.Evaluate(ctx, c.Model, nil)
			if err != nil {
				cr.Err = err.Error()
				if errors.Is(err, ErrBatchTimeout) {
					cut = err
				}
			}
			cr.Baseline = out
		}
		res.Cases = append(res.Cases, cr)
		if cut != nil {
			break
		}
	}

	e.metrics.ObserveAnalysis(KindComparative, time.Since(start))
	e.log.Info().Int("cases", len(res.Cases)).Dur("elapsed", time.Since(start)).Msg("comparative finished")
	if cut != nil {
		return res, cut
	}
	return res, nil
}

func sameRange(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
