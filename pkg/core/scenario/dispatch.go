package scenario

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
)

// Kinds lists the analyses Run dispatches, in the order a full run does them.
var Kinds = []string{KindEvaluate, KindMonteCarlo, KindSensitivity, KindWaterfall, KindComparative}

// Request names one analysis of a loaded model.
type Request struct {
	Kind      string
	Model     *Model
	Config    *analysis.Config
	Overrides []params.Override
	// ModelPath locates comparative case files, which are relative to it.
	ModelPath string
	Defaults  string
}

// Run performs the analysis named by req.Kind and returns its result.
// Overrides apply to the model before any analysis, so every kind runs
// against the overridden baseline. A batch timeout returns the partial
// result together with the error.
func (e *Engine) Run(ctx context.Context, req Request) (interface{}, error) {
	cfg := req.Config
	if cfg == nil {
		cfg = &analysis.Config{}
	}
	if req.Kind == KindEvaluate || req.Kind == "" {
		return e.Evaluate(ctx, req.Model, req.Overrides)
	}

	m, err := req.Model.WithOverrides(req.Overrides)
	if err != nil {
		return nil, err
	}
	req.Model = m

	switch req.Kind {
	case KindMonteCarlo:
		res, err := e.MonteCarlo(ctx, req.Model, cfg.MonteCarlo, nil)
		return partial(res, err)

	case KindSensitivity:
		if len(cfg.Sensitivity) == 0 {
			return nil, &params.AnalysisConfigError{Analysis: KindSensitivity, Reason: "no sensitivity parameters declared"}
		}
		res, err := e.Sensitivity(ctx, req.Model, cfg.Sensitivity)
		return partial(res, err)

	case KindWaterfall:
		if len(cfg.Waterfall) == 0 {
			return nil, &params.AnalysisConfigError{Analysis: KindWaterfall, Reason: "no waterfall steps declared"}
		}
		res, err := e.Waterfall(ctx, req.Model, cfg.Waterfall)
		return partial(res, err)

	case KindComparative:
		if len(cfg.Comparative) == 0 {
			return nil, &params.AnalysisConfigError{Analysis: KindComparative, Reason: "no comparative cases declared"}
		}
		cases, err := e.LoadCases(ctx, cfg.Comparative, filepath.Dir(req.ModelPath), req.Defaults)
		if err != nil {
			return nil, err
		}
		for i := range cases {
			if cases[i].Model, err = cases[i].Model.WithOverrides(req.Overrides); err != nil {
				return nil, fmt.Errorf("case %s: %w", cases[i].Name, err)
			}
		}
		res, err := e.Comparative(ctx, cases)
		return partial(res, err)
	}
	return nil, fmt.Errorf("unknown analysis %q", req.Kind)
}

// partial keeps a result only when it is complete or cut short by the
// batch timeout.
func partial[T any](res *T, err error) (interface{}, error) {
	if err != nil && (res == nil || !errors.Is(err, ErrBatchTimeout)) {
		return nil, err
	}
	return res, err
}
