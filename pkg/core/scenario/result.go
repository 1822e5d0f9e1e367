package scenario

import (
	"hydrogen_tea/pkg/core/params"
)

// Outputs maps an output path, in its "Table > Row > Field" form, to the
// value the scenario produced.
type Outputs map[string]float64

// Get returns the output at p.
func (o Outputs) Get(p params.Path) (float64, bool) {
	v, ok := o[p.String()]
	return v, ok
}

// Result is one evaluated scenario. It is not modified once produced.
type Result struct {
	Index     int               `json:"index"`
	Overrides []params.Override `json:"overrides,omitempty"`
	Outputs   Outputs           `json:"outputs,omitempty"`
	Err       string            `json:"error,omitempty"`
}

// Failed reports whether the scenario produced no outputs.
func (r Result) Failed() bool { return r.Err != "" }

// =============================================================================
// MONTE CARLO
// =============================================================================

// ParameterSummary describes one sampled dimension.
type ParameterSummary struct {
	Name         string              `json:"name"`
	Path         params.Path         `json:"path"`
	Type         params.OverrideMode `json:"type"`
	Distribution string              `json:"distribution"`
	Reference    float64             `json:"reference"`
	Limit        float64             `json:"limit"`
}

// Sample is a Monte Carlo scenario with the drawn parameter values, in the
// order of MonteCarloResult.Parameters.
type Sample struct {
	Result
	Values   []float64 `json:"values"`
	Distance *float64  `json:"distance,omitempty"`
}

// MonteCarloResult holds every sample in draw order.
type MonteCarloResult struct {
	Model       string             `json:"model"`
	Output      string             `json:"output"`
	Seed        int64              `json:"seed"`
	Parameters  []ParameterSummary `json:"parameters"`
	Baseline    Outputs            `json:"baseline"`
	Samples     []Sample           `json:"samples"`
	Failures    int                `json:"failures"`
	TargetRange []float64          `json:"target_range,omitempty"`
	InTarget    []int              `json:"in_target,omitempty"`
	// Closest is the index of the in-target sample nearest the baseline,
	// -1 when no sample qualifies.
	Closest int `json:"closest"`
}

// Stats summarizes the successful values of the primary output.
type Stats struct {
	N    int     `json:"n"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// Summary computes Stats over the successful samples.
func (r *MonteCarloResult) Summary() Stats {
	var s Stats
	for _, smp := range r.Samples {
		v, ok := smp.Outputs[r.Output]
		if smp.Failed() || !ok {
			continue
		}
		if s.N == 0 || v < s.Min {
			s.Min = v
		}
		if s.N == 0 || v > s.Max {
			s.Max = v
		}
		s.Mean += v
		s.N++
	}
	if s.N > 0 {
		s.Mean /= float64(s.N)
	}
	return s
}

// =============================================================================
// SENSITIVITY
// =============================================================================

// SensitivityPoint is the model evaluated with one alternate value.
type SensitivityPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Result
}

// SensitivityEntry collects the points of one varied parameter. Low and
// High name the points giving the smallest and largest primary output.
type SensitivityEntry struct {
	Name   string              `json:"name"`
	Path   params.Path         `json:"path"`
	Type   params.OverrideMode `json:"type"`
	Base   float64             `json:"base"`
	Points []SensitivityPoint  `json:"points"`
	Low    string              `json:"low,omitempty"`
	High   string              `json:"high,omitempty"`
}

// SensitivityResult holds the baseline and one entry per parameter.
type SensitivityResult struct {
	Model      string             `json:"model"`
	Output     string             `json:"output"`
	Baseline   Outputs            `json:"baseline"`
	Parameters []SensitivityEntry `json:"parameters"`
}

// =============================================================================
// WATERFALL
// =============================================================================

// WaterfallStepResult holds outputs after applying this step and every one
// before it. Marginal is the change against the preceding step.
type WaterfallStepResult struct {
	Name      string          `json:"name"`
	Override  params.Override `json:"override"`
	Outputs   Outputs         `json:"outputs"`
	Marginal  Outputs         `json:"marginal"`
	Preceding string          `json:"preceding"`
}

// WaterfallResult: Base plus the sum of all marginals equals Final.
type WaterfallResult struct {
	Model  string                `json:"model"`
	Output string                `json:"output"`
	Base   Outputs               `json:"base"`
	Steps  []WaterfallStepResult `json:"steps"`
	Final  Outputs               `json:"final"`
}

// =============================================================================
// COMPARATIVE
// =============================================================================

// CaseResult is one model of a comparative analysis.
type CaseResult struct {
	Name       string            `json:"name"`
	Model      string            `json:"model"`
	Baseline   Outputs           `json:"baseline,omitempty"`
	MonteCarlo *MonteCarloResult `json:"monte_carlo,omitempty"`
	Err        string            `json:"error,omitempty"`
}

// ComparativeResult keeps cases in declaration order.
type ComparativeResult struct {
	TargetRange []float64    `json:"target_range,omitempty"`
	Cases       []CaseResult `json:"cases"`
}

// Case returns the result for the named case.
func (r *ComparativeResult) Case(name string) (CaseResult, bool) {
	for _, c := range r.Cases {
		if c.Name == name {
			return c, true
		}
	}
	return CaseResult{}, false
}
