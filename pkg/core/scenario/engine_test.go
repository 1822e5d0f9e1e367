package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
	"hydrogen_tea/pkg/core/resolve"
)

var (
	catalystCost   = params.P("Catalyst", "Cost per kg ($)", "Value")
	catalystAmount = params.P("Catalyst", "Amount (kg)", "Value")
	catalystCapex  = params.P("Direct Capital Costs - Photocatalyst", "Catalyst Cost ($)", "Value")
	plantOutput    = params.P("Plant", "Output (kg)", "Value")
	h2Cost         = analysis.DefaultOutput
)

// funcPlugin is a plugin assembled from closures.
type funcPlugin struct {
	name     string
	requires func(cat params.Catalog) []plugin.Input
	run      func(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error)
}

func (p *funcPlugin) Name() string { return p.name }

func (p *funcPlugin) Requires(cat params.Catalog) []plugin.Input { return p.requires(cat) }

func (p *funcPlugin) Run(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
	return p.run(in, env)
}

// costModel prices hydrogen as catalyst capex per kg of output. It fails
// when catalyst cost exceeds failAbove and sleeps for slow when the cost
// differs from the baseline.
func costModel(failAbove float64, slow time.Duration) *funcPlugin {
	return &funcPlugin{
		name: "cost_model",
		requires: func(params.Catalog) []plugin.Input {
			return []plugin.Input{plugin.Num(catalystCapex), plugin.Num(plantOutput), plugin.Num(catalystCost)}
		},
		run: func(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
			capex, out, cost := in.Number(catalystCapex), in.Number(plantOutput), in.Number(catalystCost)
			if err := in.Err(); err != nil {
				return nil, err
			}
			if cost > failAbove {
				return nil, fmt.Errorf("catalyst cost %v out of range", cost)
			}
			if slow > 0 && cost != 100 {
				time.Sleep(slow)
			}
			return []plugin.Output{plugin.Emit(h2Cost, capex/out)}, nil
		},
	}
}

func baseStore(t *testing.T) *params.Store {
	t.Helper()
	s := params.NewStore()
	set := func(p params.Path, v params.Value) {
		if err := s.Set(p, v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	set(params.P(plugin.WorkflowTable, "Cost_Model_Plugin", "Position"), params.Number(1))
	set(catalystCost, params.Number(100))
	set(catalystAmount, params.Number(25))
	set(catalystCapex, params.Ref([]params.Path{catalystCost, catalystAmount}, nil, resolve.RuleProduct))
	set(plantOutput, params.Number(1000))
	return s
}

func newEngine(t *testing.T, p *funcPlugin, opts ...Option) (*Engine, *Model) {
	t.Helper()
	reg := plugin.NewRegistry()
	if err := reg.Register(p.name, func() plugin.Plugin { return p }, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e := New(reg, opts...)
	m, err := e.Prepare(context.Background(), "photocatalytic", baseStore(t), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return e, m
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

// =============================================================================
// EVALUATE
// =============================================================================

func TestPrepare_UnknownPlugin(t *testing.T) {
	e := New(plugin.NewRegistry())
	_, err := e.Prepare(context.Background(), "m", baseStore(t), nil)
	if !errors.Is(err, params.ErrUnknownPlugin) {
		t.Fatalf("expected ErrUnknownPlugin, got %v", err)
	}
}

func TestEvaluate(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 0))
	ctx := context.Background()

	base, err := e.Evaluate(ctx, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := base.Get(h2Cost); !near(got, 2.5) {
		t.Errorf("expected baseline 2.5, got %v", got)
	}

	out, err := e.Evaluate(ctx, m, []params.Override{params.Set(catalystCost, params.Number(304))})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, _ := out.Get(h2Cost); !near(got, 7.6) {
		t.Errorf("expected 7.6, got %v", got)
	}

	// The base store is untouched by evaluations
	if m.Store.Has(h2Cost) {
		t.Error("pipeline outputs leaked into the base store")
	}
	if entry, _ := m.Store.Get(catalystCost); entry.Raw.Num != 100 {
		t.Errorf("override leaked into the base store: %v", entry.Raw)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	e, m := newEngine(t, costModel(200, 0))
	ctx := context.Background()

	tests := []struct {
		name      string
		overrides []params.Override
		want      error
	}{
		{"reference target", []params.Override{params.Set(catalystCapex, params.Number(1))}, params.ErrInvalidOverride},
		{"missing target", []params.Override{params.Set(params.P("No", "Such", "Value"), params.Number(1))}, params.ErrInvalidOverride},
		{"plugin failure", []params.Override{params.Set(catalystCost, params.Number(250))}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(ctx, m, tt.overrides)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEvaluate_ReferenceCheck(t *testing.T) {
	dangling := params.P("Notes", "Orphan", "Value")

	for _, check := range []bool{true, false} {
		t.Run(fmt.Sprintf("check=%v", check), func(t *testing.T) {
			e, m := newEngine(t, costModel(math.Inf(1), 0), WithReferenceCheck(check))
			_ = m.Store.Set(dangling, params.Ref([]params.Path{params.P("Nowhere", "X", "Value")}, nil, ""))

			_, err := e.Evaluate(context.Background(), m, nil)
			if check && !errors.Is(err, params.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if !check && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// =============================================================================
// MONTE CARLO
// =============================================================================

func mcConfig(samples int) *analysis.MonteCarlo {
	return &analysis.MonteCarlo{
		Samples:     samples,
		Seed:        11,
		TargetRange: []float64{2.5, 5},
		Parameters: []analysis.Parameter{
			{Name: "Catalyst cost", Path: catalystCost, Values: analysis.Values{"Base", "304"}},
			{Name: "Catalyst amount", Path: catalystAmount, Type: params.ModeFactor, Values: analysis.Values{"0.5", "1.5"}},
		},
	}
}

func TestMonteCarlo_ReproducibleAcrossWorkers(t *testing.T) {
	var runs []*MonteCarloResult
	for _, workers := range []int{1, 8} {
		e, m := newEngine(t, costModel(math.Inf(1), 0), WithWorkers(workers))
		res, err := e.MonteCarlo(context.Background(), m, mcConfig(60), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		runs = append(runs, res)
	}

	a, b := runs[0], runs[1]
	if len(a.Samples) != 60 || len(b.Samples) != 60 {
		t.Fatalf("expected 60 samples, got %d and %d", len(a.Samples), len(b.Samples))
	}
	for i := range a.Samples {
		if a.Samples[i].Index != i {
			t.Fatalf("sample %d reported index %d", i, a.Samples[i].Index)
		}
		if a.Samples[i].Outputs[a.Output] != b.Samples[i].Outputs[b.Output] {
			t.Fatalf("sample %d differs: %v vs %v", i, a.Samples[i].Outputs, b.Samples[i].Outputs)
		}
	}
	if fmt.Sprint(a.InTarget) != fmt.Sprint(b.InTarget) || a.Closest != b.Closest {
		t.Errorf("target filtering differs between worker counts")
	}
}

func TestMonteCarlo_SamplesAndDistance(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 0))
	res, err := e.MonteCarlo(context.Background(), m, mcConfig(200), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := res.Baseline[h2Cost.String()]; !near(got, 2.5) {
		t.Errorf("expected baseline 2.5, got %v", got)
	}
	cost, amount := res.Parameters[0], res.Parameters[1]
	if cost.Reference != 100 || cost.Limit != 304 {
		t.Errorf("expected catalyst cost reference 100 and limit 304, got %+v", cost)
	}
	if amount.Reference != 1 || amount.Limit != 0.5 {
		t.Errorf("expected factor reference 1 and limit 0.5, got %+v", amount)
	}

	for _, smp := range res.Samples {
		c, f := smp.Values[0], smp.Values[1]
		if c < 100 || c > 304 || f < 0.5 || f > 1.5 {
			t.Fatalf("sample %d outside its ranges: %v", smp.Index, smp.Values)
		}
		want := c * 25 * f / 1000
		if got := smp.Outputs[res.Output]; !near(got, want) {
			t.Fatalf("sample %d: expected %v, got %v", smp.Index, want, got)
		}
	}

	if len(res.InTarget) == 0 {
		t.Fatal("expected samples inside the target range")
	}
	for _, i := range res.InTarget {
		smp := res.Samples[i]
		v := smp.Outputs[res.Output]
		if v < 2.5 || v > 5 || smp.Distance == nil {
			t.Fatalf("sample %d should not be in target: %v", i, v)
		}
	}
	sorted := res.SortedByDistance()
	if sorted[0] != res.Closest {
		t.Errorf("closest sample %d should sort first, got %d", res.Closest, sorted[0])
	}
	if s := res.Summary(); s.N != 200 || s.Min < 0.625 || s.Max > 11.4 {
		t.Errorf("unexpected summary %+v", s)
	}
}

func TestMonteCarlo_ChoiceKeepsBaseline(t *testing.T) {
	for _, marker := range []string{"Base", "Reference"} {
		t.Run(marker, func(t *testing.T) {
			e, m := newEngine(t, costModel(math.Inf(1), 0))
			cfg := &analysis.MonteCarlo{
				Samples: 40,
				Seed:    11,
				Parameters: []analysis.Parameter{{
					Name:         "Catalyst cost",
					Path:         catalystCost,
					Distribution: analysis.DistChoice,
					Values:       analysis.Values{marker, "304"},
				}},
			}
			res, err := e.MonteCarlo(context.Background(), m, cfg, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			baseline := res.Baseline[h2Cost.String()]
			kept, drawn := 0, 0
			for _, smp := range res.Samples {
				if smp.Failed() {
					t.Fatalf("sample %d failed unexpectedly: %s", smp.Index, smp.Err)
				}
				got := smp.Outputs[res.Output]
				switch smp.Values[0] {
				case 100:
					kept++
					if len(smp.Overrides) != 0 {
						t.Fatalf("sample %d kept the baseline but carries overrides %+v", smp.Index, smp.Overrides)
					}
					if got != baseline {
						t.Fatalf("sample %d: expected the baseline output %v, got %v", smp.Index, baseline, got)
					}
				case 304:
					drawn++
					if len(smp.Overrides) != 1 {
						t.Fatalf("sample %d: expected one override, got %+v", smp.Index, smp.Overrides)
					}
					o := smp.Overrides[0]
					if o.Path != catalystCost || o.Mode != params.ModeValue || o.Value.Kind != params.KindNumber || o.Value.Num != 304 {
						t.Fatalf("sample %d: expected catalyst cost set to 304, got %+v", smp.Index, o)
					}
					if !near(got, 7.6) {
						t.Fatalf("sample %d: expected 7.6, got %v", smp.Index, got)
					}
				default:
					t.Fatalf("sample %d drew %v, which is not a listed choice", smp.Index, smp.Values[0])
				}
			}
			if kept == 0 || drawn == 0 {
				t.Errorf("expected both choices to be drawn, got %d baseline and %d listed", kept, drawn)
			}
		})
	}
}

func TestMonteCarlo_FailuresRecordedPerSample(t *testing.T) {
	e, m := newEngine(t, costModel(200, 0))
	res, err := e.MonteCarlo(context.Background(), m, mcConfig(100), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed := 0
	for _, smp := range res.Samples {
		if smp.Values[0] > 200 {
			failed++
			if !smp.Failed() || !strings.Contains(smp.Err, "out of range") {
				t.Fatalf("sample %d with cost %v should have failed, got %q", smp.Index, smp.Values[0], smp.Err)
			}
		} else if smp.Failed() {
			t.Fatalf("sample %d failed unexpectedly: %s", smp.Index, smp.Err)
		}
	}
	if failed == 0 || res.Failures != failed {
		t.Errorf("expected %d failures, got %d", failed, res.Failures)
	}
}

func TestMonteCarlo_Timeout(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 40*time.Millisecond), WithWorkers(1), WithTimeout(60*time.Millisecond))

	res, err := e.MonteCarlo(context.Background(), m, mcConfig(20), nil)
	if !errors.Is(err, ErrBatchTimeout) {
		t.Fatalf("expected ErrBatchTimeout, got %v", err)
	}
	if res == nil || len(res.Samples) != 20 {
		t.Fatal("expected the partial result with every sample slot")
	}
	last := res.Samples[len(res.Samples)-1]
	if !last.Failed() || !strings.Contains(last.Err, context.DeadlineExceeded.Error()) {
		t.Errorf("expected the last sample to record the deadline, got %q", last.Err)
	}
}

func TestMonteCarlo_MalformedConfigFailsBeforeRunning(t *testing.T) {
	calls := 0
	p := costModel(math.Inf(1), 0)
	run := p.run
	p.run = func(in *plugin.Inputs, env plugin.Env) ([]plugin.Output, error) {
		calls++
		return run(in, env)
	}
	e, m := newEngine(t, p)

	cfg := mcConfig(10)
	cfg.Parameters[0].Path = catalystCapex
	_, err := e.MonteCarlo(context.Background(), m, cfg, nil)
	if !errors.Is(err, params.ErrMalformedAnalysisConfig) {
		t.Fatalf("expected ErrMalformedAnalysisConfig, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no evaluation, got %d", calls)
	}
}

// =============================================================================
// SENSITIVITY / WATERFALL / COMPARATIVE
// =============================================================================

func TestSensitivity(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 0))
	res, err := e.Sensitivity(context.Background(), m, []analysis.SensitivityParam{
		{Name: "Catalyst cost", Path: catalystCost, Values: analysis.Values{"Base", "100", "304"}},
		{Name: "Catalyst amount", Path: catalystAmount, Type: params.ModeFactor, Values: analysis.Values{"0.5", "2"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	base := res.Baseline[res.Output]
	cost := res.Parameters[0]
	for _, pt := range cost.Points[:2] {
		if pt.Outputs[res.Output] != base {
			t.Errorf("%s should reproduce the baseline %v exactly, got %v", pt.Label, base, pt.Outputs[res.Output])
		}
	}
	if got := cost.Points[2].Outputs[res.Output]; !near(got, 7.6) {
		t.Errorf("expected 7.6, got %v", got)
	}
	if cost.High != "304" {
		t.Errorf("expected 304 to be the high point, got %q", cost.High)
	}

	amount := res.Parameters[1]
	if amount.Points[0].Label != "0.5x" || amount.Low != "0.5x" || amount.High != "2x" {
		t.Errorf("unexpected factor labels %+v", amount)
	}
	if got := amount.Points[1].Outputs[res.Output]; !near(got, 5) {
		t.Errorf("expected 5, got %v", got)
	}
}

func TestSensitivity_PointFailureRecorded(t *testing.T) {
	e, m := newEngine(t, costModel(200, 0))
	res, err := e.Sensitivity(context.Background(), m, []analysis.SensitivityParam{
		{Name: "Catalyst cost", Path: catalystCost, Values: analysis.Values{"150", "304"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pts := res.Parameters[0].Points
	if pts[0].Failed() || !pts[1].Failed() {
		t.Errorf("expected only the 304 point to fail: %+v", pts)
	}
}

func TestWaterfall_Telescopes(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 0))
	res, err := e.Waterfall(context.Background(), m, []analysis.WaterfallStep{
		{Name: "Catalyst cost", Path: catalystCost, Value: "304"},
		{Name: "Catalyst amount", Path: catalystAmount, Value: "50"},
		{Name: "Plant output", Path: plantOutput, Type: params.ModeFactor, Value: "2"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := res.Output
	want := []float64{7.6, 15.2, 7.6}
	sum := res.Base[key]
	for i, st := range res.Steps {
		if !near(st.Outputs[key], want[i]) {
			t.Errorf("step %d: expected %v, got %v", i, want[i], st.Outputs[key])
		}
		sum += st.Marginal[key]
	}
	if !near(sum, res.Final[key]) {
		t.Errorf("base plus marginals %v should equal final %v", sum, res.Final[key])
	}
	if res.Steps[0].Preceding != "Base Case" || res.Steps[2].Preceding != "Catalyst amount" {
		t.Errorf("unexpected preceding names: %q, %q", res.Steps[0].Preceding, res.Steps[2].Preceding)
	}
	if len(res.Steps[2].Override.Path.Table) == 0 || res.Steps[2].Override.Mode != params.ModeFactor {
		t.Errorf("unexpected override %+v", res.Steps[2].Override)
	}
}

func TestWaterfall_FailingStepAborts(t *testing.T) {
	e, m := newEngine(t, costModel(200, 0))
	res, err := e.Waterfall(context.Background(), m, []analysis.WaterfallStep{
		{Name: "Catalyst amount", Path: catalystAmount, Value: "50"},
		{Name: "Catalyst cost", Path: catalystCost, Value: "304"},
	})
	if err == nil || res != nil {
		t.Fatalf("expected the waterfall to abort, got %v / %v", res, err)
	}
	if !strings.Contains(err.Error(), "step 2") {
		t.Errorf("expected the failing step in the error, got %v", err)
	}
}

func TestComparative(t *testing.T) {
	e, m := newEngine(t, costModel(math.Inf(1), 0))
	cheap, err := e.Prepare(context.Background(), "cheap", baseStore(t), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = cheap.Store.Set(catalystCost, params.Number(40))

	cases := []ComparativeCase{
		{Name: "reference", Model: m, MonteCarlo: mcConfig(20)},
		{Name: "cheap catalyst", Model: cheap, MonteCarlo: mcConfig(20)},
		{Name: "deterministic", Model: cheap},
	}
	res, err := e.Comparative(context.Background(), cases)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Cases) != 3 || res.Cases[0].Name != "reference" || res.Cases[2].Name != "deterministic" {
		t.Fatalf("cases out of declaration order: %+v", res.Cases)
	}
	c, ok := res.Case("deterministic")
	if !ok || !near(c.Baseline[h2Cost.String()], 1) {
		t.Errorf("expected deterministic baseline 1, got %+v", c)
	}
	if r, _ := res.Case("cheap catalyst"); r.MonteCarlo == nil || len(r.MonteCarlo.Samples) != 20 {
		t.Errorf("expected a Monte Carlo result for the cheap case")
	}

	other := mcConfig(20)
	other.TargetRange = []float64{1, 2}
	cases[1].MonteCarlo = other
	if _, err := e.Comparative(context.Background(), cases); !errors.Is(err, params.ErrMalformedAnalysisConfig) {
		t.Fatalf("expected ErrMalformedAnalysisConfig for differing target ranges, got %v", err)
	}
}

// =============================================================================
// SAMPLING
// =============================================================================

func TestTriangularStaysInBounds(t *testing.T) {
	for _, u := range []float64{0, 0.1, 0.25, 0.5, 0.9, 0.999999} {
		v := triangular(u, 1, 2, 5)
		if v < 1 || v > 5 {
			t.Errorf("u=%v: %v outside [1, 5]", u, v)
		}
	}
	if got := triangular(0.25, 1, 2, 5); !near(got, 2) {
		t.Errorf("the mode quantile should map to the mode, got %v", got)
	}
}

func TestDistance(t *testing.T) {
	dims := []*dimension{
		{reference: 100, limit: 300},
		{reference: 1, limit: 0.5},
		{reference: 5, limit: 5},
	}

	tests := []struct {
		metric analysis.Metric
		values []float64
		want   float64
	}{
		{analysis.MetricCityblock, []float64{300, 0.5, 7}, 2.0 / 3},
		{analysis.MetricCityblock, []float64{100, 1, 5}, 0},
		{analysis.MetricEuclidean, []float64{200, 0.75, 5}, math.Sqrt(0.5) / math.Sqrt(3)},
		{analysis.MetricSum, []float64{0, 1, 5}, -0.5 / 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %v", tt.metric, tt.values), func(t *testing.T) {
			if got := distance(dims, tt.values, tt.metric, false); !near(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
