package plugin

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"hydrogen_tea/pkg/core/params"
)

// mockPlugin implements Plugin with overridable behavior
type mockPlugin struct {
	name       string
	requiresFn func(cat params.Catalog) []Input
	runFn      func(in *Inputs, env Env) ([]Output, error)
}

func (m *mockPlugin) Name() string { return m.name }

func (m *mockPlugin) Requires(cat params.Catalog) []Input {
	if m.requiresFn != nil {
		return m.requiresFn(cat)
	}
	return nil
}

func (m *mockPlugin) Run(in *Inputs, env Env) ([]Output, error) {
	if m.runFn != nil {
		return m.runFn(in, env)
	}
	return nil, nil
}

var (
	demand   = params.P("Demand", "Daily (kg)", "Value")
	doubled  = params.P("Demand", "Doubled (kg)", "Value")
	tripled  = params.P("Demand", "Tripled (kg)", "Value")
	optional = params.P("Demand", "Peak Factor", "Value")
)

// recorder returns a plugin that appends its name to *order when run.
func recorder(name string, order *[]string) *mockPlugin {
	return &mockPlugin{
		name: name,
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			*order = append(*order, name)
			return nil, nil
		},
	}
}

func TestPipeline_OrdersByPositionStable(t *testing.T) {
	var order []string
	p := NewPipeline(Env{},
		Stage{Plugin: recorder("c", &order), Position: 3},
		Stage{Plugin: recorder("a1", &order), Position: 1},
		Stage{Plugin: recorder("b", &order), Position: 2},
		Stage{Plugin: recorder("a2", &order), Position: 1},
	)

	if _, err := p.Run(context.Background(), params.NewStore()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"a1", "a2", "b", "c"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
	if !reflect.DeepEqual(p.Names(), want) {
		t.Errorf("expected names %v, got %v", want, p.Names())
	}
}

func TestPipeline_LaterStageReadsEarlierOutput(t *testing.T) {
	double := &mockPlugin{
		name:       "double",
		requiresFn: func(params.Catalog) []Input { return []Input{Num(demand), OptNum(optional)} },
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			v := in.Number(demand) * 2 * in.NumberOr(optional, 1)
			return []Output{Emit(doubled, v)}, in.Err()
		},
	}
	triple := &mockPlugin{
		name:       "triple",
		requiresFn: func(params.Catalog) []Input { return []Input{Num(doubled)} },
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			return []Output{Emit(tripled, in.Number(doubled)*1.5)}, in.Err()
		},
	}

	s := params.NewStore()
	_ = s.Set(demand, params.Number(100))

	r, err := NewPipeline(Env{}, Stage{triple, 2}, Stage{double, 1}).Run(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := r.Number(tripled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 300 {
		t.Errorf("expected 300, got %v", got)
	}
	e, _ := s.Get(doubled)
	if e.Origin != "double" {
		t.Errorf("expected origin double, got %q", e.Origin)
	}
}

func TestPipeline_MissingInputIsPluginInputError(t *testing.T) {
	needy := &mockPlugin{
		name:       "needy",
		requiresFn: func(params.Catalog) []Input { return []Input{Num(demand)} },
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			t.Fatal("run should not be reached")
			return nil, nil
		},
	}

	_, err := NewPipeline(Env{}, Stage{Plugin: needy}).Run(context.Background(), params.NewStore())
	if !errors.Is(err, params.ErrPluginInput) {
		t.Fatalf("expected ErrPluginInput, got %v", err)
	}
	if !errors.Is(err, params.ErrNotFound) {
		t.Errorf("expected the cause to stay visible, got %v", err)
	}
	var pie *params.PluginInputError
	if !errors.As(err, &pie) || pie.Plugin != "needy" || pie.Path != demand {
		t.Errorf("unexpected error detail: %#v", pie)
	}
}

func TestPipeline_WrongKindIsPluginInputError(t *testing.T) {
	pl := &mockPlugin{
		name:       "typed",
		requiresFn: func(params.Catalog) []Input { return []Input{Num(demand)} },
	}
	s := params.NewStore()
	_ = s.Set(demand, params.Text("lots"))

	_, err := NewPipeline(Env{}, Stage{Plugin: pl}).Run(context.Background(), s)
	if !errors.Is(err, params.ErrPluginInput) {
		t.Fatalf("expected ErrPluginInput, got %v", err)
	}
}

func TestPipeline_UndeclaredReadFails(t *testing.T) {
	sneaky := &mockPlugin{
		name: "sneaky",
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			_ = in.Number(demand)
			return nil, in.Err()
		},
	}
	s := params.NewStore()
	_ = s.Set(demand, params.Number(1))

	_, err := NewPipeline(Env{}, Stage{Plugin: sneaky}).Run(context.Background(), s)
	if !errors.Is(err, params.ErrPluginInput) {
		t.Fatalf("expected ErrPluginInput, got %v", err)
	}
}

func TestPipeline_StopsOnCancelledContext(t *testing.T) {
	var order []string
	ctx, cancel := context.WithCancel(context.Background())
	first := &mockPlugin{
		name: "first",
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			order = append(order, "first")
			cancel()
			return nil, nil
		},
	}

	_, err := NewPipeline(Env{}, Stage{first, 0}, Stage{recorder("second", &order), 1}).Run(ctx, params.NewStore())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(order) != 1 {
		t.Errorf("expected only the first stage to run, got %v", order)
	}
}

func TestInputs_SeriesBroadcast(t *testing.T) {
	in := NewInputs("x", map[params.Path]params.Value{
		demand:  params.Number(2),
		doubled: params.Series([]float64{1, 2}),
	})

	if got := in.Series(demand, 3); !reflect.DeepEqual(got, []float64{2, 2, 2}) {
		t.Errorf("expected broadcast, got %v", got)
	}
	if got := in.Series(doubled, 2); !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("expected series copy, got %v", got)
	}
	_ = in.Series(doubled, 5)
	if in.Err() == nil {
		t.Error("expected length mismatch to be reported")
	}
}

func TestPipeline_InputsKeepPercentLiterals(t *testing.T) {
	var sawPercent, sawDemandPercent bool
	var share float64
	stage := &mockPlugin{
		name:       "share",
		requiresFn: func(params.Catalog) []Input { return []Input{Num(demand), Num(optional)} },
		runFn: func(in *Inputs, env Env) ([]Output, error) {
			sawPercent = in.Percent(optional)
			sawDemandPercent = in.Percent(demand)
			share = in.Number(optional)
			return nil, in.Err()
		},
	}

	s := params.NewStore()
	_ = s.Set(demand, params.Number(100))
	_ = s.Set(optional, params.Percent(0.25))

	if _, err := NewPipeline(Env{}, Stage{stage, 1}).Run(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sawPercent {
		t.Error("expected the percent literal to be reported as percent")
	}
	if sawDemandPercent {
		t.Error("expected a plain number not to be reported as percent")
	}
	if share != 0.25 {
		t.Errorf("expected the fraction 0.25, got %v", share)
	}
}
