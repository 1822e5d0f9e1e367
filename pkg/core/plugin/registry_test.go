package plugin

import (
	"errors"
	"reflect"
	"testing"

	"hydrogen_tea/pkg/core/params"
)

func factory(name string) Factory {
	return func() Plugin { return &mockPlugin{name: name} }
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Capital_Cost_Plugin", "capital_cost"},
		{"capital cost", "capital_cost"},
		{"  Levelized-Cost ", "levelized_cost"},
		{"inflation", "inflation"},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register("capital_cost", factory("capital_cost"), 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := reg.Register("Capital Cost", factory("dup"), 1); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	got, err := reg.Lookup("Capital_Cost_Plugin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Position != 3 {
		t.Errorf("expected position 3, got %d", got.Position)
	}

	_, err = reg.Lookup("Hydrogen_Storage_Plugin")
	if !errors.Is(err, params.ErrUnknownPlugin) {
		t.Errorf("expected ErrUnknownPlugin, got %v", err)
	}
}

func TestRegistry_NamesAndClear(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("levelized_cost", factory("levelized_cost"), 10)
	_ = reg.Register("inflation", factory("inflation"), 0)
	_ = reg.Register("capital_cost", factory("capital_cost"), 3)

	want := []string{"inflation", "capital_cost", "levelized_cost"}
	if !reflect.DeepEqual(reg.Names(), want) {
		t.Errorf("expected %v, got %v", want, reg.Names())
	}
	if reg.Count() != 3 {
		t.Errorf("expected 3, got %d", reg.Count())
	}
	reg.Clear()
	if reg.Count() != 0 {
		t.Errorf("expected empty registry, got %d", reg.Count())
	}
}

func TestRegistry_BuildFromWorkflow(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register("capital_cost", factory("capital_cost"), 3)
	_ = reg.Register("levelized_cost", factory("levelized_cost"), 10)
	_ = reg.Register("inflation", factory("inflation"), 0)

	s := params.NewStore()
	_ = s.Set(params.P(WorkflowTable, "Levelized_Cost_Plugin", "Type"), params.Text("plugin"))
	_ = s.Set(params.P(WorkflowTable, "initial_equity_depreciable_capital", "Type"), params.Text("function"))
	_ = s.Set(params.P(WorkflowTable, "Capital_Cost_Plugin", "Position"), params.Number(20))
	_ = s.Set(params.P(WorkflowTable, "Inflation_Plugin", "Position"), params.Number(0))

	steps, err := WorkflowFromStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected function rows to be skipped, got %d steps", len(steps))
	}

	p, err := reg.Build(steps, Env{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"inflation", "levelized_cost", "capital_cost"}
	if !reflect.DeepEqual(p.Names(), want) {
		t.Errorf("expected %v, got %v", want, p.Names())
	}
}

func TestRegistry_BuildUnknownPlugin(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Build([]Step{{Name: "Hydrogen_Storage_Plugin"}}, Env{})
	var upe *params.UnknownPluginError
	if !errors.As(err, &upe) {
		t.Fatalf("expected *UnknownPluginError, got %v", err)
	}
	if upe.Name != "Hydrogen_Storage_Plugin" {
		t.Errorf("expected name to be reported, got %q", upe.Name)
	}
}

func TestWorkflowFromStore_Errors(t *testing.T) {
	if _, err := WorkflowFromStore(params.NewStore()); err == nil {
		t.Error("expected missing workflow table to fail")
	}

	s := params.NewStore()
	_ = s.Set(params.P(WorkflowTable, "Inflation_Plugin", "Position"), params.Number(1.5))
	if _, err := WorkflowFromStore(s); err == nil {
		t.Error("expected fractional position to fail")
	}
}
