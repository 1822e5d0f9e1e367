package params

import (
	"errors"
	"testing"
)

func sampleStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	mustSet := func(p Path, v Value) {
		if err := s.Set(p, v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	mustSet(P("Electrolyzer", "Nominal Power (kW)", "Value"), Number(5500))
	mustSet(P("Photovoltaic", "Nominal Power (kW)", "Value"), Ref([]Path{P("Electrolyzer", "Nominal Power (kW)", "Value")}, ptr(1.5), ""))
	mustSet(P("Catalyst", "Cost per kg ($)", "Value"), Number(100))
	mustSet(P("Catalyst", "Lifetime (years)", "Value"), Number(1))
	return s
}

func ptr(f float64) *float64 { return &f }

func TestStore_GetNotFound(t *testing.T) {
	s := sampleStore(t)

	_, err := s.Get(P("Catalyst", "Missing", "Value"))
	if err == nil {
		t.Fatal("expected error for missing entry, got nil")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Path.Row != "Missing" {
		t.Errorf("expected NotFoundError naming the row, got %v", err)
	}
}

func TestStore_InsertionOrder(t *testing.T) {
	s := sampleStore(t)

	tables := s.Tables()
	want := []string{"Electrolyzer", "Photovoltaic", "Catalyst"}
	if len(tables) != len(want) {
		t.Fatalf("expected %d tables, got %d", len(want), len(tables))
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Errorf("table %d: expected %s, got %s", i, want[i], tables[i])
		}
	}

	rows := s.Rows("Catalyst")
	if len(rows) != 2 || rows[0] != "Cost per kg ($)" || rows[1] != "Lifetime (years)" {
		t.Errorf("unexpected row order: %v", rows)
	}

	// Overwriting keeps the original position
	_ = s.Set(P("Electrolyzer", "Nominal Power (kW)", "Value"), Number(1))
	if s.Tables()[0] != "Electrolyzer" {
		t.Error("overwrite must not move the table")
	}
	if s.Len() != 4 {
		t.Errorf("expected 4 entries, got %d", s.Len())
	}
}

func TestStore_VersionBumpsOnSet(t *testing.T) {
	s := sampleStore(t)
	v := s.Version()

	_ = s.Set(P("Catalyst", "Cost per kg ($)", "Value"), Number(200))
	if s.Version() <= v {
		t.Errorf("expected version to increase past %d, got %d", v, s.Version())
	}
}

func TestStore_SetRejectsIncompletePath(t *testing.T) {
	s := NewStore()
	if err := s.Set(P("Table", "", "Value"), Number(1)); err == nil {
		t.Fatal("expected error for incomplete path")
	}
	if err := s.Set(P("Table", "Row", "Value"), Value{}); err == nil {
		t.Fatal("expected error for invalid value")
	}
}

func TestStore_CloneIsolation(t *testing.T) {
	s := sampleStore(t)
	before := s.Entries()

	c := s.Clone()
	_ = c.Set(P("Catalyst", "Cost per kg ($)", "Value"), Number(304))
	_ = c.Set(P("New Table", "Row", "Value"), Text("x"))

	after := s.Entries()
	if len(before) != len(after) {
		t.Fatalf("original changed size: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Path != after[i].Path || !before[i].Raw.Equal(after[i].Raw) {
			t.Errorf("original entry %s changed after clone mutation", before[i].Path)
		}
	}
	if s.HasTable("New Table") {
		t.Error("clone table leaked into original")
	}
	got, _ := c.Get(P("Catalyst", "Cost per kg ($)", "Value"))
	if got.Raw.Num != 304 {
		t.Errorf("expected clone value 304, got %v", got.Raw)
	}
}

func TestStore_TablesContaining(t *testing.T) {
	s := NewStore()
	_ = s.Set(P("Direct Capital Costs - PV", "PV", "Value"), Number(1))
	_ = s.Set(P("Indirect Capital Costs", "Fees", "Value"), Number(1))
	_ = s.Set(P("Direct Capital Costs - Electrolyzer", "Stack", "Value"), Number(1))

	got := s.TablesContaining("Direct Capital Cost")
	if len(got) != 2 || got[0] != "Direct Capital Costs - PV" || got[1] != "Direct Capital Costs - Electrolyzer" {
		t.Errorf("unexpected group: %v", got)
	}
}

func TestStore_MergeDefaults(t *testing.T) {
	s := sampleStore(t)
	defaults := NewStore()
	_ = defaults.Set(P("Catalyst", "Cost per kg ($)", "Value"), Number(1))
	_ = defaults.Set(P("Financial Input Values", "irr", "Value"), Percent(0.08))

	if err := s.Merge(defaults); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cost, _ := s.Get(P("Catalyst", "Cost per kg ($)", "Value"))
	if cost.Raw.Num != 100 {
		t.Errorf("input must win over defaults, got %v", cost.Raw)
	}
	irr, err := s.Get(P("Financial Input Values", "irr", "Value"))
	if err != nil {
		t.Fatalf("expected default to be merged: %v", err)
	}
	if irr.Raw.Num != 0.08 {
		t.Errorf("expected 0.08, got %v", irr.Raw.Num)
	}
}
