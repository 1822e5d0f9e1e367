package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopMetrics(t *testing.T) {
	var m Metrics = Noop{}
	m.ObserveScenario("monte_carlo", StatusOK, time.Millisecond)
	m.ObserveAnalysis("monte_carlo", time.Second)
}

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewProm("h2tea", reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.ObserveScenario("monte_carlo", StatusOK, 2*time.Millisecond)
	m.ObserveScenario("monte_carlo", StatusOK, 3*time.Millisecond)
	m.ObserveScenario("monte_carlo", StatusFailed, time.Millisecond)
	m.ObserveAnalysis("monte_carlo", time.Second)

	if got := testutil.ToFloat64(m.scenarios.WithLabelValues("monte_carlo", StatusOK)); got != 2 {
		t.Errorf("expected 2 ok scenarios, got %v", got)
	}
	if got := testutil.ToFloat64(m.scenarios.WithLabelValues("monte_carlo", StatusFailed)); got != 1 {
		t.Errorf("expected 1 failed scenario, got %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("monte_carlo")); got != 1 {
		t.Errorf("expected 1 analysis run, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"h2tea_scenarios_total",
		"h2tea_scenario_duration_seconds",
		"h2tea_analysis_runs_total",
		"h2tea_analysis_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("expected metric family %s", want)
		}
	}
}

func TestNewProm_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewProm("h2tea", reg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewProm("h2tea", reg); err == nil {
		t.Fatal("expected error registering the same collectors twice")
	}
}

func TestHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
