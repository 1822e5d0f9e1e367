package analysis

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hydrogen_tea/pkg/core/ingest"
	"hydrogen_tea/pkg/core/params"
)

const photocatalyticModel = `
# Catalyst

Name | Value | Comment
--- | --- | ---
Cost per kg ($) | 100 | base case
Concentration (g/L) | 0.2 |
Lifetime (years) | 5 |

# Solar-to-Hydrogen Efficiency

Name | Value
--- | ---
STH (%) | 10%

# Results

Name | Value | Path
--- | --- | ---
H2 Cost | 1 | Catalyst > Cost per kg ($) > Value

# Monte_Carlo_Analysis

Name | Value
--- | ---
Samples | 500
Seed | 42
Target Price Range ($) | 1.5; 2.5
Output | Results > H2 Cost > Value

# Parameters - Monte_Carlo_Analysis

Parameter | Name | Type | Values
--- | --- | --- | ---
Catalyst > Cost per kg ($) > Value | Catalyst cost | value | Base; 304
Solar-to-Hydrogen Efficiency > STH (%) > Value | STH | value | 5%; 15%

# Sensitivity_Analysis

Parameter | Name | Type | Values
--- | --- | --- | ---
Catalyst > Lifetime (years) > Value | Catalyst lifetime | factor | 0.5; 2

# Waterfall_Analysis

Parameter | Name | Type | Value
--- | --- | --- | ---
Solar-to-Hydrogen Efficiency > STH (%) > Value | STH | value | 15%
Catalyst > Cost per kg ($) > Value | Catalyst cost | value | 304
`

func loadModel(t *testing.T) *params.Store {
	t.Helper()
	s, err := ingest.NewLoader(nil).Load(strings.NewReader(photocatalyticModel), ingest.FormatMarkdown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestFromStore(t *testing.T) {
	s := loadModel(t)

	cfg, err := FromStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mc := cfg.MonteCarlo
	if mc == nil {
		t.Fatal("expected a Monte Carlo declaration")
	}
	if mc.Samples != 500 || mc.Seed != 42 {
		t.Errorf("expected 500 samples with seed 42, got %d / %d", mc.Samples, mc.Seed)
	}
	if len(mc.TargetRange) != 2 || mc.TargetRange[0] != 1.5 || mc.TargetRange[1] != 2.5 {
		t.Errorf("unexpected target range %v", mc.TargetRange)
	}
	if mc.OutputPath() != DefaultOutput {
		t.Errorf("expected output %s, got %s", DefaultOutput, mc.OutputPath())
	}
	if len(mc.Parameters) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(mc.Parameters))
	}
	first := mc.Parameters[0]
	if first.Name != "Catalyst cost" || first.Path != params.P("Catalyst", "Cost per kg ($)", "Value") {
		t.Errorf("unexpected first parameter %+v", first)
	}
	if first.Values.String() != "Base; 304" {
		t.Errorf("expected values 'Base; 304', got %q", first.Values.String())
	}

	if len(cfg.Sensitivity) != 1 || cfg.Sensitivity[0].Type != params.ModeFactor {
		t.Errorf("unexpected sensitivity %+v", cfg.Sensitivity)
	}
	if len(cfg.Waterfall) != 2 || cfg.Waterfall[0].Name != "STH" || cfg.Waterfall[1].Value != "304" {
		t.Errorf("waterfall should keep declaration order: %+v", cfg.Waterfall)
	}
	if cfg.Waterfall[0].Value != "15%" {
		t.Errorf("expected percent cell to survive as 15%%, got %q", cfg.Waterfall[0].Value)
	}

	if err := cfg.Validate(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFromStore_NoAnalysisTables(t *testing.T) {
	s := params.NewStore()
	_ = s.Set(params.P("Catalyst", "Cost per kg ($)", "Value"), params.Number(100))

	cfg, err := FromStore(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MonteCarlo != nil || cfg.Sensitivity != nil || cfg.Waterfall != nil {
		t.Errorf("expected an empty config, got %+v", cfg)
	}
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		in       string
		baseline bool
		num      float64
		path     bool
		wantErr  bool
	}{
		{"Base", true, 0, false, false},
		{"reference", true, 0, false, false},
		{"304", false, 304, false, false},
		{"1,500", false, 1500, false, false},
		{"12%", false, 0.12, false, false},
		{"Catalyst > Cost per kg ($) > Value", false, 0, true, false},
		{"Catalyst > Cost", false, 0, false, true},
		{"lots", false, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			it, err := ParseItem(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", it)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if it.Baseline != tt.baseline || it.Num != tt.num || (it.Path != nil) != tt.path {
				t.Errorf("unexpected item %+v", it)
			}
		})
	}
}

func TestFromStore_RejectsBadSampleCount(t *testing.T) {
	tests := []struct {
		name    string
		samples string
	}{
		{"fractional", "2.7"},
		{"huge", "1e20"},
		{"zero", "0"},
		{"negative", "-5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(photocatalyticModel, "Samples | 500", "Samples | "+tt.samples, 1)
			s, err := ingest.NewLoader(nil).Load(strings.NewReader(doc), ingest.FormatMarkdown)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, err = FromStore(s)
			if !errors.Is(err, params.ErrMalformedAnalysisConfig) {
				t.Fatalf("expected a malformed analysis error, got %v", err)
			}
			var ace *params.AnalysisConfigError
			if !errors.As(err, &ace) || ace.Item != "Samples" {
				t.Errorf("expected the error on Samples, got %v", err)
			}
		})
	}
}

func TestValidate_Malformed(t *testing.T) {
	cost := params.P("Catalyst", "Cost per kg ($)", "Value")
	capex := params.P("Direct Capital Costs", "Catalyst", "Value")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"no samples", Config{MonteCarlo: &MonteCarlo{Parameters: []Parameter{{Name: "c", Path: cost, Values: Values{"1", "2"}}}}}},
		{"too many samples", Config{MonteCarlo: &MonteCarlo{Samples: MaxSamples + 1, Parameters: []Parameter{{Name: "c", Path: cost, Values: Values{"1", "2"}}}}}},
		{"unknown path", Config{MonteCarlo: &MonteCarlo{Samples: 10, Parameters: []Parameter{{Name: "c", Path: params.P("Nope", "X", "Value"), Values: Values{"1", "2"}}}}}},
		{"reference target", Config{MonteCarlo: &MonteCarlo{Samples: 10, Parameters: []Parameter{{Name: "c", Path: capex, Values: Values{"1", "2"}}}}}},
		{"triangular arity", Config{MonteCarlo: &MonteCarlo{Samples: 10, Parameters: []Parameter{{Name: "c", Path: cost, Distribution: DistTriangular, Values: Values{"1", "2"}}}}}},
		{"unknown distribution", Config{MonteCarlo: &MonteCarlo{Samples: 10, Parameters: []Parameter{{Name: "c", Path: cost, Distribution: "cauchy", Values: Values{"1", "2"}}}}}},
		{"non numeric value", Config{MonteCarlo: &MonteCarlo{Samples: 10, Parameters: []Parameter{{Name: "c", Path: cost, Values: Values{"cheap", "2"}}}}}},
		{"bad target range", Config{MonteCarlo: &MonteCarlo{Samples: 10, TargetRange: []float64{1}, Parameters: []Parameter{{Name: "c", Path: cost, Values: Values{"1", "2"}}}}}},
		{"empty sensitivity", Config{Sensitivity: []SensitivityParam{{Name: "c", Path: cost}}}},
		{"sensitivity factor on text", Config{Sensitivity: []SensitivityParam{{Name: "c", Path: params.P("Catalyst", "Supplier", "Value"), Type: params.ModeFactor, Values: Values{"2"}}}}},
		{"waterfall bad value", Config{Waterfall: []WaterfallStep{{Name: "c", Path: cost, Value: "n/a"}}}},
		{"duplicate case", Config{Comparative: []Case{{Name: "a", Model: "a.md"}, {Name: "a", Model: "b.md"}}}},
	}

	s := params.NewStore()
	_ = s.Set(cost, params.Number(100))
	_ = s.Set(params.P("Catalyst", "Supplier", "Value"), params.Text("acme"))
	_ = s.Set(capex, params.Ref([]params.Path{cost}, nil, ""))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(s)
			if !errors.Is(err, params.ErrMalformedAnalysisConfig) {
				t.Fatalf("expected ErrMalformedAnalysisConfig, got %v", err)
			}
			var ae *params.AnalysisConfigError
			if !errors.As(err, &ae) {
				t.Fatalf("expected *AnalysisConfigError, got %T", err)
			}
		})
	}
}

func TestDecode_Formats(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		doc  string
	}{
		{"json", ".json", `{
			"monte_carlo": {
				"samples": 200,
				"seed": 7,
				"parameters": [
					{"name": "Catalyst cost", "path": "Catalyst > Cost per kg ($) > Value", "values": [50, "Base"]}
				]
			},
			"waterfall": [{"name": "cheap", "path": "Catalyst > Cost per kg ($) > Value", "value": "50"}],
		}`},
		{"hjson", ".hjson", `{
			# sampled once per run
			monte_carlo: {
				samples: 200
				seed: 7
				parameters: [
					{
						name: Catalyst cost
						path: Catalyst > Cost per kg ($) > Value
						values: 50; Base
					}
				]
			}
			waterfall: [
				{
					name: cheap
					path: Catalyst > Cost per kg ($) > Value
					value: "50"
				}
			]
		}`},
		{"yaml", ".yaml", `
monte_carlo:
  samples: 200
  seed: 7
  parameters:
    - name: Catalyst cost
      path: Catalyst > Cost per kg ($) > Value
      values: [50, Base]
waterfall:
  - name: cheap
    path: Catalyst > Cost per kg ($) > Value
    value: "50"
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Decode([]byte(tt.doc), tt.ext)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.MonteCarlo == nil || cfg.MonteCarlo.Samples != 200 || cfg.MonteCarlo.Seed != 7 {
				t.Fatalf("unexpected monte carlo config %+v", cfg.MonteCarlo)
			}
			p := cfg.MonteCarlo.Parameters[0]
			if p.Path != params.P("Catalyst", "Cost per kg ($)", "Value") {
				t.Errorf("unexpected path %v", p.Path)
			}
			if p.Values.String() != "50; Base" {
				t.Errorf("expected values '50; Base', got %q", p.Values.String())
			}
			if len(cfg.Waterfall) != 1 || cfg.Waterfall[0].Value != "50" {
				t.Errorf("unexpected waterfall %+v", cfg.Waterfall)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "analysis.yml")
	doc := "sensitivity:\n  - name: cost\n    path: Catalyst > Cost per kg ($) > Value\n    values: 50; 200\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Sensitivity) != 1 || len(cfg.Sensitivity[0].Values) != 2 {
		t.Errorf("unexpected sensitivity %+v", cfg.Sensitivity)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := Decode([]byte("x"), ".toml"); err == nil {
		t.Error("expected error for an unsupported format")
	}
}

func TestMerge(t *testing.T) {
	own := &Config{Waterfall: []WaterfallStep{{Name: "own"}}}
	file := &Config{
		MonteCarlo: &MonteCarlo{Samples: 10},
		Waterfall:  []WaterfallStep{{Name: "file"}},
	}
	own.Merge(file)

	if own.MonteCarlo == nil || own.MonteCarlo.Samples != 10 {
		t.Error("expected Monte Carlo to be filled in")
	}
	if own.Waterfall[0].Name != "own" {
		t.Error("declared analyses must not be replaced")
	}
	if got := own.OutputPaths(); len(got) != 1 || got[0] != DefaultOutput {
		t.Errorf("expected default output, got %v", got)
	}
}
