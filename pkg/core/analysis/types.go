// Package analysis declares the perturbation analyses that can be run against
// a model: Monte Carlo, sensitivity, waterfall and comparative. Declarations
// come either from the model's own tables or from a standalone file.
package analysis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"hydrogen_tea/pkg/core/params"
)

// DefaultOutput is the entry every analysis reports unless told otherwise.
var DefaultOutput = params.P("Results", "H2 Cost", "Value")

// =============================================================================
// DISTRIBUTIONS
// =============================================================================

// Distribution names how a Monte Carlo parameter is sampled.
type Distribution string

const (
	DistUniform    Distribution = "uniform"
	DistNormal     Distribution = "normal"
	DistTriangular Distribution = "triangular"
	DistLognormal  Distribution = "lognormal"
	DistChoice     Distribution = "choice"
)

// Arity returns how many values the distribution takes; -1 means one or more.
func (d Distribution) Arity() int {
	switch d {
	case "", DistUniform, DistNormal, DistLognormal:
		return 2
	case DistTriangular:
		return 3
	case DistChoice:
		return -1
	}
	return 0
}

// Metric selects how development distance is measured.
type Metric string

const (
	MetricCityblock Metric = "cityblock"
	MetricEuclidean Metric = "euclidean"
	// MetricSum adds signed normalized values, so distances may be negative.
	MetricSum Metric = "sum"
)

// =============================================================================
// VALUE LISTS
// =============================================================================

// Values is a list of value cells. Each item is a number, a path into the
// model, or one of the baseline markers "Base" / "Reference".
// It decodes from a "a; b" string or from a list of strings and numbers.
type Values []string

func (v *Values) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = params.SplitList(s)
		return nil
	}
	var items []interface{}
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("values: expected a string or a list, got %s", string(b))
	}
	out, err := valueItems(items)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func (v *Values) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		*v = params.SplitList(s)
		return nil
	}
	var items []interface{}
	if err := unmarshal(&items); err != nil {
		return err
	}
	out, err := valueItems(items)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func valueItems(items []interface{}) (Values, error) {
	out := make(Values, 0, len(items))
	for _, it := range items {
		switch x := it.(type) {
		case string:
			out = append(out, strings.TrimSpace(x))
		case float64:
			out = append(out, strconv.FormatFloat(x, 'g', -1, 64))
		case int:
			out = append(out, strconv.Itoa(x))
		default:
			return nil, fmt.Errorf("values: unsupported item %v (%T)", it, it)
		}
	}
	return out, nil
}

// String renders the list the way it is written in a table cell.
func (v Values) String() string { return strings.Join(v, "; ") }

// Item is one parsed entry of a Values list.
type Item struct {
	Baseline bool
	Num      float64
	Percent  bool
	Path     *params.Path
}

var baselineMarkers = map[string]bool{"base": true, "reference": true}

// ParseItem classifies a value cell.
func ParseItem(s string) (Item, error) {
	s = strings.TrimSpace(s)
	if baselineMarkers[strings.ToLower(s)] {
		return Item{Baseline: true}, nil
	}
	if strings.Contains(s, ">") {
		p, err := params.ParsePath(s)
		if err != nil {
			return Item{}, err
		}
		return Item{Path: &p}, nil
	}
	f, pct, err := params.ParseNumber(s)
	if err != nil {
		return Item{}, fmt.Errorf("value %q is neither a number, a path nor Base/Reference", s)
	}
	return Item{Num: f, Percent: pct}, nil
}

// Items parses every entry of the list.
func (v Values) Items() ([]Item, error) {
	out := make([]Item, len(v))
	for i, s := range v {
		it, err := ParseItem(s)
		if err != nil {
			return nil, err
		}
		out[i] = it
	}
	return out, nil
}

// =============================================================================
// DECLARATIONS
// =============================================================================

// Parameter is one Monte Carlo dimension.
type Parameter struct {
	Name         string              `json:"name" yaml:"name"`
	Path         params.Path         `json:"path" yaml:"path"`
	Type         params.OverrideMode `json:"type,omitempty" yaml:"type,omitempty"`
	Distribution Distribution        `json:"distribution,omitempty" yaml:"distribution,omitempty"`
	Values       Values              `json:"values" yaml:"values"`
}

// MaxSamples bounds the sample count of one Monte Carlo run. Every draw is
// held in memory before evaluation starts.
const MaxSamples = 1_000_000

// MonteCarlo configures random sampling of the model's parameters.
type MonteCarlo struct {
	Samples      int         `json:"samples" yaml:"samples"`
	Seed         int64       `json:"seed,omitempty" yaml:"seed,omitempty"`
	TargetRange  []float64   `json:"target_range,omitempty" yaml:"target_range,omitempty"`
	Output       params.Path `json:"output,omitempty" yaml:"output,omitempty"`
	Metric       Metric      `json:"metric,omitempty" yaml:"metric,omitempty"`
	LogNormalize bool        `json:"log_normalize,omitempty" yaml:"log_normalize,omitempty"`
	Parameters   []Parameter `json:"parameters" yaml:"parameters"`
}

// SensitivityParam is varied one value at a time against the baseline.
type SensitivityParam struct {
	Name   string              `json:"name" yaml:"name"`
	Path   params.Path         `json:"path" yaml:"path"`
	Type   params.OverrideMode `json:"type,omitempty" yaml:"type,omitempty"`
	Values Values              `json:"values" yaml:"values"`
}

// WaterfallStep is applied on top of every preceding step.
type WaterfallStep struct {
	Name  string              `json:"name" yaml:"name"`
	Path  params.Path         `json:"path" yaml:"path"`
	Type  params.OverrideMode `json:"type,omitempty" yaml:"type,omitempty"`
	Value string              `json:"value" yaml:"value"`
}

// Case names a model file compared against the others.
type Case struct {
	Name  string `json:"name" yaml:"name"`
	Model string `json:"model" yaml:"model"`
}

// Config groups every analysis declared for a model.
type Config struct {
	Outputs     []params.Path      `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	MonteCarlo  *MonteCarlo        `json:"monte_carlo,omitempty" yaml:"monte_carlo,omitempty"`
	Sensitivity []SensitivityParam `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Waterfall   []WaterfallStep    `json:"waterfall,omitempty" yaml:"waterfall,omitempty"`
	Comparative []Case             `json:"comparative,omitempty" yaml:"comparative,omitempty"`
}

// OutputPaths returns the configured outputs, or DefaultOutput.
func (c *Config) OutputPaths() []params.Path {
	if len(c.Outputs) == 0 {
		return []params.Path{DefaultOutput}
	}
	return c.Outputs
}

// OutputPath returns the entry the Monte Carlo run filters and reports on.
func (m *MonteCarlo) OutputPath() params.Path {
	if m.Output.IsZero() {
		return DefaultOutput
	}
	return m.Output
}

// Merge fills the analyses missing from c with those declared in o.
func (c *Config) Merge(o *Config) {
	if o == nil {
		return
	}
	if len(c.Outputs) == 0 {
		c.Outputs = o.Outputs
	}
	if c.MonteCarlo == nil {
		c.MonteCarlo = o.MonteCarlo
	}
	if len(c.Sensitivity) == 0 {
		c.Sensitivity = o.Sensitivity
	}
	if len(c.Waterfall) == 0 {
		c.Waterfall = o.Waterfall
	}
	if len(c.Comparative) == 0 {
		c.Comparative = o.Comparative
	}
}
