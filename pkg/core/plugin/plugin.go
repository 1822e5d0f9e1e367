// Package plugin defines the computation-stage contract and runs ordered
// pipelines of stages against a Parameter Store.
package plugin

import (
	"fmt"
	"sort"

	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// =============================================================================
// PLUGIN INTERFACE
// =============================================================================

// Plugin is one stage of the pipeline. Implementations hold no state between
// invocations: Run must be a deterministic function of its inputs.
type Plugin interface {
	// Name returns the registry identifier
	Name() string

	// Requires declares the entries the stage reads. The catalog exposes the
	// store's structure so stages can address table groups.
	Requires(cat params.Catalog) []Input

	// Run derives new entries from the resolved inputs
	Run(in *Inputs, env Env) ([]Output, error)
}

// TableSource hands out shared, read-only lookup tables.
type TableSource interface {
	Table(name string) (*lookup.Table, error)
}

// Env carries the read-only collaborators a stage may consult.
type Env struct {
	Tables TableSource
	Rules  *resolve.Rules
}

// Input declares one entry a stage reads. KindInvalid accepts any literal.
type Input struct {
	Path     params.Path
	Kind     params.Kind
	Optional bool
}

// Num declares a required numeric input.
func Num(p params.Path) Input { return Input{Path: p, Kind: params.KindNumber} }

// OptNum declares an optional numeric input.
func OptNum(p params.Path) Input { return Input{Path: p, Kind: params.KindNumber, Optional: true} }

// Str declares a required text or file-reference input.
func Str(p params.Path) Input { return Input{Path: p, Kind: params.KindText} }

// OptStr declares an optional text or file-reference input.
func OptStr(p params.Path) Input { return Input{Path: p, Kind: params.KindText, Optional: true} }

// OptSeries declares an optional series input.
func OptSeries(p params.Path) Input { return Input{Path: p, Kind: params.KindSeries, Optional: true} }

// Any declares a required input of any literal kind.
func Any(p params.Path) Input { return Input{Path: p} }

// accepts reports whether a resolved value satisfies the declared kind.
func (i Input) accepts(v params.Value) bool {
	switch i.Kind {
	case params.KindInvalid:
		return true
	case params.KindNumber:
		return v.Kind == params.KindNumber || v.Kind == params.KindPercent
	case params.KindText:
		return v.Kind == params.KindText || v.Kind == params.KindFileRef
	case params.KindSeries:
		return v.Kind == params.KindSeries || v.Kind == params.KindNumber
	}
	return v.Kind == i.Kind
}

// Output is an entry written back to the store after the stage ran.
type Output struct {
	Path  params.Path
	Value params.Value
	Unit  string
}

// Emit builds a numeric output.
func Emit(p params.Path, v float64) Output {
	return Output{Path: p, Value: params.Number(v)}
}

// EmitSeries builds a series output.
func EmitSeries(p params.Path, v []float64) Output {
	return Output{Path: p, Value: params.Series(v)}
}

// =============================================================================
// RESOLVED INPUTS
// =============================================================================

// Inputs holds the resolved values of a stage's declared inputs. Accessors
// record the first failure; callers check Err once after reading.
type Inputs struct {
	plugin  string
	values  map[params.Path]params.Value
	order   []params.Path
	percent map[params.Path]bool
	err     error
}

// NewInputs builds an input set directly, for tests and ad-hoc evaluation.
// Paths are listed in table, row, field order.
func NewInputs(plugin string, values map[params.Path]params.Value) *Inputs {
	if values == nil {
		values = make(map[params.Path]params.Value)
	}
	order := make([]params.Path, 0, len(values))
	percent := make(map[params.Path]bool)
	for p, v := range values {
		order = append(order, p)
		if v.Kind == params.KindPercent {
			percent[p] = true
		}
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Row != b.Row {
			return a.Row < b.Row
		}
		return a.Field < b.Field
	})
	return &Inputs{plugin: plugin, values: values, order: order, percent: percent}
}

// Paths lists the resolved inputs. Inputs built by a pipeline keep the
// order the stage declared them in.
func (in *Inputs) Paths() []params.Path {
	return append([]params.Path(nil), in.order...)
}

// Has reports whether an input was resolved. Optional inputs that were
// absent from the store are not present.
func (in *Inputs) Has(p params.Path) bool {
	_, ok := in.values[p]
	return ok
}

// Kind reports the kind an input resolved to, KindInvalid when absent.
// Percent literals resolve to KindNumber; see Percent.
func (in *Inputs) Kind(p params.Path) params.Kind {
	return in.values[p].Kind
}

// Percent reports whether the input was written as a percent literal in the
// store. Its resolved value is the fraction.
func (in *Inputs) Percent(p params.Path) bool {
	return in.percent[p]
}

func (in *Inputs) fail(p params.Path, err error) {
	if in.err == nil {
		in.err = &params.PluginInputError{Plugin: in.plugin, Path: p, Err: err}
	}
}

// Number returns a numeric input.
func (in *Inputs) Number(p params.Path) float64 {
	v, ok := in.values[p]
	if !ok {
		in.fail(p, fmt.Errorf("input not declared or not present"))
		return 0
	}
	f, ok := v.Float()
	if !ok {
		in.fail(p, &resolve.TypeError{Path: p, Want: "number", Got: v.Kind})
		return 0
	}
	return f
}

// NumberOr returns a numeric input or def when it is absent.
func (in *Inputs) NumberOr(p params.Path, def float64) float64 {
	if !in.Has(p) {
		return def
	}
	return in.Number(p)
}

// Text returns a text or file-reference input.
func (in *Inputs) Text(p params.Path) string {
	v, ok := in.values[p]
	if !ok {
		in.fail(p, fmt.Errorf("input not declared or not present"))
		return ""
	}
	if v.Kind != params.KindText && v.Kind != params.KindFileRef {
		in.fail(p, &resolve.TypeError{Path: p, Want: "text", Got: v.Kind})
		return ""
	}
	return v.Str
}

// Series returns a series input; a scalar is broadcast to length n.
func (in *Inputs) Series(p params.Path, n int) []float64 {
	v, ok := in.values[p]
	if !ok {
		in.fail(p, fmt.Errorf("input not declared or not present"))
		return nil
	}
	switch v.Kind {
	case params.KindSeries:
		if len(v.Series) != n {
			in.fail(p, fmt.Errorf("series length %d, expected %d", len(v.Series), n))
			return nil
		}
		out := make([]float64, n)
		copy(out, v.Series)
		return out
	case params.KindNumber:
		out := make([]float64, n)
		for i := range out {
			out[i] = v.Num
		}
		return out
	}
	in.fail(p, &resolve.TypeError{Path: p, Want: "series", Got: v.Kind})
	return nil
}

// Err returns the first accessor failure.
func (in *Inputs) Err() error { return in.err }
