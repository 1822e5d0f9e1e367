// Package resolve computes the concrete value of store entries, following
// reference chains, detecting cycles and applying combination rules.
package resolve

import (
	"errors"
	"fmt"

	"hydrogen_tea/pkg/core/params"
)

// TypeError reports a resolved value of the wrong kind.
type TypeError struct {
	Path params.Path
	Want string
	Got  params.Kind
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, resolved to %s", e.Path, e.Want, e.Got)
}

// Resolver is bound to one store. Results are memoized and tagged with the
// store version; any Set on the store invalidates the memo.
// A Resolver is not safe for concurrent use.
type Resolver struct {
	store   *params.Store
	rules   *Rules
	memo    map[params.Path]params.Value
	version uint64
}

// New creates a resolver for store. A nil rules registry selects Default().
func New(store *params.Store, rules *Rules) *Resolver {
	if rules == nil {
		rules = Default()
	}
	return &Resolver{
		store:   store,
		rules:   rules,
		memo:    make(map[params.Path]params.Value),
		version: store.Version(),
	}
}

// Store returns the store the resolver reads.
func (r *Resolver) Store() *params.Store { return r.store }

func (r *Resolver) sync() {
	if r.version != r.store.Version() {
		r.memo = make(map[params.Path]params.Value)
		r.version = r.store.Version()
	}
}

// Resolve returns the literal value of the entry at p. Percent literals
// resolve to plain numbers.
func (r *Resolver) Resolve(p params.Path) (params.Value, error) {
	r.sync()
	return r.resolve(p, nil)
}

func (r *Resolver) resolve(p params.Path, stack []params.Path) (params.Value, error) {
	if v, ok := r.memo[p]; ok {
		return v, nil
	}
	for i, visited := range stack {
		if visited == p {
			cycle := make([]params.Path, 0, len(stack)-i+1)
			cycle = append(cycle, stack[i:]...)
			cycle = append(cycle, p)
			return params.Value{}, &params.CycleError{Cycle: cycle}
		}
	}

	e, err := r.store.Get(p)
	if err != nil {
		return params.Value{}, err
	}

	stack = append(stack, p)
	v, err := r.evaluate(e, stack)
	if err != nil {
		return params.Value{}, err
	}
	r.memo[p] = v
	return v, nil
}

func (r *Resolver) evaluate(e params.Entry, stack []params.Path) (params.Value, error) {
	if !e.Raw.IsReference() {
		if e.Raw.Kind == params.KindPercent {
			return params.Number(e.Raw.Num), nil
		}
		return e.Raw, nil
	}

	ref := e.Raw.Ref

	// A bare single path forwards the target unchanged, whatever its kind
	if len(ref.Paths) == 1 && ref.Base == nil {
		v, err := r.resolve(ref.Paths[0], stack)
		if err != nil {
			return params.Value{}, wrapChild(e.Path, err)
		}
		return v, nil
	}

	combine, err := r.rules.Lookup(ref.Rule)
	if err != nil {
		return params.Value{}, &params.PluginInputError{Path: e.Path, Err: err}
	}

	inputs := make([]float64, len(ref.Paths))
	for i, target := range ref.Paths {
		v, err := r.resolve(target, stack)
		if err != nil {
			return params.Value{}, wrapChild(e.Path, err)
		}
		if v.Kind != params.KindNumber {
			return params.Value{}, &TypeError{Path: target, Want: "number", Got: v.Kind}
		}
		inputs[i] = v.Num
	}

	out, err := combine(ref.Base, inputs)
	if err != nil {
		return params.Value{}, fmt.Errorf("%s: %w", e.Path, err)
	}
	return params.Number(out), nil
}

// wrapChild adds the referring entry as context. Cycle errors pass through
// untouched so the reported chain stays readable.
func wrapChild(from params.Path, err error) error {
	var cycle *params.CycleError
	if errors.As(err, &cycle) {
		return err
	}
	return fmt.Errorf("via %s: %w", from, err)
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

// Number resolves p and requires a numeric result.
func (r *Resolver) Number(p params.Path) (float64, error) {
	v, err := r.Resolve(p)
	if err != nil {
		return 0, err
	}
	if v.Kind != params.KindNumber {
		return 0, &TypeError{Path: p, Want: "number", Got: v.Kind}
	}
	return v.Num, nil
}

// NumberOr returns def when the entry at p does not exist. Errors of an
// existing entry are still reported.
func (r *Resolver) NumberOr(p params.Path, def float64) (float64, error) {
	if !r.store.Has(p) {
		return def, nil
	}
	return r.Number(p)
}

// Text resolves p and requires a text or file reference.
func (r *Resolver) Text(p params.Path) (string, error) {
	v, err := r.Resolve(p)
	if err != nil {
		return "", err
	}
	if v.Kind != params.KindText && v.Kind != params.KindFileRef {
		return "", &TypeError{Path: p, Want: "text", Got: v.Kind}
	}
	return v.Str, nil
}

// Series resolves p and requires a series.
func (r *Resolver) Series(p params.Path) ([]float64, error) {
	v, err := r.Resolve(p)
	if err != nil {
		return nil, err
	}
	if v.Kind != params.KindSeries {
		return nil, &TypeError{Path: p, Want: "series", Got: v.Kind}
	}
	return v.Series, nil
}

// ResolveAll resolves every entry of the store and joins all failures.
// Run after the pipeline, it reports references left dangling.
func (r *Resolver) ResolveAll() error {
	var errs []error
	for _, e := range r.store.Entries() {
		if _, err := r.Resolve(e.Path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Snapshot returns the resolved value of every entry that resolves.
func (r *Resolver) Snapshot() map[params.Path]params.Value {
	out := make(map[params.Path]params.Value, r.store.Len())
	for _, e := range r.store.Entries() {
		if v, err := r.Resolve(e.Path); err == nil {
			out[e.Path] = v
		}
	}
	return out
}
