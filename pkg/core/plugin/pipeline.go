package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// Stage binds a plugin instance to its position in the run order.
type Stage struct {
	Plugin   Plugin
	Position int
}

// Pipeline runs stages in ascending position. Declaration order breaks ties.
// A Pipeline holds no per-run state and may be shared across scenarios.
type Pipeline struct {
	stages []Stage
	env    Env
}

// NewPipeline sorts the stages once.
func NewPipeline(env Env, stages ...Stage) *Pipeline {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	if env.Rules == nil {
		env.Rules = resolve.Default()
	}
	return &Pipeline{stages: sorted, env: env}
}

// Stages returns the stages in run order.
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.stages))
	copy(out, p.stages)
	return out
}

// Names returns the plugin names in run order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Plugin.Name()
	}
	return names
}

// Rules returns the combination rules the pipeline resolves with.
func (p *Pipeline) Rules() *resolve.Rules { return p.env.Rules }

// Run executes every stage against store, mutating it in place. The
// returned resolver is bound to the store and reuses the memo built during
// the run.
func (p *Pipeline) Run(ctx context.Context, store *params.Store) (*resolve.Resolver, error) {
	log := logging.Component("pipeline")
	r := resolve.New(store, p.env.Rules)

	for _, st := range p.stages {
		if err := ctx.Err(); err != nil {
			return r, err
		}
		name := st.Plugin.Name()

		// 1. Resolve declared inputs
		in, err := p.inputs(r, st.Plugin)
		if err != nil {
			return r, err
		}

		// 2. Run the stage
		outs, err := st.Plugin.Run(in, p.env)
		if err != nil {
			var pie *params.PluginInputError
			if errors.As(err, &pie) {
				return r, err
			}
			return r, fmt.Errorf("plugin %s: %w", name, err)
		}

		// 3. Write outputs back
		for _, o := range outs {
			if err := write(store, name, o); err != nil {
				return r, fmt.Errorf("plugin %s: %w", name, err)
			}
		}
		log.Debug().Str("plugin", name).Int("outputs", len(outs)).Msg("stage complete")
	}
	return r, nil
}

func (p *Pipeline) inputs(r *resolve.Resolver, pl Plugin) (*Inputs, error) {
	name := pl.Name()
	reqs := pl.Requires(r.Store())
	values := make(map[params.Path]params.Value, len(reqs))
	order := make([]params.Path, 0, len(reqs))
	percent := make(map[params.Path]bool)

	for _, req := range reqs {
		if req.Optional && !r.Store().Has(req.Path) {
			continue
		}
		v, err := r.Resolve(req.Path)
		if err != nil {
			return nil, &params.PluginInputError{Plugin: name, Path: req.Path, Err: err}
		}
		if !req.accepts(v) {
			return nil, &params.PluginInputError{
				Plugin: name,
				Path:   req.Path,
				Err:    &resolve.TypeError{Path: req.Path, Want: req.Kind.String(), Got: v.Kind},
			}
		}
		if _, dup := values[req.Path]; !dup {
			order = append(order, req.Path)
		}
		values[req.Path] = v
		if e, err := r.Store().Get(req.Path); err == nil && e.Raw.Kind == params.KindPercent {
			percent[req.Path] = true
		}
	}
	return &Inputs{plugin: name, values: values, order: order, percent: percent}, nil
}

// write stores an output, keeping the comment of an entry it replaces.
func write(store *params.Store, origin string, o Output) error {
	e, err := store.Get(o.Path)
	if err != nil {
		e = params.Entry{Path: o.Path}
	}
	e.Raw = o.Value
	e.Origin = origin
	if o.Unit != "" {
		e.Unit = o.Unit
	}
	return store.SetEntry(e)
}
