// Package scenario evaluates a prepared model under overrides and runs the
// perturbation analyses built on that: Monte Carlo, sensitivity, waterfall
// and comparative.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/logging"
	"hydrogen_tea/pkg/core/lookup"
	"hydrogen_tea/pkg/core/metrics"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/plugin"
	"hydrogen_tea/pkg/core/resolve"
)

// ErrBatchTimeout is returned, wrapped, with the partial result of an
// analysis that ran out of time.
var ErrBatchTimeout = errors.New("batch timeout")

// Analysis kinds, used as metric labels and stored run kinds.
const (
	KindEvaluate    = "evaluate"
	KindMonteCarlo  = "monte_carlo"
	KindSensitivity = "sensitivity"
	KindWaterfall   = "waterfall"
	KindComparative = "comparative"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs models. It is safe for concurrent use; each evaluation works
// on its own clone of the model's store.
type Engine struct {
	registry  *plugin.Registry
	tables    *lookup.Provider
	source    lookup.Source
	workers   int
	timeout   time.Duration
	metrics   metrics.Metrics
	log       zerolog.Logger
	checkRefs bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers bounds concurrent evaluations. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithTimeout bounds the wall time of every analysis. Zero means no limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTables shares an already populated lookup-table provider.
func WithTables(p *lookup.Provider) Option {
	return func(e *Engine) {
		if p != nil {
			e.tables = p
		}
	}
}

// WithSource lets Prepare fetch the lookup tables a model references.
func WithSource(src lookup.Source) Option {
	return func(e *Engine) { e.source = src }
}

// WithReferenceCheck toggles resolving every entry after the pipeline, which
// reports references left dangling. It is on by default.
func WithReferenceCheck(on bool) Option {
	return func(e *Engine) { e.checkRefs = on }
}

// New creates an engine over the plugins of reg.
func New(reg *plugin.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:  reg,
		tables:    lookup.NewProvider(),
		workers:   runtime.NumCPU(),
		metrics:   metrics.Noop{},
		log:       logging.Component("scenario"),
		checkRefs: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Workers returns the evaluation concurrency.
func (e *Engine) Workers() int { return e.workers }

// Timeout is the batch timeout, zero when unbounded.
func (e *Engine) Timeout() time.Duration { return e.timeout }

// Plugins lists the registered plugin names in position order.
func (e *Engine) Plugins() []string { return e.registry.Names() }

// Tables returns the shared lookup-table provider.
func (e *Engine) Tables() *lookup.Provider { return e.tables }

// =============================================================================
// MODEL
// =============================================================================

// Model is a configured store bound to its pipeline. The store is never
// modified by evaluations.
type Model struct {
	Name     string
	Store    *params.Store
	Pipeline *plugin.Pipeline
	Outputs  []params.Path
}

// WithOverrides returns a model whose base store carries the overrides. It
// shares the pipeline and outputs; with no overrides m itself is returned.
func (m *Model) WithOverrides(overrides []params.Override) (*Model, error) {
	if len(overrides) == 0 {
		return m, nil
	}
	store, err := m.Store.ApplyOverrides(overrides)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	return &Model{Name: m.Name, Store: store, Pipeline: m.Pipeline, Outputs: m.Outputs}, nil
}

// Prepare reads the model's workflow, builds its pipeline and loads the
// lookup tables it references. Unknown plugins fail here, before any
// scenario runs. With no outputs the model reports the levelized H2 cost.
func (e *Engine) Prepare(ctx context.Context, name string, store *params.Store, outputs []params.Path) (*Model, error) {
	// 1. Workflow to pipeline
	steps, err := plugin.WorkflowFromStore(store)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}
	pipe, err := e.registry.Build(steps, plugin.Env{Tables: e.tables, Rules: e.registry.Rules()})
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", name, err)
	}

	// 2. Lookup tables, loaded once and shared by every scenario
	if e.source != nil {
		for _, entry := range store.Entries() {
			if entry.Raw.Kind != params.KindFileRef {
				continue
			}
			if err := e.tables.Load(ctx, e.source, entry.Raw.Str); err != nil {
				return nil, fmt.Errorf("model %s: %s: %w", name, entry.Path, err)
			}
		}
	}

	if len(outputs) == 0 {
		outputs = []params.Path{analysis.DefaultOutput}
	}
	e.log.Info().Str("model", name).Strs("pipeline", pipe.Names()).Int("entries", store.Len()).Msg("model prepared")
	return &Model{Name: name, Store: store, Pipeline: pipe, Outputs: outputs}, nil
}

// =============================================================================
// EVALUATION
// =============================================================================

// Evaluate runs the model once under overrides and reads its outputs.
func (e *Engine) Evaluate(ctx context.Context, m *Model, overrides []params.Override) (Outputs, error) {
	start := time.Now()
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, _, err := e.evaluate(ctx, m, overrides, KindEvaluate)
	e.metrics.ObserveAnalysis(KindEvaluate, time.Since(start))
	return out, timeoutErr(err)
}

// timeoutErr marks an expired deadline as ErrBatchTimeout.
func timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrBatchTimeout) {
		return fmt.Errorf("%w: %v", ErrBatchTimeout, err)
	}
	return err
}

// evaluate is one scenario: clone with overrides, run the pipeline, check
// references and read every output. The resolver of the finished store is
// returned for callers that need more than the outputs.
func (e *Engine) evaluate(ctx context.Context, m *Model, overrides []params.Override, kind string) (Outputs, *resolve.Resolver, error) {
	start := time.Now()
	out, r, err := e.run(ctx, m, overrides)
	status := metrics.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = metrics.StatusTimeout
	default:
		status = metrics.StatusFailed
	}
	e.metrics.ObserveScenario(kind, status, time.Since(start))
	return out, r, err
}

func (e *Engine) run(ctx context.Context, m *Model, overrides []params.Override) (Outputs, *resolve.Resolver, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	// 1. Clone the base store with the overrides applied
	store, err := m.Store.ApplyOverrides(overrides)
	if err != nil {
		return nil, nil, err
	}

	// 2. Run the pipeline on the clone
	r, err := m.Pipeline.Run(ctx, store)
	if err != nil {
		return nil, nil, err
	}

	// 3. Final reference check
	if e.checkRefs {
		if err := r.ResolveAll(); err != nil {
			return nil, nil, fmt.Errorf("reference check: %w", err)
		}
	}

	// 4. Outputs
	out := make(Outputs, len(m.Outputs))
	for _, p := range m.Outputs {
		v, err := r.Number(p)
		if err != nil {
			return nil, nil, fmt.Errorf("output %s: %w", p, err)
		}
		out[p.String()] = v
	}
	return out, r, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// batch evaluates every override set with bounded concurrency. Failures are
// recorded per scenario; nothing aborts the batch. Once ctx is done the
// remaining scenarios record the context error without running.
func (e *Engine) batch(ctx context.Context, m *Model, sets [][]params.Override, kind string) []Result {
	results := make([]Result, len(sets))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range sets {
		i := i
		g.Go(func() error {
			res := Result{Index: i, Overrides: sets[i]}
			out, _, err := e.evaluate(ctx, m, sets[i], kind)
			if err != nil {
				res.Err = err.Error()
			} else {
				res.Outputs = out
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// finish logs the analysis and maps an expired context to ErrBatchTimeout.
func (e *Engine) finish(ctx context.Context, kind, model string, start time.Time, results []Result) error {
	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	elapsed := time.Since(start)
	e.metrics.ObserveAnalysis(kind, elapsed)

	ev := e.log.Info()
	if failed > 0 {
		ev = e.log.Warn()
	}
	ev.Str("analysis", kind).Str("model", model).Int("scenarios", len(results)).Int("failed", failed).Dur("elapsed", elapsed).Msg("analysis finished")

	if err := ctx.Err(); err != nil {
		e.log.Error().Err(err).Str("analysis", kind).Str("model", model).Msg("analysis cut short")
		return fmt.Errorf("%w: %s on %s: %v", ErrBatchTimeout, kind, model, err)
	}
	return nil
}
