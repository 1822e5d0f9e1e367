package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
)

// MonteCarlo samples the declared parameters and evaluates the model once
// per sample. All samples are drawn from the sampler, in order, before any
// evaluation starts, so results depend only on the seed and never on
// worker scheduling. A nil sampler is seeded from cfg.Seed.
//
// Failed samples are recorded, not fatal. When the batch timeout expires,
// the partial result is returned together with an ErrBatchTimeout.
func (e *Engine) MonteCarlo(ctx context.Context, m *Model, cfg *analysis.MonteCarlo, sampler Sampler) (*MonteCarloResult, error) {
	start := time.Now()
	if cfg == nil {
		return nil, &params.AnalysisConfigError{Analysis: KindMonteCarlo, Reason: "no Monte Carlo declaration"}
	}
	if err := (&analysis.Config{MonteCarlo: cfg}).Validate(m.Store); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = rand.New(rand.NewSource(cfg.Seed))
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	output := cfg.OutputPath()
	mm := m.withOutput(output)

	// 1. Baseline run, which parameter references are read from
	base, r, err := e.evaluate(ctx, mm, nil, KindMonteCarlo)
	if err != nil {
		return nil, timeoutErr(fmt.Errorf("monte carlo baseline of %s: %w", m.Name, err))
	}

	dims := make([]*dimension, len(cfg.Parameters))
	for i, p := range cfg.Parameters {
		d, err := newDimension(p, r)
		if err != nil {
			return nil, &params.AnalysisConfigError{Analysis: KindMonteCarlo, Item: p.Name, Reason: err.Error()}
		}
		dims[i] = d
	}

	// 2. Draw every sample up front
	values := make([][]float64, cfg.Samples)
	sets := make([][]params.Override, cfg.Samples)
	for i := range values {
		values[i] = make([]float64, len(dims))
		for j, d := range dims {
			v, o := d.draw(sampler)
			values[i][j] = v
			if o != nil {
				sets[i] = append(sets[i], *o)
			}
		}
	}
	for j, d := range dims {
		if d.dist == analysis.DistNormal || d.dist == analysis.DistLognormal {
			d.limit = farthest(d.reference, values, j)
		}
	}

	e.log.Info().Str("model", m.Name).Int("samples", cfg.Samples).Int("parameters", len(dims)).Int("workers", e.workers).Msg("monte carlo started")

	// 3. Evaluate concurrently
	results := e.batch(ctx, mm, sets, KindMonteCarlo)

	res := &MonteCarloResult{
		Model:       m.Name,
		Output:      output.String(),
		Seed:        cfg.Seed,
		Baseline:    base,
		Samples:     make([]Sample, len(results)),
		TargetRange: cfg.TargetRange,
		Closest:     -1,
	}
	for _, d := range dims {
		res.Parameters = append(res.Parameters, ParameterSummary{
			Name:         d.param.Name,
			Path:         d.param.Path,
			Type:         d.mode,
			Distribution: string(d.dist),
			Reference:    d.reference,
			Limit:        d.limit,
		})
	}

	// 4. Target filter and development distance
	lo, hi := math.Inf(-1), math.Inf(1)
	if len(cfg.TargetRange) == 2 {
		lo, hi = math.Min(cfg.TargetRange[0], cfg.TargetRange[1]), math.Max(cfg.TargetRange[0], cfg.TargetRange[1])
	}
	best := math.Inf(1)
	for i, rs := range results {
		smp := Sample{Result: rs, Values: values[i]}
		if rs.Failed() {
			res.Failures++
			res.Samples[i] = smp
			continue
		}
		if v := rs.Outputs[res.Output]; v >= lo && v <= hi {
			dist := distance(dims, values[i], cfg.Metric, cfg.LogNormalize)
			smp.Distance = &dist
			res.InTarget = append(res.InTarget, i)
			if dist < best {
				best, res.Closest = dist, i
			}
		}
		res.Samples[i] = smp
	}

	if err := e.finish(ctx, KindMonteCarlo, m.Name, start, results); err != nil {
		return res, err
	}
	return res, nil
}

// farthest returns the sampled value of dimension j furthest from ref.
func farthest(ref float64, values [][]float64, j int) float64 {
	limit := ref
	for _, row := range values {
		if math.Abs(row[j]-ref) > math.Abs(limit-ref) {
			limit = row[j]
		}
	}
	return limit
}

// withOutput returns a shallow copy of m that also reports p.
func (m *Model) withOutput(p params.Path) *Model {
	for _, o := range m.Outputs {
		if o == p {
			return m
		}
	}
	mm := *m
	mm.Outputs = append(append([]params.Path(nil), m.Outputs...), p)
	return &mm
}

// SortedByDistance returns the in-target sample indices, nearest first.
func (r *MonteCarloResult) SortedByDistance() []int {
	out := append([]int(nil), r.InTarget...)
	sort.SliceStable(out, func(a, b int) bool {
		return *r.Samples[out[a]].Distance < *r.Samples[out[b]].Distance
	})
	return out
}
