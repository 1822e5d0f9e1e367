package scenario

import (
	"fmt"
	"math"
	"sort"

	"hydrogen_tea/pkg/core/analysis"
	"hydrogen_tea/pkg/core/params"
	"hydrogen_tea/pkg/core/resolve"
)

// Sampler is the random source behind Monte Carlo draws. *rand.Rand
// satisfies it.
type Sampler interface {
	Float64() float64
	NormFloat64() float64
	Intn(n int) int
}

// dimension is a Monte Carlo parameter with its value cells resolved
// against the baseline.
type dimension struct {
	param     analysis.Parameter
	mode      params.OverrideMode
	dist      analysis.Distribution
	percent   bool
	reference float64
	values    []float64
	baseline  []bool
	limit     float64
}

// resolveItems turns value cells into numbers. The baseline markers stand
// for reference; paths are read from the baseline run.
func resolveItems(vals analysis.Values, reference float64, r *resolve.Resolver) ([]float64, []bool, error) {
	items, err := vals.Items()
	if err != nil {
		return nil, nil, err
	}
	nums := make([]float64, len(items))
	marks := make([]bool, len(items))
	for i, it := range items {
		switch {
		case it.Baseline:
			nums[i], marks[i] = reference, true
		case it.Path != nil:
			v, err := r.Number(*it.Path)
			if err != nil {
				return nil, nil, err
			}
			nums[i] = v
		default:
			nums[i] = it.Num
		}
	}
	return nums, marks, nil
}

// referenceOf is the value a parameter has in the baseline: the entry
// itself for replacing overrides, 1 for scaling ones.
func referenceOf(r *resolve.Resolver, p params.Path, mode params.OverrideMode) (float64, bool, error) {
	e, err := r.Store().Get(p)
	if err != nil {
		return 0, false, err
	}
	if mode == params.ModeFactor {
		return 1, false, nil
	}
	v, err := r.Number(p)
	if err != nil {
		return 0, false, err
	}
	return v, e.Raw.Kind == params.KindPercent, nil
}

func newDimension(p analysis.Parameter, r *resolve.Resolver) (*dimension, error) {
	mode, err := params.ParseOverrideMode(string(p.Type))
	if err != nil {
		return nil, err
	}
	dist := p.Distribution
	if dist == "" {
		dist = analysis.DistUniform
	}
	ref, pct, err := referenceOf(r, p.Path, mode)
	if err != nil {
		return nil, err
	}
	vals, marks, err := resolveItems(p.Values, ref, r)
	if err != nil {
		return nil, err
	}
	d := &dimension{param: p, mode: mode, dist: dist, percent: pct, reference: ref, values: vals, baseline: marks}

	// 1. Shape checks the declaration alone cannot catch
	switch dist {
	case analysis.DistUniform:
		sort.Float64s(d.values)
	case analysis.DistNormal:
		if vals[1] < 0 {
			return nil, fmt.Errorf("normal standard deviation must not be negative, got %v", vals[1])
		}
	case analysis.DistLognormal:
		if vals[0] <= 0 || vals[1] < 0 {
			return nil, fmt.Errorf("lognormal needs a positive median and non-negative sigma, got %v", vals)
		}
	case analysis.DistTriangular:
		if !(vals[0] <= vals[1] && vals[1] <= vals[2]) {
			return nil, fmt.Errorf("triangular values must be ordered min <= mode <= max, got %v", vals)
		}
	}

	// 2. Limit for development distance. Bounded distributions use the
	// declared value that is not the reference.
	d.limit = ref
	if dist != analysis.DistNormal && dist != analysis.DistLognormal {
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		for _, v := range sorted {
			if v != ref {
				d.limit = v
				break
			}
		}
	}
	return d, nil
}

// draw samples one value. A nil override means the baseline is kept.
func (d *dimension) draw(s Sampler) (float64, *params.Override) {
	var v float64
	switch d.dist {
	case analysis.DistNormal:
		v = d.values[0] + d.values[1]*s.NormFloat64()
	case analysis.DistLognormal:
		v = d.values[0] * math.Exp(d.values[1]*s.NormFloat64())
	case analysis.DistTriangular:
		v = triangular(s.Float64(), d.values[0], d.values[1], d.values[2])
	case analysis.DistChoice:
		i := s.Intn(len(d.values))
		if d.baseline[i] {
			return d.reference, nil
		}
		v = d.values[i]
	default:
		lo, hi := d.values[0], d.values[len(d.values)-1]
		v = lo + (hi-lo)*s.Float64()
	}
	o := d.override(v)
	return v, &o
}

func (d *dimension) override(v float64) params.Override {
	if d.mode == params.ModeFactor {
		return params.Scale(d.param.Path, v)
	}
	if d.percent {
		return params.Set(d.param.Path, params.Percent(v))
	}
	return params.Set(d.param.Path, params.Number(v))
}

// triangular maps a uniform u in [0,1) through the inverse CDF.
func triangular(u, a, c, b float64) float64 {
	if b == a {
		return a
	}
	f := (c - a) / (b - a)
	if u < f {
		return a + math.Sqrt(u*(b-a)*(c-a))
	}
	return b - math.Sqrt((1-u)*(b-a)*(b-c))
}

// normalize scales v so that the reference maps to 0 and the limit to 1.
// A dimension without a distinct limit contributes nothing.
func (d *dimension) normalize(v float64, logScale bool) float64 {
	if d.limit == d.reference {
		return 0
	}
	if logScale && d.reference > 0 && d.limit > 0 && v > 0 {
		return math.Log10(v/d.reference) / math.Log10(d.limit/d.reference)
	}
	return (v - d.reference) / (d.limit - d.reference)
}

// distance measures how far a sample's parameters moved from the baseline.
// Distances are divided by the dimension count (cityblock, sum) or its
// square root (euclidean), so a sample at every limit has distance 1.
func distance(dims []*dimension, values []float64, metric analysis.Metric, logScale bool) float64 {
	n := float64(len(dims))
	if n == 0 {
		return 0
	}
	var acc float64
	for i, d := range dims {
		x := d.normalize(values[i], logScale)
		switch metric {
		case analysis.MetricEuclidean:
			acc += x * x
		case analysis.MetricSum:
			acc += x
		default:
			acc += math.Abs(x)
		}
	}
	if metric == analysis.MetricEuclidean {
		return math.Sqrt(acc) / math.Sqrt(n)
	}
	return acc / n
}
