package resolve

import (
	"fmt"
	"sort"
	"sync"
)

// Combiner merges the resolved inputs of a multi-path reference. base is the
// literal written next to the paths, nil when the entry has none.
type Combiner func(base *float64, inputs []float64) (float64, error)

const (
	RuleProduct      = "product"
	RuleSum          = "sum"
	RulePercentageOf = "percentage-of"
	RuleMean         = "mean"

	// RuleScaled is the configuration name for product used on
	// "cost x capacity x scaling factor" rows.
	RuleScaled = "multiply-with-scaling-factor"
)

// Product returns base x inputs[0] x inputs[1] ..., base defaulting to 1.
func Product(base *float64, inputs []float64) (float64, error) {
	out := 1.0
	if base != nil {
		out = *base
	}
	for _, v := range inputs {
		out *= v
	}
	return out, nil
}

// Sum returns base + inputs[0] + inputs[1] ..., base defaulting to 0.
func Sum(base *float64, inputs []float64) (float64, error) {
	out := 0.0
	if base != nil {
		out = *base
	}
	for _, v := range inputs {
		out += v
	}
	return out, nil
}

// PercentageOf returns base x (inputs[0] + inputs[1] ...). base is the fraction
// and must be present.
func PercentageOf(base *float64, inputs []float64) (float64, error) {
	if base == nil {
		return 0, fmt.Errorf("%s needs a base fraction", RulePercentageOf)
	}
	total := 0.0
	for _, v := range inputs {
		total += v
	}
	return *base * total, nil
}

// Mean averages the inputs. A base literal is not allowed.
func Mean(base *float64, inputs []float64) (float64, error) {
	if base != nil {
		return 0, fmt.Errorf("%s does not accept a base value", RuleMean)
	}
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%s of no inputs", RuleMean)
	}
	total, _ := Sum(nil, inputs)
	return total / float64(len(inputs)), nil
}

// =============================================================================
// RULE REGISTRY
// =============================================================================

// Rules is the fixed-but-extensible vocabulary of combination rules.
// Plugins may add rules when they are registered.
type Rules struct {
	rules map[string]Combiner
	mu    sync.RWMutex
}

// NewRules returns a registry holding the built-in rules.
func NewRules() *Rules {
	r := &Rules{rules: make(map[string]Combiner)}
	r.rules[RuleProduct] = Product
	r.rules[RuleScaled] = Product
	r.rules[RuleSum] = Sum
	r.rules[RulePercentageOf] = PercentageOf
	r.rules[RuleMean] = Mean
	return r
}

var (
	defaultRules *Rules
	rulesOnce    sync.Once
)

// Default returns the shared registry of built-in rules.
func Default() *Rules {
	rulesOnce.Do(func() {
		defaultRules = NewRules()
	})
	return defaultRules
}

// Register adds or replaces a named rule.
func (r *Rules) Register(name string, c Combiner) error {
	if name == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if c == nil {
		return fmt.Errorf("rule %s: nil combiner", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules[name] = c
	return nil
}

// Lookup returns the named rule; the empty name selects product.
func (r *Rules) Lookup(name string) (Combiner, error) {
	if name == "" {
		name = RuleProduct
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.rules[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("unknown combination rule %q", name)
}

// Has reports whether a rule is registered.
func (r *Rules) Has(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names lists registered rules alphabetically.
func (r *Rules) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
